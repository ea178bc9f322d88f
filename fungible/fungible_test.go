package fungible

import (
	"bytes"
	"testing"

	"xledger.io/charter/isa"
	"xledger.io/charter/script"
)

const testDeveloper = "dns:issuer.example.com"

func TestScriptLayout(t *testing.T) {
	lib, genesis, transfer, err := Script(DefaultParams())
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	want := []byte{0xC0, 0x0F, 0xA0, 0x07, 0xD2, 0x00, 0xC1, 0x0F, 0xA0}
	if !bytes.Equal(lib.Code(), want) {
		t.Fatalf("code = %x, want %x", lib.Code(), want)
	}
	if genesis != 0 {
		t.Fatalf("genesis entry = %d, want 0", genesis)
	}
	if transfer != 6 {
		t.Fatalf("transfer entry = %d, want 6", transfer)
	}
	if err := script.CheckEntry(lib, genesis, isa.OpPCCS); err != nil {
		t.Fatalf("genesis entry opcode: %v", err)
	}
	if err := script.CheckEntry(lib, transfer, isa.OpPCVS); err != nil {
		t.Fatalf("transfer entry opcode: %v", err)
	}
}

func TestIssuerKit(t *testing.T) {
	k, err := Issuer(testDeveloper, 1755734400, DefaultParams())
	if err != nil {
		t.Fatalf("Issuer: %v", err)
	}
	if err := k.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if k.Schema.Name != SchemaName {
		t.Fatalf("schema name = %q", k.Schema.Name)
	}
	if k.Scripts.Len() != 1 {
		t.Fatalf("script set holds %d libraries, want 1", k.Scripts.Len())
	}
	libID := k.Scripts.IDs()[0]

	gv := k.Schema.Genesis.Validator
	if gv == nil || !gv.Lib.Equals(libID) || gv.Pos != 0 {
		t.Fatalf("genesis validator = %v, want (%s, 0)", gv, libID)
	}
	tv := k.Schema.Transitions[TransitionTransfer].Validator
	if tv == nil || !tv.Lib.Equals(libID) || tv.Pos != 6 {
		t.Fatalf("transfer validator = %v, want (%s, 6)", tv, libID)
	}

	if err := k.Scripts.CheckSite(*gv, isa.OpPCCS); err != nil {
		t.Fatalf("genesis site: %v", err)
	}
	if err := k.Scripts.CheckSite(*tv, isa.OpPCVS); err != nil {
		t.Fatalf("transfer site: %v", err)
	}
}

func TestIdentityStableAcrossBuilds(t *testing.T) {
	a, err := Issuer(testDeveloper, 1755734400, DefaultParams())
	if err != nil {
		t.Fatalf("Issuer: %v", err)
	}
	b, err := Issuer(testDeveloper, 1755734400, DefaultParams())
	if err != nil {
		t.Fatalf("Issuer: %v", err)
	}

	schemaA, err := a.Schema.ID()
	if err != nil {
		t.Fatal(err)
	}
	schemaB, err := b.Schema.ID()
	if err != nil {
		t.Fatal(err)
	}
	if !schemaA.Equals(schemaB) {
		t.Fatalf("schema id unstable across builds: %s vs %s", schemaA, schemaB)
	}

	kitA, err := a.ID()
	if err != nil {
		t.Fatal(err)
	}
	kitB, err := b.ID()
	if err != nil {
		t.Fatal(err)
	}
	if !kitA.Equals(kitB) {
		t.Fatalf("kit id unstable across builds: %s vs %s", kitA, kitB)
	}

	if !a.Scripts.IDs()[0].Equals(b.Scripts.IDs()[0]) {
		t.Fatal("library id unstable across builds")
	}
}

func TestTimestampMovesBindingNotSchema(t *testing.T) {
	a, err := Issuer(testDeveloper, 1755734400, DefaultParams())
	if err != nil {
		t.Fatalf("Issuer: %v", err)
	}
	b, err := Issuer(testDeveloper, 1755734401, DefaultParams())
	if err != nil {
		t.Fatalf("Issuer: %v", err)
	}

	schemaA, _ := a.Schema.ID()
	schemaB, _ := b.Schema.ID()
	if !schemaA.Equals(schemaB) {
		t.Fatal("timestamp leaked into schema identity")
	}

	implA, err := a.Impl.ID()
	if err != nil {
		t.Fatal(err)
	}
	implB, err := b.Impl.ID()
	if err != nil {
		t.Fatal(err)
	}
	if implA.Equals(implB) {
		t.Fatal("binding identity ignored the timestamp")
	}
}

func TestParamsMoveScriptAndSchemaIdentity(t *testing.T) {
	def, err := Issuer(testDeveloper, 1755734400, DefaultParams())
	if err != nil {
		t.Fatalf("Issuer: %v", err)
	}
	p := DefaultParams()
	p.SumLower = 1000
	alt, err := Issuer(testDeveloper, 1755734400, p)
	if err != nil {
		t.Fatalf("Issuer: %v", err)
	}

	if def.Scripts.IDs()[0].Equals(alt.Scripts.IDs()[0]) {
		t.Fatal("changed bounds, same library id")
	}
	defSchema, _ := def.Schema.ID()
	altSchema, _ := alt.Schema.ID()
	if defSchema.Equals(altSchema) {
		t.Fatal("changed bounds, same schema id")
	}
}

func TestImplFieldNames(t *testing.T) {
	k, err := Issuer(testDeveloper, 1755734400, DefaultParams())
	if err != nil {
		t.Fatalf("Issuer: %v", err)
	}
	names := map[string]bool{}
	for _, g := range k.Impl.Globals {
		names[g.Name] = true
	}
	for _, a := range k.Impl.Assignments {
		names[a.Name] = true
	}
	for _, tr := range k.Impl.Transitions {
		names[tr.Name] = true
	}
	for _, want := range []string{"spec", "terms", "issuedSupply", "assetOwner", "transfer"} {
		if !names[want] {
			t.Fatalf("impl does not bind %q (bound: %v)", want, names)
		}
	}
	if len(names) != 5 {
		t.Fatalf("impl binds %d names, want 5: %v", len(names), names)
	}
}
