package iface

import (
	"testing"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/fault"
	"xledger.io/charter/isa"
	"xledger.io/charter/schema"
	"xledger.io/charter/script"
	"xledger.io/charter/typesys"
)

const (
	gsSpec   schema.GlobalSlot = 2000
	gsTerms  schema.GlobalSlot = 2001
	gsSupply schema.GlobalSlot = 2010

	osAsset schema.OwnedSlot = 4000

	tsTransfer schema.TransitionType = 10000
)

func fixtureSchema(t *testing.T) *schema.Schema {
	t.Helper()
	lib, err := script.Assemble([]script.Instr{
		{Op: isa.OpPCCS, Operands: []uint16{4000, 2000}},
		{Op: isa.OpRet},
		{Op: isa.OpPCVS, Operands: []uint16{4000}},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	std := typesys.Standard()
	sem := func(name string) typesys.SemID {
		id, err := std.SemID(name)
		if err != nil {
			t.Fatalf("SemID(%s): %v", name, err)
		}
		return id
	}
	s, err := schema.NewBuilder("TestAsset", "dns:example.com").
		Global(gsSpec, sem(typesys.DefAssetSpec), 1).
		Global(gsTerms, sem(typesys.DefAssetTerms), 1).
		Global(gsSupply, sem(typesys.DefAmount), 1).
		OwnedFungible(osAsset, schema.AmountU64).
		Genesis(schema.GenesisSchema{
			Globals: map[schema.GlobalSlot]schema.Occurrences{
				gsSpec: schema.Once(), gsTerms: schema.Once(), gsSupply: schema.Once(),
			},
			Assignments: map[schema.OwnedSlot]schema.Occurrences{osAsset: schema.OnceOrMore()},
			Validator:   &script.Site{Lib: lib.ID(), Pos: 0},
		}).
		Transition(tsTransfer, schema.TransitionSchema{
			Inputs:      map[schema.OwnedSlot]schema.Occurrences{osAsset: schema.OnceOrMore()},
			Assignments: map[schema.OwnedSlot]schema.Occurrences{osAsset: schema.OnceOrMore()},
			Validator:   &script.Site{Lib: lib.ID(), Pos: 6},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func fixtureImpl(t *testing.T, ifc *Iface, sch *schema.Schema) *Impl {
	t.Helper()
	schemaID, err := sch.ID()
	if err != nil {
		t.Fatalf("schema ID: %v", err)
	}
	ifaceID, err := ifc.ID()
	if err != nil {
		t.Fatalf("iface ID: %v", err)
	}
	return &Impl{
		Version:   ImplVersion,
		SchemaID:  schemaID,
		IfaceID:   ifaceID,
		Timestamp: 1755734400,
		Developer: "dns:example.com",
		Globals: []NamedGlobal{
			{Name: "spec", Slot: gsSpec},
			{Name: "terms", Slot: gsTerms},
			{Name: "issuedSupply", Slot: gsSupply},
		},
		Assignments: []NamedOwned{{Name: "assetOwner", Slot: osAsset}},
		Transitions: []NamedTransition{{Name: "transfer", Type: tsTransfer}},
	}
}

func TestImplValidateAgainst(t *testing.T) {
	ifc := Fungible()
	sch := fixtureSchema(t)
	im := fixtureImpl(t, ifc, sch)
	if err := im.ValidateAgainst(ifc, sch); err != nil {
		t.Fatalf("ValidateAgainst: %v", err)
	}
}

func TestImplValidateAgainstRejections(t *testing.T) {
	ifc := Fungible()
	sch := fixtureSchema(t)

	cases := []struct {
		name   string
		mutate func(*Impl)
		ruleID string
	}{
		{"foreign version", func(im *Impl) { im.Version = 9 }, "CHARTER-IFC-004"},
		{"wrong interface id", func(im *Impl) { im.IfaceID = cid.Undef }, "CHARTER-IFC-005"},
		{"wrong schema id", func(im *Impl) { im.SchemaID = im.IfaceID }, "CHARTER-IFC-006"},
		{"duplicate binding", func(im *Impl) {
			im.Globals = append(im.Globals, NamedGlobal{Name: "spec", Slot: gsSpec})
		}, "CHARTER-IFC-007"},
		{"unknown member", func(im *Impl) {
			im.Globals = append(im.Globals, NamedGlobal{Name: "royalties", Slot: gsSpec})
		}, "CHARTER-IFC-008"},
		{"dangling slot", func(im *Impl) { im.Assignments[0].Slot = 9999 }, "CHARTER-IFC-009"},
		{"missing required transition", func(im *Impl) { im.Transitions = nil }, "CHARTER-IFC-003"},
		{"missing required global", func(im *Impl) { im.Globals = im.Globals[:2] }, "CHARTER-IFC-003"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			im := fixtureImpl(t, ifc, sch)
			tc.mutate(im)
			err := im.ValidateAgainst(ifc, sch)
			if err == nil {
				t.Fatal("ValidateAgainst accepted")
			}
			if got := fault.RuleID(err); got != tc.ruleID {
				t.Fatalf("rule = %q, want %q (err: %v)", got, tc.ruleID, err)
			}
		})
	}
}

func TestImplEncodeParseRoundTrip(t *testing.T) {
	ifc := Fungible()
	sch := fixtureSchema(t)
	im := fixtureImpl(t, ifc, sch)

	raw, err := im.MarshalCanonical()
	if err != nil {
		t.Fatalf("MarshalCanonical: %v", err)
	}
	back, err := ParseImpl(raw)
	if err != nil {
		t.Fatalf("ParseImpl: %v", err)
	}
	if err := back.ValidateAgainst(ifc, sch); err != nil {
		t.Fatalf("ValidateAgainst after round trip: %v", err)
	}
	idA, _ := im.ID()
	idB, err := back.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if !idA.Equals(idB) {
		t.Fatal("round trip changed impl id")
	}
}

func TestImplIDVariesWithTimestamp(t *testing.T) {
	ifc := Fungible()
	sch := fixtureSchema(t)
	a := fixtureImpl(t, ifc, sch)
	b := fixtureImpl(t, ifc, sch)
	b.Timestamp = a.Timestamp + 1

	idA, err := a.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	idB, err := b.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if idA.Equals(idB) {
		t.Fatal("timestamp excluded from impl identity")
	}

	// Binding order, by contrast, must not matter.
	c := fixtureImpl(t, ifc, sch)
	c.Globals[0], c.Globals[2] = c.Globals[2], c.Globals[0]
	idC, err := c.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if !idA.Equals(idC) {
		t.Fatal("binding order changed impl identity")
	}
}
