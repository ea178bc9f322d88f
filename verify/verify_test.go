package verify_test

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/fungible"
	"xledger.io/charter/isa"
	"xledger.io/charter/kit"
	"xledger.io/charter/storage/localfs"
	"xledger.io/charter/verify"
)

const (
	testDeveloper = "dns:issuer.example.com"
	testTimestamp = 1755734400
)

func publishedKit(t *testing.T) (*localfs.CAS, string, cid.Cid) {
	t.Helper()
	k, err := fungible.Issuer(testDeveloper, testTimestamp, fungible.DefaultParams())
	if err != nil {
		t.Fatalf("Issuer: %v", err)
	}
	dir := t.TempDir()
	cas, err := localfs.New(dir)
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	id, err := kit.Publish(cas, k)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return cas, dir, id
}

func TestAuditCleanKit(t *testing.T) {
	cas, _, id := publishedKit(t)

	report, err := verify.Audit(cas, id, verify.Options{Expect: fungible.Expectations()})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if !report.Ok() {
		t.Fatalf("expected clean report, got %d violations: %+v", report.Violations(), report.Failures())
	}
	if report.KitID != id.String() {
		t.Errorf("KitID = %s, want %s", report.KitID, id)
	}
	if report.SchemaName != fungible.SchemaName {
		t.Errorf("SchemaName = %q", report.SchemaName)
	}
	if len(report.LibraryIDs) != 1 {
		t.Errorf("LibraryIDs = %v", report.LibraryIDs)
	}
	if report.SchemaID == "" || report.IfaceID == "" || report.ImplID == "" || report.TypesID == "" {
		t.Error("component ids missing from report")
	}
}

func TestAuditStrictCleanKit(t *testing.T) {
	cas, _, id := publishedKit(t)
	if _, err := verify.AuditStrict(cas, id); err != nil {
		t.Fatalf("AuditStrict: %v", err)
	}
}

func TestAuditDeterminism(t *testing.T) {
	cas, _, id := publishedKit(t)
	opts := verify.Options{Expect: fungible.Expectations()}

	a, err := verify.Audit(cas, id, opts)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	b, err := verify.Audit(cas, id, opts)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two audits of the same kit produced different reports")
	}
}

func TestAuditUnpublishedComponents(t *testing.T) {
	k, err := fungible.Issuer(testDeveloper, testTimestamp, fungible.DefaultParams())
	if err != nil {
		t.Fatalf("Issuer: %v", err)
	}
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	// Store only the kit itself, skipping the per-component publication.
	raw, err := k.MarshalCanonical()
	if err != nil {
		t.Fatalf("MarshalCanonical: %v", err)
	}
	id, err := cas.Put(raw)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	report, err := verify.Audit(cas, id, verify.Options{})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.Ok() {
		t.Fatal("expected publication violations")
	}
	for _, v := range report.Failures() {
		if !strings.HasPrefix(v.Check, "publication/") {
			t.Errorf("unexpected failing check %s: %v", v.Check, v.Reasons)
		}
	}

	if _, err := verify.AuditStrict(cas, id); err == nil {
		t.Fatal("expected strict mode error")
	}
}

func TestAuditRejectsWrongOpcodeExpectation(t *testing.T) {
	cas, _, id := publishedKit(t)

	// Demand the conservation opcode where the family places the range
	// check; the audit must surface the mismatch.
	expect := fungible.Expectations()
	expect.Genesis = isa.OpPCVS

	report, err := verify.Audit(cas, id, verify.Options{Expect: expect})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.Ok() {
		t.Fatal("expected a genesis opcode violation")
	}
	found := false
	for _, v := range report.Failures() {
		if v.Check == "script/genesis" {
			found = true
		}
	}
	if !found {
		t.Fatalf("script/genesis not among failures: %+v", report.Failures())
	}
}

type stubOracle struct{ failEntry uint16 }

func (o stubOracle) Exec(code []byte, entry uint16, witness []byte) error {
	if entry == o.failEntry {
		return fmt.Errorf("trap at %d", entry)
	}
	return nil
}

func TestAuditWithOracle(t *testing.T) {
	cas, _, id := publishedKit(t)

	report, err := verify.Audit(cas, id, verify.Options{
		Expect: fungible.Expectations(),
		Oracle: stubOracle{failEntry: 6},
	})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	var failed []string
	for _, v := range report.Failures() {
		failed = append(failed, v.Check)
	}
	if len(failed) != 1 || failed[0] != "script/transition/10000" {
		t.Fatalf("failures = %v, want only the transfer entry trap", failed)
	}
}

func TestAuditMissingKit(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	k, err := fungible.Issuer(testDeveloper, testTimestamp, fungible.DefaultParams())
	if err != nil {
		t.Fatalf("Issuer: %v", err)
	}
	id, err := k.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if _, err := verify.Audit(cas, id, verify.Options{}); err == nil {
		t.Fatal("expected error auditing a missing kit")
	}
}

func TestAuditDetectsCorruptedComponent(t *testing.T) {
	cas, dir, id := publishedKit(t)

	report, err := verify.Audit(cas, id, verify.Options{})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	schemaID := report.SchemaID

	// Corrupt the published schema object behind the store's back.
	path := filepath.Join(dir, schemaID[:2], schemaID)
	if err := os.WriteFile(path, []byte("junk"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	report, err = verify.Audit(cas, id, verify.Options{})
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.Ok() {
		t.Fatal("expected a publication violation for the corrupted schema")
	}
	found := false
	for _, v := range report.Failures() {
		if v.Check == "publication/schema" {
			found = true
		}
	}
	if !found {
		t.Fatalf("publication/schema not among failures: %+v", report.Failures())
	}
}
