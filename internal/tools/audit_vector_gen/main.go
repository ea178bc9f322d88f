package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"xledger.io/charter/fungible"
	"xledger.io/charter/isa"
	"xledger.io/charter/kit"
	"xledger.io/charter/model"
	"xledger.io/charter/storage"
	"xledger.io/charter/storage/localfs"
	"xledger.io/charter/verify"
)

// Emits auditor report vectors for a fixed issuance: one clean run, one
// with unpublished components, and one audited under swapped opcode
// expectations. Timestamp is pinned so the reports are reproducible.
func main() {
	var (
		developer = flag.String("developer", "dns:issuer.example.com", "developer identity")
		timestamp = flag.Int64("timestamp", 1755734400, "unix timestamp recorded in the impl")
		outDir    = flag.String("out", "", "output directory")
	)
	flag.Parse()

	if *outDir == "" {
		fmt.Fprintln(os.Stderr, "usage: audit_vector_gen -out <dir> [-developer <id>] [-timestamp <unix>]")
		os.Exit(2)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatalf("mkdir out: %v", err)
	}

	k, err := fungible.Issuer(*developer, *timestamp, fungible.DefaultParams())
	if err != nil {
		fatalf("fungible.Issuer: %v", err)
	}

	// Clean: every component published, family expectations satisfied.
	cas := tempCAS()
	kitID, err := kit.Publish(cas, k)
	if err != nil {
		fatalf("kit.Publish: %v", err)
	}
	expect := fungible.Expectations()
	writeReport(*outDir, "audit_clean", kitID.String(), cas, &expect)

	// Unpublished: only the kit block is stored, so every component
	// lookup must surface a publication violation.
	bareCAS := tempCAS()
	raw, err := k.MarshalCanonical()
	if err != nil {
		fatalf("kit.MarshalCanonical: %v", err)
	}
	bareID, err := bareCAS.Put(raw)
	if err != nil {
		fatalf("cas.Put: %v", err)
	}
	writeReport(*outDir, "audit_unpublished", bareID.String(), bareCAS, nil)

	// Misbound: demand the conservation opcode at genesis and the range
	// check on transfer; both script checks must fail.
	swapped := fungible.Expectations()
	swapped.Genesis = isa.OpPCVS
	for tt := range swapped.Transitions {
		swapped.Transitions[tt] = isa.OpPCCS
	}
	writeReport(*outDir, "audit_misbound", kitID.String(), cas, &swapped)
}

func tempCAS() storage.CAS {
	dir, err := os.MkdirTemp("", "audit-vector-*")
	if err != nil {
		fatalf("mkdtemp: %v", err)
	}
	cas, err := localfs.New(dir)
	if err != nil {
		fatalf("localfs.New: %v", err)
	}
	return cas
}

func writeReport(dir, name, kitCID string, cas storage.CAS, expect *verify.Expectations) {
	req := model.AuditRequest{
		Kit:  model.BlobRef{CID: kitCID},
		Mode: model.AuditPermissive,
	}
	resp, err := model.Audit(req, model.AuditOptions{CAS: cas, Expect: expect})
	if err != nil {
		fatalf("audit %s: %v", name, err)
	}
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fatalf("marshal %s: %v", name, err)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		fatalf("write %s: %v", path, err)
	}
	cidPath := filepath.Join(dir, name+".cid")
	if err := os.WriteFile(cidPath, []byte(strings.TrimSpace(kitCID)+"\n"), 0o644); err != nil {
		fatalf("write %s: %v", cidPath, err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
