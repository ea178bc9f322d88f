package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"xledger.io/charter/armor"
	"xledger.io/charter/fungible"
	"xledger.io/charter/isa"
	"xledger.io/charter/script"
)

const vectorDeveloper = "dns:issuer.example.com"

func main() {
	outDir := flag.String("out", "", "output directory (testdata/conformance/armor)")
	flag.Parse()

	if *outDir == "" {
		fmt.Fprintln(os.Stderr, "usage: armor_vector_gen -out <dir>")
		os.Exit(2)
	}

	lib1, _, _, err := fungible.Script(fungible.DefaultParams())
	if err != nil {
		fatalf("fungible.Script: %v", err)
	}
	lib2, err := paddedLibrary()
	if err != nil {
		fatalf("assemble padded library: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatalf("mkdir out: %v", err)
	}
	writeVector(*outDir, "library_1", lib1)
	writeVector(*outDir, "library_2", lib2)
}

// paddedLibrary places its entries behind a nop prologue so the vector
// exercises base64 wrapping and non-zero entry offsets.
func paddedLibrary() (*script.Library, error) {
	instrs := make([]script.Instr, 0, 33)
	for i := 0; i < 30; i++ {
		instrs = append(instrs, script.Instr{Op: isa.OpNop})
	}
	instrs = append(instrs,
		script.Instr{Op: isa.OpPCCS, Operands: []uint16{0x0FA0, 0x07D0}},
		script.Instr{Op: isa.OpRet},
		script.Instr{Op: isa.OpPCVS, Operands: []uint16{0x0FA0}},
	)
	return script.Assemble(instrs)
}

func writeVector(dir, name string, lib *script.Library) {
	env, err := armor.Seal(armor.TypeLibrary, map[string]string{
		"Developer": vectorDeveloper,
	}, lib.Bytes())
	if err != nil {
		fatalf("seal %s: %v", name, err)
	}
	armorPath := filepath.Join(dir, name+".armor")
	cidPath := filepath.Join(dir, name+".cid")
	if err := os.WriteFile(armorPath, env.Raw(), 0o644); err != nil {
		fatalf("write %s: %v", armorPath, err)
	}
	if err := os.WriteFile(cidPath, []byte(strings.TrimSpace(env.ID())+"\n"), 0o644); err != nil {
		fatalf("write %s: %v", cidPath, err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
