package script

import (
	"testing"

	"xledger.io/charter/fault"
	"xledger.io/charter/isa"
)

func TestSetDeduplicates(t *testing.T) {
	a := mustAssemble(t, twoEntryProgram())
	b := mustAssemble(t, twoEntryProgram())
	other := mustAssemble(t, []Instr{{Op: isa.OpRet}})

	s := NewSet(a, b, other)
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (identical streams must deduplicate)", s.Len())
	}
	got, ok := s.Get(a.ID())
	if !ok || !got.ID().Equals(b.ID()) {
		t.Fatal("Get lost the deduplicated library")
	}

	ids := s.IDs()
	if len(ids) != 2 {
		t.Fatalf("IDs = %v", ids)
	}
	if ids[0].String() >= ids[1].String() {
		t.Fatalf("IDs not sorted: %v", ids)
	}
}

func TestSetResolve(t *testing.T) {
	lib := mustAssemble(t, twoEntryProgram())
	stranger := mustAssemble(t, []Instr{{Op: isa.OpNop}, {Op: isa.OpRet}})
	s := NewSet(lib)

	if _, err := s.Resolve(Site{Lib: lib.ID(), Pos: 0}); err != nil {
		t.Fatalf("Resolve known: %v", err)
	}
	_, err := s.Resolve(Site{Lib: stranger.ID(), Pos: 0})
	if err == nil {
		t.Fatal("Resolve accepted a library outside the set")
	}
	if got := fault.RuleID(err); got != "CHARTER-OFF-004" {
		t.Fatalf("rule = %q, want CHARTER-OFF-004", got)
	}
}

func TestSetCheckSite(t *testing.T) {
	lib := mustAssemble(t, twoEntryProgram())
	s := NewSet(lib)

	if err := s.CheckSite(Site{Lib: lib.ID(), Pos: 6}, isa.OpPCVS); err != nil {
		t.Fatalf("CheckSite good: %v", err)
	}
	if err := s.CheckSite(Site{Lib: lib.ID(), Pos: 6}, isa.OpPCCS); err == nil {
		t.Fatal("CheckSite accepted wrong opcode")
	}
}
