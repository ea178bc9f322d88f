package isa

import "testing"

func TestLookupKnownOps(t *testing.T) {
	cases := []struct {
		op       Opcode
		name     string
		operands int
		size     int
	}{
		{OpRet, "ret", 0, 1},
		{OpFail, "fail", 0, 1},
		{OpNop, "nop", 0, 1},
		{OpPCCS, "pccs", 2, 5},
		{OpPCVS, "pcvs", 1, 3},
	}
	for _, tc := range cases {
		s, ok := Lookup(tc.op)
		if !ok {
			t.Fatalf("Lookup(%#02x): unknown", byte(tc.op))
		}
		if s.Name != tc.name || s.Operands != tc.operands {
			t.Fatalf("Lookup(%#02x) = %+v, want name %q operands %d", byte(tc.op), s, tc.name, tc.operands)
		}
		if got := s.Size(); got != tc.size {
			t.Fatalf("%s: Size() = %d, want %d", tc.name, got, tc.size)
		}
		n, ok := LookupName(tc.name)
		if !ok || n.Op != tc.op {
			t.Fatalf("LookupName(%q) = %+v ok=%v, want op %#02x", tc.name, n, ok, byte(tc.op))
		}
		if tc.op.String() != tc.name {
			t.Fatalf("String(%#02x) = %q, want %q", byte(tc.op), tc.op.String(), tc.name)
		}
	}
}

func TestCommitmentClass(t *testing.T) {
	for _, op := range []Opcode{OpPCCS, OpPCVS, 0xDF} {
		if !op.Commitment() {
			t.Errorf("%#02x: Commitment() = false", byte(op))
		}
	}
	for _, op := range []Opcode{OpRet, OpFail, OpNop, 0xBF, 0xE0} {
		if op.Commitment() {
			t.Errorf("%#02x: Commitment() = true", byte(op))
		}
	}
}

func TestLookupReserved(t *testing.T) {
	for _, op := range []Opcode{0x03, 0x40, 0xBF, 0xC2, 0xFF} {
		if _, ok := Lookup(op); ok {
			t.Fatalf("Lookup(%#02x): reserved opcode resolved", byte(op))
		}
	}
	if _, ok := LookupName("jmp"); ok {
		t.Fatal(`LookupName("jmp") resolved`)
	}
	if got := Opcode(0xEE).String(); got != "op(0xee)" {
		t.Fatalf("reserved String() = %q", got)
	}
}
