// Package isa describes the instruction surface of the zk-arithmetic VM
// that executes charter validation scripts. The compiler side of this
// module only assembles, addresses, and audits code for that VM; it never
// executes it. Opcode numbering, operand arities, and structural limits
// are fixed by the VM and must not drift: every encoded stream this
// module emits is addressed byte-for-byte by validator entry points.
package isa

import "fmt"

// Opcode is a single-byte VM operation code.
//
// Layout of the numbering space:
//
//	0x00..0x3F  control
//	0xC0..0xDF  pedersen-commitment arithmetic extension
//
// Everything else is reserved and rejected by the assembler and the
// disassembler alike.
type Opcode byte

const (
	// OpRet returns from the current subroutine. Every subroutine in a
	// validation library terminates with it.
	OpRet Opcode = 0x00
	// OpFail aborts validation unconditionally.
	OpFail Opcode = 0x01
	// OpNop does nothing.
	OpNop Opcode = 0x02

	// OpPCCS checks that the pedersen commitment sum over the operation's
	// state lies within the two immediate range bounds (upper, lower).
	OpPCCS Opcode = 0xC0
	// OpPCVS verifies conservation of the pedersen commitment sum across
	// inputs and outputs for the immediate commitment family selector.
	OpPCVS Opcode = 0xC1
)

// Spec describes one opcode: its mnemonic and how many 16-bit immediate
// operands follow the opcode byte in the encoded stream.
type Spec struct {
	Op       Opcode
	Name     string
	Operands int
}

// Size returns the encoded length of an instruction with this spec:
// the opcode byte plus two bytes per immediate operand.
func (s Spec) Size() int {
	return 1 + 2*s.Operands
}

var specs = []Spec{
	{OpRet, "ret", 0},
	{OpFail, "fail", 0},
	{OpNop, "nop", 0},
	{OpPCCS, "pccs", 2},
	{OpPCVS, "pcvs", 1},
}

var (
	byOp   = make(map[Opcode]Spec, len(specs))
	byName = make(map[string]Spec, len(specs))
)

func init() {
	for _, s := range specs {
		if _, dup := byOp[s.Op]; dup {
			panic(fmt.Sprintf("isa: duplicate opcode %#02x", byte(s.Op)))
		}
		if _, dup := byName[s.Name]; dup {
			panic(fmt.Sprintf("isa: duplicate mnemonic %q", s.Name))
		}
		byOp[s.Op] = s
		byName[s.Name] = s
	}
}

// Lookup returns the spec for op, or ok=false for reserved opcodes.
func Lookup(op Opcode) (Spec, bool) {
	s, ok := byOp[op]
	return s, ok
}

// LookupName returns the spec for a mnemonic, or ok=false if unknown.
func LookupName(name string) (Spec, bool) {
	s, ok := byName[name]
	return s, ok
}

// String returns the mnemonic, or a hex form for reserved opcodes.
func (op Opcode) String() string {
	if s, ok := byOp[op]; ok {
		return s.Name
	}
	return fmt.Sprintf("op(%#02x)", byte(op))
}

// Commitment reports whether op belongs to the pedersen-commitment
// arithmetic extension. Validator entry points must land on one of
// these.
func (op Opcode) Commitment() bool {
	return op >= 0xC0 && op <= 0xDF
}

// MaxCodeLen is the VM's limit on a single library's code segment. Entry
// points are 16-bit byte offsets, so every byte of a maximal segment
// remains addressable.
const MaxCodeLen = 1 << 16

// Oracle is the execution seam to a real VM engine. The audit layer can
// drive it to prove that a validator entry is executable; this module
// never provides a production implementation.
type Oracle interface {
	// Exec runs code starting at entry with the given witness and
	// returns nil if validation succeeds.
	Exec(code []byte, entry uint16, witness []byte) error
}
