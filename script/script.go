// Package script assembles validation code for the charter VM into
// immutable, content-addressed libraries.
//
// A Library is constructed exactly once, from a symbolic instruction
// sequence (Assemble) or from assembly text (AssembleSource), and never
// changes afterwards. Its identity is a CIDv1 over its canonical
// serialized form, so two builds from the same instructions always agree
// on the LibraryID regardless of when or where they ran.
//
// Validator entry points address raw byte offsets inside a library's code
// segment. CheckEntry is the build-time guard that an offset lands on an
// instruction boundary carrying the expected opcode; every component that
// records an entry point must run it before publishing.
package script

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/cidutil"
	"xledger.io/charter/fault"
	"xledger.io/charter/isa"
)

// Instr is one symbolic instruction: an opcode and its 16-bit immediate
// operands, in stream order.
type Instr struct {
	Op       isa.Opcode
	Operands []uint16
}

// EncodedLen returns the byte length of the instruction once encoded.
func (in Instr) EncodedLen() int {
	return 1 + 2*len(in.Operands)
}

func (in Instr) String() string {
	var b bytes.Buffer
	b.WriteString(in.Op.String())
	for i, op := range in.Operands {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%#04x", op)
	}
	return b.String()
}

// Canonical serialized form of a library:
//
//	offset 0  magic "CSL1"
//	offset 4  u16 format version (big-endian)
//	offset 6  u32 code length (big-endian)
//	offset 10 code bytes
//
// No padding, no trailing bytes.
const (
	Magic         = "CSL1"
	FormatVersion = 1

	headerLen = 10
)

// Library is an immutable encoded instruction stream. Construct with
// Assemble, AssembleSource, or ParseLibrary; the zero value is not valid.
type Library struct {
	code []byte
	raw  []byte
	id   cid.Cid
}

// Assemble encodes instrs into a Library. Every opcode must be known to
// the ISA with a matching operand count; the encoded stream must be
// non-empty and fit the VM's code-segment limit.
func Assemble(instrs []Instr) (*Library, error) {
	if len(instrs) == 0 {
		return nil, fault.New(fault.KindValidation, "CHARTER-ASM-004", "empty instruction stream")
	}
	var code bytes.Buffer
	for i, in := range instrs {
		spec, ok := isa.Lookup(in.Op)
		if !ok {
			return nil, fault.New(fault.KindValidation, "CHARTER-ASM-001",
				fmt.Sprintf("instruction %d: unknown opcode %#02x", i, byte(in.Op)))
		}
		if len(in.Operands) != spec.Operands {
			return nil, fault.New(fault.KindValidation, "CHARTER-ASM-002",
				fmt.Sprintf("instruction %d: %s takes %d operand(s), got %d", i, spec.Name, spec.Operands, len(in.Operands)))
		}
		code.WriteByte(byte(in.Op))
		for _, op := range in.Operands {
			var buf [2]byte
			binary.BigEndian.PutUint16(buf[:], op)
			code.Write(buf[:])
		}
	}
	if code.Len() > isa.MaxCodeLen {
		return nil, fault.New(fault.KindValidation, "CHARTER-ASM-005",
			fmt.Sprintf("code segment %d bytes exceeds VM limit %d", code.Len(), isa.MaxCodeLen))
	}
	return fromCode(code.Bytes())
}

func fromCode(code []byte) (*Library, error) {
	raw := make([]byte, 0, headerLen+len(code))
	raw = append(raw, Magic...)
	raw = binary.BigEndian.AppendUint16(raw, FormatVersion)
	raw = binary.BigEndian.AppendUint32(raw, uint32(len(code)))
	raw = append(raw, code...)
	id, err := cidutil.CIDv1RawSHA256CID(raw)
	if err != nil {
		return nil, fault.Wrap(fault.KindCID, "CHARTER-LIB-005", "derive library id", err)
	}
	return &Library{code: raw[headerLen:], raw: raw, id: id}, nil
}

// ParseLibrary decodes the canonical serialized form. Inputs that are not
// byte-for-byte canonical (bad magic, foreign version, length mismatch,
// trailing bytes, undecodable code) are rejected.
func ParseLibrary(raw []byte) (*Library, error) {
	if len(raw) < headerLen {
		return nil, fault.New(fault.KindParse, "CHARTER-LIB-003",
			fmt.Sprintf("library form truncated: %d bytes", len(raw)))
	}
	if string(raw[:4]) != Magic {
		return nil, fault.New(fault.KindParse, "CHARTER-LIB-001",
			fmt.Sprintf("bad magic %q", raw[:4]))
	}
	if v := binary.BigEndian.Uint16(raw[4:6]); v != FormatVersion {
		return nil, fault.New(fault.KindParse, "CHARTER-LIB-002",
			fmt.Sprintf("unsupported format version %d", v))
	}
	n := binary.BigEndian.Uint32(raw[6:10])
	if int(n) != len(raw)-headerLen {
		return nil, fault.New(fault.KindCanonical, "CHARTER-LIB-003",
			fmt.Sprintf("declared code length %d, actual %d", n, len(raw)-headerLen))
	}
	code := raw[headerLen:]
	if len(code) == 0 {
		return nil, fault.New(fault.KindValidation, "CHARTER-ASM-004", "empty instruction stream")
	}
	if _, _, err := Decode(code); err != nil {
		return nil, err
	}
	lib, err := fromCode(code)
	if err != nil {
		return nil, err
	}
	// fromCode rebuilds the header; equality here guards against a header
	// variant that decodes to the same code.
	if !bytes.Equal(lib.raw, raw) {
		return nil, fault.New(fault.KindCanonical, "CHARTER-LIB-004", "non-canonical library form")
	}
	return lib, nil
}

// Decode decodes an encoded code segment back into symbolic instructions
// and the byte offset of each. It fails on reserved opcodes and on a
// stream that ends inside an instruction.
func Decode(code []byte) ([]Instr, []uint16, error) {
	var (
		instrs  []Instr
		offsets []uint16
	)
	pos := 0
	for pos < len(code) {
		spec, ok := isa.Lookup(isa.Opcode(code[pos]))
		if !ok {
			return nil, nil, fault.New(fault.KindParse, "CHARTER-LIB-006",
				fmt.Sprintf("reserved opcode %#02x at offset %d", code[pos], pos))
		}
		if pos+spec.Size() > len(code) {
			return nil, nil, fault.New(fault.KindParse, "CHARTER-LIB-007",
				fmt.Sprintf("stream ends inside %s at offset %d", spec.Name, pos))
		}
		in := Instr{Op: spec.Op}
		for i := 0; i < spec.Operands; i++ {
			in.Operands = append(in.Operands, binary.BigEndian.Uint16(code[pos+1+2*i:]))
		}
		instrs = append(instrs, in)
		offsets = append(offsets, uint16(pos))
		pos += spec.Size()
	}
	return instrs, offsets, nil
}

// Offsets returns the byte offset each instruction would occupy once
// assembled. It mirrors Assemble's encoding without building the stream,
// so authors can derive entry points before construction.
func Offsets(instrs []Instr) []uint16 {
	offs := make([]uint16, len(instrs))
	pos := 0
	for i, in := range instrs {
		offs[i] = uint16(pos)
		pos += in.EncodedLen()
	}
	return offs
}

// ID returns the library's content identifier: a CIDv1 (raw + sha2-256)
// over the canonical serialized form.
func (l *Library) ID() cid.Cid {
	return l.id
}

// Code returns a copy of the encoded instruction stream.
func (l *Library) Code() []byte {
	return append([]byte(nil), l.code...)
}

// Bytes returns a copy of the canonical serialized form.
func (l *Library) Bytes() []byte {
	return append([]byte(nil), l.raw...)
}

// CodeLen returns the encoded stream length in bytes.
func (l *Library) CodeLen() int {
	return len(l.code)
}

// OpcodeAt returns the opcode byte at pos without boundary checking
// beyond bounds. Most callers want CheckEntry instead.
func (l *Library) OpcodeAt(pos uint16) (isa.Opcode, bool) {
	if int(pos) >= len(l.code) {
		return 0, false
	}
	return isa.Opcode(l.code[pos]), true
}

// EntryBoundary verifies that pos lies inside lib's code segment and
// lands on an instruction boundary.
func EntryBoundary(lib *Library, pos uint16) error {
	if int(pos) >= len(lib.code) {
		return fault.New(fault.KindValidation, "CHARTER-OFF-001",
			fmt.Sprintf("entry offset %d outside code segment of %d bytes", pos, len(lib.code)))
	}
	_, offsets, err := Decode(lib.code)
	if err != nil {
		return err
	}
	for _, o := range offsets {
		if o == pos {
			return nil
		}
	}
	return fault.New(fault.KindValidation, "CHARTER-OFF-002",
		fmt.Sprintf("entry offset %d is not an instruction boundary", pos))
}

// CheckEntry verifies that pos is a valid validator entry point in lib:
// in bounds, on an instruction boundary, and carrying the opcode want.
// A failure is fatal to whatever build recorded the entry point.
func CheckEntry(lib *Library, pos uint16, want isa.Opcode) error {
	if err := EntryBoundary(lib, pos); err != nil {
		return err
	}
	if got := isa.Opcode(lib.code[pos]); got != want {
		return fault.New(fault.KindValidation, "CHARTER-OFF-003",
			fmt.Sprintf("entry offset %d: opcode %s, declared semantics require %s", pos, got, want))
	}
	return nil
}
