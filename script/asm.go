package script

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"xledger.io/charter/fault"
	"xledger.io/charter/isa"
)

// AssembleSource assembles charter assembly text into a Library and
// returns the entry table: label name to byte offset.
//
// Syntax, one item per line:
//
//	; comment to end of line
//	label:
//	    mnemonic operand, operand
//
// Operands are unsigned 16-bit literals, decimal or 0x-prefixed hex.
// Labels mark subroutine entry points and may not repeat. The same
// strictness rules as every other charter text format apply: UTF-8, LF
// line endings, no BOM, no trailing whitespace.
func AssembleSource(src string) (*Library, map[string]uint16, error) {
	data := []byte(src)
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, nil, fault.New(fault.KindParse, "CHARTER-ASM-007", "BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, nil, fault.New(fault.KindParse, "CHARTER-ASM-007", "CR line endings not allowed")
	}

	var (
		instrs  []Instr
		entries = make(map[string]uint16)
		pos     int
	)
	for lineNo, rawLine := range strings.Split(src, "\n") {
		if l := len(rawLine); l > 0 && (rawLine[l-1] == ' ' || rawLine[l-1] == '\t') {
			return nil, nil, asmErr(lineNo+1, "CHARTER-ASM-007", "trailing whitespace forbidden")
		}
		line := rawLine
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, ":") {
			label := strings.TrimSuffix(line, ":")
			if !isLabel(label) {
				return nil, nil, asmErr(lineNo+1, "CHARTER-ASM-006", fmt.Sprintf("invalid label %q", label))
			}
			if _, dup := entries[label]; dup {
				return nil, nil, asmErr(lineNo+1, "CHARTER-ASM-006", fmt.Sprintf("duplicate label %q", label))
			}
			if pos > int(^uint16(0)) {
				return nil, nil, asmErr(lineNo+1, "CHARTER-ASM-005", fmt.Sprintf("label %q beyond addressable range", label))
			}
			entries[label] = uint16(pos)
			continue
		}

		fields := strings.Fields(line)
		in, err := parseInstr(fields)
		if err != nil {
			return nil, nil, asmErr(lineNo+1, fault.RuleID(err), err.Error())
		}
		instrs = append(instrs, in)
		pos += in.EncodedLen()
	}

	lib, err := Assemble(instrs)
	if err != nil {
		return nil, nil, err
	}
	return lib, entries, nil
}

func parseInstr(fields []string) (Instr, error) {
	spec, ok := isa.LookupName(fields[0])
	if !ok {
		return Instr{}, fault.New(fault.KindParse, "CHARTER-ASM-001",
			fmt.Sprintf("unknown mnemonic %q", fields[0]))
	}
	operands := fields[1:]
	if len(operands) != spec.Operands {
		return Instr{}, fault.New(fault.KindParse, "CHARTER-ASM-002",
			fmt.Sprintf("%s takes %d operand(s), got %d", spec.Name, spec.Operands, len(operands)))
	}
	if n := len(operands); n > 0 && strings.HasSuffix(operands[n-1], ",") {
		return Instr{}, fault.New(fault.KindParse, "CHARTER-ASM-003", "trailing comma after last operand")
	}
	in := Instr{Op: spec.Op}
	for _, f := range operands {
		// A comma separator may ride along with the field.
		f = strings.TrimSuffix(f, ",")
		v, err := strconv.ParseUint(f, 0, 16)
		if err != nil {
			return Instr{}, fault.New(fault.KindParse, "CHARTER-ASM-003",
				fmt.Sprintf("operand %q: not an unsigned 16-bit literal", f))
		}
		in.Operands = append(in.Operands, uint16(v))
	}
	return in, nil
}

func asmErr(line int, ruleID, msg string) error {
	return fault.New(fault.KindParse, ruleID, fmt.Sprintf("line %d: %s", line, msg))
}

func isLabel(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Disassemble renders a library's code back to assembly text. The output
// re-assembles to the identical LibraryID.
func Disassemble(lib *Library) (string, error) {
	instrs, _, err := Decode(lib.Code())
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, in := range instrs {
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String(), nil
}
