// Package typesys models the strict type system charter schemas draw
// their state data shapes from. A System is an immutable, content-
// addressed catalogue of named shape definitions; schemas refer to a
// definition by its semantic id, never by name, so renaming a type is a
// new type.
//
// The shape notation itself is opaque here: this module guarantees
// canonical bytes and stable ids, and leaves structural interpretation
// to the VM-side type library.
package typesys

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/cidutil"
	"xledger.io/charter/fault"
)

// SemID is the semantic identifier of one type definition: a CIDv1
// (raw + sha2-256) over the definition's canonical line, qualified by
// its system name.
type SemID = cid.Cid

// Def is one named shape definition.
type Def struct {
	Name  string
	Shape string
}

// canonicalLine is the def's canonical text, qualified by system name.
func (d Def) canonicalLine(system string) string {
	return system + "." + d.Name + " = " + d.Shape + "\n"
}

// System is an immutable catalogue of definitions. Construct with
// NewSystem or ParseSystem.
type System struct {
	name string
	defs map[string]Def
	raw  []byte
	id   cid.Cid
}

// NewSystem builds a catalogue. Definition names must be unique ASCII
// identifiers; shapes must be single-line printable ASCII.
func NewSystem(name string, defs ...Def) (*System, error) {
	if !isIdent(name) {
		return nil, fault.New(fault.KindValidation, "CHARTER-TYP-001",
			fmt.Sprintf("invalid system name %q", name))
	}
	if len(defs) == 0 {
		return nil, fault.New(fault.KindValidation, "CHARTER-TYP-002", "system has no definitions")
	}
	m := make(map[string]Def, len(defs))
	for _, d := range defs {
		if !isIdent(d.Name) {
			return nil, fault.New(fault.KindValidation, "CHARTER-TYP-003",
				fmt.Sprintf("invalid definition name %q", d.Name))
		}
		if !isShape(d.Shape) {
			return nil, fault.New(fault.KindValidation, "CHARTER-TYP-004",
				fmt.Sprintf("definition %q: shape must be single-line printable ASCII", d.Name))
		}
		if _, dup := m[d.Name]; dup {
			return nil, fault.New(fault.KindValidation, "CHARTER-TYP-005",
				fmt.Sprintf("duplicate definition %q", d.Name))
		}
		m[d.Name] = d
	}
	s := &System{name: name, defs: m}
	s.raw = s.render()
	id, err := cidutil.CIDv1RawSHA256CID(s.raw)
	if err != nil {
		return nil, fault.Wrap(fault.KindCID, "CHARTER-TYP-006", "derive system id", err)
	}
	s.id = id
	return s, nil
}

func (s *System) render() []byte {
	var b bytes.Buffer
	b.WriteString("typesys " + s.name + "\n")
	for _, n := range s.Names() {
		b.WriteString(s.defs[n].canonicalLine(s.name))
	}
	return b.Bytes()
}

// ParseSystem parses the canonical text form. Non-canonical input
// (unsorted, reordered, or reformatted) is rejected by re-render
// comparison.
func ParseSystem(data []byte) (*System, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[0], "typesys ") {
		return nil, fault.New(fault.KindParse, "CHARTER-TYP-007", "missing typesys header")
	}
	name := strings.TrimPrefix(lines[0], "typesys ")
	var defs []Def
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		rest, ok := strings.CutPrefix(line, name+".")
		if !ok {
			return nil, fault.New(fault.KindParse, "CHARTER-TYP-007",
				fmt.Sprintf("definition %q not qualified by system name", line))
		}
		defName, shape, ok := strings.Cut(rest, " = ")
		if !ok {
			return nil, fault.New(fault.KindParse, "CHARTER-TYP-007",
				fmt.Sprintf("malformed definition %q", line))
		}
		defs = append(defs, Def{Name: defName, Shape: shape})
	}
	s, err := NewSystem(name, defs...)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(s.raw, data) {
		return nil, fault.New(fault.KindCanonical, "CHARTER-TYP-008", "non-canonical type system text")
	}
	return s, nil
}

// Name returns the system name.
func (s *System) Name() string { return s.name }

// Names returns definition names in lexicographic order.
func (s *System) Names() []string {
	names := make([]string, 0, len(s.defs))
	for n := range s.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the definition with the given name.
func (s *System) Get(name string) (Def, bool) {
	d, ok := s.defs[name]
	return d, ok
}

// SemID resolves a definition name to its semantic id.
func (s *System) SemID(name string) (SemID, error) {
	d, ok := s.defs[name]
	if !ok {
		return cid.Undef, fault.New(fault.KindValidation, "CHARTER-TYP-009",
			fmt.Sprintf("no definition %q in system %q", name, s.name))
	}
	id, err := cidutil.CIDv1RawSHA256CID([]byte(d.canonicalLine(s.name)))
	if err != nil {
		return cid.Undef, fault.Wrap(fault.KindCID, "CHARTER-TYP-006", "derive semantic id", err)
	}
	return id, nil
}

// Contains reports whether some definition in the system has the given
// semantic id.
func (s *System) Contains(id SemID) bool {
	for n := range s.defs {
		sid, err := s.SemID(n)
		if err == nil && sid.Equals(id) {
			return true
		}
	}
	return false
}

// Bytes returns a copy of the canonical text form.
func (s *System) Bytes() []byte {
	return append([]byte(nil), s.raw...)
}

// ID returns the system's content identifier over its canonical bytes.
func (s *System) ID() cid.Cid { return s.id }

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' || r == '-':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func isShape(s string) bool {
	if s == "" || s != strings.TrimSpace(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return false
		}
	}
	return true
}
