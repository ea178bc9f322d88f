package typesys

import (
	"bytes"
	"testing"

	"xledger.io/charter/fault"
)

func TestStandardCatalogue(t *testing.T) {
	s := Standard()
	if s.Name() != StandardName {
		t.Fatalf("Name = %q", s.Name())
	}
	for _, name := range []string{DefAmount, DefAssetSpec, DefAssetTerms} {
		if _, ok := s.Get(name); !ok {
			t.Fatalf("standard catalogue missing %q", name)
		}
		id, err := s.SemID(name)
		if err != nil {
			t.Fatalf("SemID(%q): %v", name, err)
		}
		if !s.Contains(id) {
			t.Fatalf("Contains(SemID(%q)) = false", name)
		}
	}
}

func TestSystemIDDeterministic(t *testing.T) {
	a, err := NewSystem("vocab", Def{Name: "A", Shape: "u8"}, Def{Name: "B", Shape: "u16"})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	// Same definitions in reverse insertion order.
	b, err := NewSystem("vocab", Def{Name: "B", Shape: "u16"}, Def{Name: "A", Shape: "u8"})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	if !a.ID().Equals(b.ID()) {
		t.Fatal("definition insertion order changed the system id")
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("definition insertion order changed canonical bytes")
	}

	c, err := NewSystem("vocab", Def{Name: "A", Shape: "u8"}, Def{Name: "B", Shape: "u32"})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	if a.ID().Equals(c.ID()) {
		t.Fatal("changed shape, same system id")
	}
}

func TestSemIDQualifiedBySystem(t *testing.T) {
	a, _ := NewSystem("one", Def{Name: "T", Shape: "u8"})
	b, _ := NewSystem("two", Def{Name: "T", Shape: "u8"})
	idA, err := a.SemID("T")
	if err != nil {
		t.Fatal(err)
	}
	idB, err := b.SemID("T")
	if err != nil {
		t.Fatal(err)
	}
	if idA.Equals(idB) {
		t.Fatal("identical SemID across different systems")
	}
	if _, err := a.SemID("missing"); fault.RuleID(err) != "CHARTER-TYP-009" {
		t.Fatalf("missing def: %v", err)
	}
}

func TestParseSystemRoundTrip(t *testing.T) {
	s := Standard()
	back, err := ParseSystem(s.Bytes())
	if err != nil {
		t.Fatalf("ParseSystem: %v", err)
	}
	if !back.ID().Equals(s.ID()) {
		t.Fatal("round trip changed id")
	}
}

func TestParseSystemRejectsNonCanonical(t *testing.T) {
	s, _ := NewSystem("vocab", Def{Name: "A", Shape: "u8"}, Def{Name: "B", Shape: "u16"})
	canonical := string(s.Bytes())

	cases := []struct {
		name string
		in   string
	}{
		{"no header", "vocab.A = u8\n"},
		{"reordered defs", "typesys vocab\nvocab.B = u16\nvocab.A = u8\n"},
		{"unqualified def", "typesys vocab\nA = u8\nvocab.B = u16\n"},
		{"crlf", "typesys vocab\r\nvocab.A = u8\r\n"},
		{"extra spaces", "typesys vocab\nvocab.A  =  u8\nvocab.B = u16\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.in == canonical {
				t.Fatal("test case is canonical")
			}
			if _, err := ParseSystem([]byte(tc.in)); err == nil {
				t.Fatalf("accepted non-canonical input %q", tc.in)
			}
		})
	}
}

func TestNewSystemRejections(t *testing.T) {
	cases := []struct {
		name   string
		sys    string
		defs   []Def
		ruleID string
	}{
		{"bad system name", "9vocab", []Def{{Name: "A", Shape: "u8"}}, "CHARTER-TYP-001"},
		{"no defs", "vocab", nil, "CHARTER-TYP-002"},
		{"bad def name", "vocab", []Def{{Name: "bad name", Shape: "u8"}}, "CHARTER-TYP-003"},
		{"multiline shape", "vocab", []Def{{Name: "A", Shape: "u8\nu16"}}, "CHARTER-TYP-004"},
		{"duplicate def", "vocab", []Def{{Name: "A", Shape: "u8"}, {Name: "A", Shape: "u8"}}, "CHARTER-TYP-005"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSystem(tc.sys, tc.defs...)
			if err == nil {
				t.Fatal("NewSystem accepted")
			}
			if got := fault.RuleID(err); got != tc.ruleID {
				t.Fatalf("rule = %q, want %q (err: %v)", got, tc.ruleID, err)
			}
		})
	}
}
