package schema

import (
	"testing"

	"xledger.io/charter/fault"
)

func TestOccurrencesCheck(t *testing.T) {
	cases := []struct {
		occ    Occurrences
		count  uint16
		ruleID string // "" means accepted
	}{
		{Once(), 1, ""},
		{Once(), 0, "CHARTER-OCC-001"},
		{Once(), 2, "CHARTER-OCC-002"},
		{OnceOrMore(), 1, ""},
		{OnceOrMore(), 40000, ""},
		{OnceOrMore(), 0, "CHARTER-OCC-001"},
		{NoneOrOnce(), 0, ""},
		{NoneOrOnce(), 1, ""},
		{NoneOrOnce(), 2, "CHARTER-OCC-002"},
		{NoneOrMore(), 0, ""},
		{NoneOrMore(), 65535, ""},
		{Between(2, 4), 3, ""},
		{Between(2, 4), 1, "CHARTER-OCC-001"},
		{Between(2, 4), 5, "CHARTER-OCC-002"},
	}
	for _, tc := range cases {
		err := tc.occ.Check(tc.count)
		if tc.ruleID == "" {
			if err != nil {
				t.Fatalf("%s.Check(%d): unexpected %v", tc.occ, tc.count, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%s.Check(%d): accepted", tc.occ, tc.count)
		}
		if got := fault.RuleID(err); got != tc.ruleID {
			t.Fatalf("%s.Check(%d): rule %q, want %q", tc.occ, tc.count, got, tc.ruleID)
		}
	}
}

func TestOccurrencesString(t *testing.T) {
	cases := map[string]Occurrences{
		"once":         Once(),
		"once-or-more": OnceOrMore(),
		"none-or-once": NoneOrOnce(),
		"none-or-more": NoneOrMore(),
		"between(2,7)": Between(2, 7),
		"between(3,3)": Between(3, 3),
	}
	for want, occ := range cases {
		if got := occ.String(); got != want {
			t.Fatalf("String = %q, want %q", got, want)
		}
	}
}

func TestOccurrencesWellFormed(t *testing.T) {
	if err := Between(3, 2).wellFormed(); fault.RuleID(err) != "CHARTER-OCC-003" {
		t.Fatalf("inverted bounds: %v", err)
	}
	if err := Between(0, 0).wellFormed(); fault.RuleID(err) != "CHARTER-OCC-003" {
		t.Fatalf("zero capacity: %v", err)
	}
	if err := Once().wellFormed(); err != nil {
		t.Fatalf("once: %v", err)
	}
}
