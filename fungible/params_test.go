package fungible

import (
	"os"
	"path/filepath"
	"testing"

	"xledger.io/charter/fault"
)

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	cases := []struct {
		name string
		p    Params
	}{
		{"inverted bounds", Params{SumUpper: 100, SumLower: 200, ConservationFamily: 1}},
		{"zero upper", Params{SumUpper: 0, SumLower: 0, ConservationFamily: 1}},
		{"zero family", Params{SumUpper: 10, SumLower: 1, ConservationFamily: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if err == nil {
				t.Fatal("Validate accepted")
			}
			if got := fault.RuleID(err); got != "CHARTER-FAM-001" {
				t.Fatalf("rule = %q, want CHARTER-FAM-001", got)
			}
		})
	}
}

func writeParams(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write params: %v", err)
	}
	return path
}

func TestLoadParams(t *testing.T) {
	p, err := LoadParams(writeParams(t, "sum_upper = 5000\nsum_lower = 2500\nconservation_family = 5000\n"))
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	want := Params{SumUpper: 5000, SumLower: 2500, ConservationFamily: 5000}
	if p != want {
		t.Fatalf("LoadParams = %+v, want %+v", p, want)
	}
}

func TestLoadParamsPartialKeepsDefaults(t *testing.T) {
	p, err := LoadParams(writeParams(t, "sum_lower = 1500\n"))
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	def := DefaultParams()
	if p.SumLower != 1500 || p.SumUpper != def.SumUpper || p.ConservationFamily != def.ConservationFamily {
		t.Fatalf("LoadParams = %+v, want defaults with sum_lower overridden", p)
	}
}

func TestLoadParamsRejections(t *testing.T) {
	t.Run("unknown key", func(t *testing.T) {
		if _, err := LoadParams(writeParams(t, "sum_uper = 1\n")); err == nil {
			t.Fatal("accepted unknown key")
		}
	})
	t.Run("bad relation", func(t *testing.T) {
		_, err := LoadParams(writeParams(t, "sum_upper = 10\nsum_lower = 20\n"))
		if got := fault.RuleID(err); got != "CHARTER-FAM-001" {
			t.Fatalf("rule = %q, want CHARTER-FAM-001 (err: %v)", got, err)
		}
	})
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadParams(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Fatal("accepted missing file")
		}
	})
	t.Run("malformed toml", func(t *testing.T) {
		if _, err := LoadParams(writeParams(t, "sum_upper ===\n")); err == nil {
			t.Fatal("accepted malformed file")
		}
	})
}
