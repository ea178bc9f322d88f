package schema

import (
	"bytes"
	"testing"

	"xledger.io/charter/fault"
	"xledger.io/charter/isa"
	"xledger.io/charter/script"
	"xledger.io/charter/typesys"
)

const (
	gsSpec   GlobalSlot = 2000
	gsTerms  GlobalSlot = 2001
	gsSupply GlobalSlot = 2010

	osAsset OwnedSlot = 4000

	tsTransfer TransitionType = 10000
)

func testLibrary(t *testing.T) *script.Library {
	t.Helper()
	lib, err := script.Assemble([]script.Instr{
		{Op: isa.OpPCCS, Operands: []uint16{4000, 2000}},
		{Op: isa.OpRet},
		{Op: isa.OpPCVS, Operands: []uint16{4000}},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return lib
}

func semID(t *testing.T, name string) typesys.SemID {
	t.Helper()
	id, err := typesys.Standard().SemID(name)
	if err != nil {
		t.Fatalf("SemID(%s): %v", name, err)
	}
	return id
}

// assetSchema builds the reference fixture: one fungible owned slot, three
// global slots, genesis plus a transfer transition, both with validators.
func assetSchema(t *testing.T, lib *script.Library) *Schema {
	t.Helper()
	s, err := NewBuilder("TestAsset", "dns:example.com").
		Global(gsSpec, semID(t, typesys.DefAssetSpec), 1).
		Global(gsTerms, semID(t, typesys.DefAssetTerms), 1).
		Global(gsSupply, semID(t, typesys.DefAmount), 1).
		OwnedFungible(osAsset, AmountU64).
		Genesis(GenesisSchema{
			Globals: map[GlobalSlot]Occurrences{
				gsSpec:   Once(),
				gsTerms:  Once(),
				gsSupply: Once(),
			},
			Assignments: map[OwnedSlot]Occurrences{osAsset: OnceOrMore()},
			Validator:   &script.Site{Lib: lib.ID(), Pos: 0},
		}).
		Transition(tsTransfer, TransitionSchema{
			Inputs:      map[OwnedSlot]Occurrences{osAsset: OnceOrMore()},
			Assignments: map[OwnedSlot]Occurrences{osAsset: OnceOrMore()},
			Validator:   &script.Site{Lib: lib.ID(), Pos: 6},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func TestBuilderDuplicateRejections(t *testing.T) {
	sem := semID(t, typesys.DefAmount)
	cases := []struct {
		name   string
		build  func() (*Schema, error)
		ruleID string
	}{
		{"duplicate global", func() (*Schema, error) {
			return NewBuilder("A", "").Global(1, sem, 1).Global(1, sem, 1).Build()
		}, "CHARTER-SCH-101"},
		{"duplicate owned", func() (*Schema, error) {
			return NewBuilder("A", "").OwnedRights(1).OwnedFungible(1, AmountU64).Build()
		}, "CHARTER-SCH-102"},
		{"duplicate transition", func() (*Schema, error) {
			return NewBuilder("A", "").
				Transition(5, TransitionSchema{}).
				Transition(5, TransitionSchema{}).
				Build()
		}, "CHARTER-SCH-103"},
		{"genesis twice", func() (*Schema, error) {
			return NewBuilder("A", "").
				Genesis(GenesisSchema{Globals: map[GlobalSlot]Occurrences{}}).
				Genesis(GenesisSchema{Globals: map[GlobalSlot]Occurrences{}}).
				Build()
		}, "CHARTER-SCH-104"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.build()
			if err == nil {
				t.Fatal("Build accepted")
			}
			if got := fault.RuleID(err); got != tc.ruleID {
				t.Fatalf("rule = %q, want %q (err: %v)", got, tc.ruleID, err)
			}
		})
	}
}

func TestBuilderFirstErrorSticks(t *testing.T) {
	sem := semID(t, typesys.DefAmount)
	_, err := NewBuilder("A", "").
		Global(1, sem, 1).
		Global(1, sem, 1). // first mistake
		OwnedRights(2).
		OwnedRights(2). // second mistake, must not mask the first
		Build()
	if got := fault.RuleID(err); got != "CHARTER-SCH-101" {
		t.Fatalf("rule = %q, want the first failure CHARTER-SCH-101", got)
	}
}

func TestSchemaIDDeterministic(t *testing.T) {
	lib := testLibrary(t)
	a := assetSchema(t, lib)

	// Same declarations inserted in a different order.
	b, err := NewBuilder("TestAsset", "dns:example.com").
		OwnedFungible(osAsset, AmountU64).
		Global(gsSupply, semID(t, typesys.DefAmount), 1).
		Global(gsTerms, semID(t, typesys.DefAssetTerms), 1).
		Global(gsSpec, semID(t, typesys.DefAssetSpec), 1).
		Transition(tsTransfer, TransitionSchema{
			Inputs:      map[OwnedSlot]Occurrences{osAsset: OnceOrMore()},
			Assignments: map[OwnedSlot]Occurrences{osAsset: OnceOrMore()},
			Validator:   &script.Site{Lib: lib.ID(), Pos: 6},
		}).
		Genesis(GenesisSchema{
			Globals: map[GlobalSlot]Occurrences{
				gsSupply: Once(),
				gsSpec:   Once(),
				gsTerms:  Once(),
			},
			Assignments: map[OwnedSlot]Occurrences{osAsset: OnceOrMore()},
			Validator:   &script.Site{Lib: lib.ID(), Pos: 0},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	idA, err := a.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	idB, err := b.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if !idA.Equals(idB) {
		t.Fatalf("insertion order changed schema id: %s vs %s", idA, idB)
	}

	// Any semantic change must move the id.
	c := assetSchema(t, lib)
	c.Genesis.Assignments[osAsset] = Once()
	idC, err := c.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if idA.Equals(idC) {
		t.Fatal("changed occurrence bounds, same schema id")
	}
}

func TestSchemaEncodeParseRoundTrip(t *testing.T) {
	lib := testLibrary(t)
	s := assetSchema(t, lib)
	raw, err := s.MarshalCanonical()
	if err != nil {
		t.Fatalf("MarshalCanonical: %v", err)
	}
	back, err := ParseSchema(raw)
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}
	idA, _ := s.ID()
	idB, err := back.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if !idA.Equals(idB) {
		t.Fatal("round trip changed schema id")
	}
	raw2, err := back.MarshalCanonical()
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if !bytes.Equal(raw, raw2) {
		t.Fatal("round trip changed canonical bytes")
	}
	if err := back.Validate(script.NewSet(lib)); err != nil {
		t.Fatalf("Validate after round trip: %v", err)
	}
}

func TestParseSchemaRejectsNonCanonical(t *testing.T) {
	s := assetSchema(t, testLibrary(t))
	raw, err := s.MarshalCanonical()
	if err != nil {
		t.Fatalf("MarshalCanonical: %v", err)
	}

	t.Run("trailing byte", func(t *testing.T) {
		if _, err := ParseSchema(append(append([]byte(nil), raw...), 0x00)); err == nil {
			t.Fatal("accepted trailing byte")
		}
	})
	t.Run("truncated", func(t *testing.T) {
		if _, err := ParseSchema(raw[:len(raw)-3]); err == nil {
			t.Fatal("accepted truncated input")
		}
	})
	t.Run("garbage", func(t *testing.T) {
		if _, err := ParseSchema([]byte("not cbor at all")); err == nil {
			t.Fatal("accepted garbage")
		}
	})
}

func TestValidateDanglingReferences(t *testing.T) {
	lib := testLibrary(t)
	scripts := script.NewSet(lib)

	t.Run("genesis dangling global", func(t *testing.T) {
		s := assetSchema(t, lib)
		s.Genesis.Globals[9999] = Once()
		err := s.Validate(scripts)
		if got := fault.RuleID(err); got != "CHARTER-SCH-205" {
			t.Fatalf("rule = %q, want CHARTER-SCH-205 (err: %v)", got, err)
		}
	})
	t.Run("genesis dangling assignment", func(t *testing.T) {
		s := assetSchema(t, lib)
		s.Genesis.Assignments[9999] = Once()
		err := s.Validate(scripts)
		if got := fault.RuleID(err); got != "CHARTER-SCH-205" {
			t.Fatalf("rule = %q, want CHARTER-SCH-205 (err: %v)", got, err)
		}
	})
	t.Run("transition dangling input", func(t *testing.T) {
		s := assetSchema(t, lib)
		tr := s.Transitions[tsTransfer]
		tr.Inputs = map[OwnedSlot]Occurrences{9999: Once()}
		s.Transitions[tsTransfer] = tr
		err := s.Validate(scripts)
		if got := fault.RuleID(err); got != "CHARTER-SCH-206" {
			t.Fatalf("rule = %q, want CHARTER-SCH-206 (err: %v)", got, err)
		}
	})
}

func TestValidateOwnedCoherence(t *testing.T) {
	lib := testLibrary(t)
	scripts := script.NewSet(lib)

	s := assetSchema(t, lib)
	s.Owned[osAsset] = OwnedStateSchema{Kind: StateFungible, Format: 9}
	if got := fault.RuleID(s.Validate(scripts)); got != "CHARTER-SCH-203" {
		t.Fatalf("bad amount format: rule %q", got)
	}

	s = assetSchema(t, lib)
	s.Owned[osAsset] = OwnedStateSchema{Kind: StateStructured}
	if got := fault.RuleID(s.Validate(scripts)); got != "CHARTER-SCH-203" {
		t.Fatalf("structured without shape: rule %q", got)
	}
}

func TestValidateOccurrenceSanity(t *testing.T) {
	lib := testLibrary(t)
	s := assetSchema(t, lib)
	s.Genesis.Globals[gsSpec] = Between(4, 2)
	if got := fault.RuleID(s.Validate(script.NewSet(lib))); got != "CHARTER-SCH-204" {
		t.Fatalf("rule = %q, want CHARTER-SCH-204", got)
	}
}

func TestValidateValidatorSites(t *testing.T) {
	lib := testLibrary(t)

	t.Run("library missing from set", func(t *testing.T) {
		s := assetSchema(t, lib)
		err := s.Validate(script.NewSet())
		if got := fault.RuleID(err); got != "CHARTER-OFF-004" {
			t.Fatalf("rule = %q, want CHARTER-OFF-004 (err: %v)", got, err)
		}
	})
	t.Run("offset off boundary", func(t *testing.T) {
		s := assetSchema(t, lib)
		s.Genesis.Validator = &script.Site{Lib: lib.ID(), Pos: 3}
		err := s.Validate(script.NewSet(lib))
		if got := fault.RuleID(err); got != "CHARTER-OFF-002" {
			t.Fatalf("rule = %q, want CHARTER-OFF-002 (err: %v)", got, err)
		}
	})
	t.Run("offset out of bounds", func(t *testing.T) {
		s := assetSchema(t, lib)
		s.Genesis.Validator = &script.Site{Lib: lib.ID(), Pos: 200}
		err := s.Validate(script.NewSet(lib))
		if got := fault.RuleID(err); got != "CHARTER-OFF-001" {
			t.Fatalf("rule = %q, want CHARTER-OFF-001 (err: %v)", got, err)
		}
	})
}

func TestValidateAllCollectsViolations(t *testing.T) {
	lib := testLibrary(t)
	s := assetSchema(t, lib)
	s.Genesis.Globals[9999] = Once()
	s.Owned[osAsset] = OwnedStateSchema{Kind: StateFungible, Format: 9}
	s.Genesis.Validator = &script.Site{Lib: lib.ID(), Pos: 3}

	errs := s.ValidateAll(script.NewSet(lib))
	if len(errs) < 3 {
		t.Fatalf("ValidateAll found %d violations, want at least 3: %v", len(errs), errs)
	}
	again := s.ValidateAll(script.NewSet(lib))
	if len(again) != len(errs) {
		t.Fatalf("violation count unstable: %d vs %d", len(errs), len(again))
	}
	for i := range errs {
		if fault.RuleID(errs[i]) != fault.RuleID(again[i]) {
			t.Fatal("violation order unstable across runs")
		}
	}
}

func TestSitesOrder(t *testing.T) {
	lib := testLibrary(t)
	s := assetSchema(t, lib)
	sites := s.Sites()
	if len(sites) != 2 {
		t.Fatalf("Sites = %v, want 2", sites)
	}
	if sites[0].Pos != 0 || sites[1].Pos != 6 {
		t.Fatalf("Sites order = %v, want genesis first then transfer", sites)
	}
}
