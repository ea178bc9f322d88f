package schema

import (
	"fmt"

	"xledger.io/charter/fault"
	"xledger.io/charter/script"
)

// Rule is an explicit, named schema validation rule.
//
// ID must be stable across versions.
// Apply must be deterministic and side-effect free. The script set may
// be nil for rules that do not inspect scripts.
type Rule struct {
	ID    string
	Apply func(*Schema, *script.Set) error
}

func (r Rule) apply(s *Schema, scripts *script.Set) error {
	if r.Apply == nil {
		return fault.New(fault.KindInternal, "CHARTER-SCH-901", "nil rule Apply")
	}
	return r.Apply(s, scripts)
}

// ValidateRules runs rules in order, returning the first failure.
//
// Determinism note: rule order is the evaluation order; keep it stable.
func ValidateRules(s *Schema, scripts *script.Set, rules []Rule) error {
	for _, r := range rules {
		if err := r.apply(s, scripts); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRulesAll runs all rules in order, returning a (deterministically
// ordered) slice of all violations.
func ValidateRulesAll(s *Schema, scripts *script.Set, rules []Rule) []error {
	var out []error
	for _, r := range rules {
		if err := r.apply(s, scripts); err != nil {
			out = append(out, err)
		}
	}
	return out
}

// Validate runs the full standard rule set: structure plus validator
// site resolution against scripts. Opcode-level entry semantics are the
// contract family's to assert; here a site must resolve to a library in
// the set and land on an instruction boundary.
func (s *Schema) Validate(scripts *script.Set) error {
	if scripts == nil {
		scripts = script.NewSet()
	}
	return ValidateRules(s, scripts, StandardRules())
}

// ValidateAll is Validate collecting every violation instead of stopping
// at the first.
func (s *Schema) ValidateAll(scripts *script.Set) []error {
	if scripts == nil {
		scripts = script.NewSet()
	}
	return ValidateRulesAll(s, scripts, StandardRules())
}

// StandardRules returns the standard rule set in evaluation order.
func StandardRules() []Rule {
	return append(structuralRules(), scriptRules()...)
}

func structuralRules() []Rule {
	return []Rule{
		{ID: "CHARTER-SCH-201", Apply: func(s *Schema, _ *script.Set) error {
			if s.Name == "" {
				return fault.New(fault.KindValidation, "CHARTER-SCH-201", "schema has no name")
			}
			for i := 0; i < len(s.Name); i++ {
				if s.Name[i] < 0x20 || s.Name[i] > 0x7E {
					return fault.New(fault.KindValidation, "CHARTER-SCH-201",
						fmt.Sprintf("schema name %q: printable ASCII only", s.Name))
				}
			}
			return nil
		}},
		{ID: "CHARTER-SCH-202", Apply: func(s *Schema, _ *script.Set) error {
			for _, id := range s.GlobalSlots() {
				g := s.Globals[id]
				if !g.Sem.Defined() {
					return fault.New(fault.KindValidation, "CHARTER-SCH-202",
						fmt.Sprintf("global slot %d: no data shape", id))
				}
				if g.MaxItems == 0 {
					return fault.New(fault.KindValidation, "CHARTER-SCH-202",
						fmt.Sprintf("global slot %d: zero item capacity", id))
				}
			}
			return nil
		}},
		{ID: "CHARTER-SCH-203", Apply: func(s *Schema, _ *script.Set) error {
			for _, id := range s.OwnedSlots() {
				o := s.Owned[id]
				switch o.Kind {
				case StateRights:
					if o.Format != 0 || o.Sem.Defined() {
						return fault.New(fault.KindValidation, "CHARTER-SCH-203",
							fmt.Sprintf("owned slot %d: rights state carries no format or shape", id))
					}
				case StateFungible:
					if o.Format != AmountU64 {
						return fault.New(fault.KindValidation, "CHARTER-SCH-203",
							fmt.Sprintf("owned slot %d: unsupported amount format %d", id, o.Format))
					}
				case StateStructured:
					if !o.Sem.Defined() {
						return fault.New(fault.KindValidation, "CHARTER-SCH-203",
							fmt.Sprintf("owned slot %d: structured state needs a data shape", id))
					}
				default:
					return fault.New(fault.KindValidation, "CHARTER-SCH-203",
						fmt.Sprintf("owned slot %d: unknown state kind %d", id, o.Kind))
				}
			}
			return nil
		}},
		{ID: "CHARTER-SCH-204", Apply: func(s *Schema, _ *script.Set) error {
			check := func(where string, occs map[GlobalSlot]Occurrences) error {
				for slot, occ := range occs {
					if err := occ.wellFormed(); err != nil {
						return fault.Wrap(fault.KindValidation, "CHARTER-SCH-204",
							fmt.Sprintf("%s: global slot %d: malformed occurrence bounds", where, slot), err)
					}
				}
				return nil
			}
			checkOwned := func(where string, occs map[OwnedSlot]Occurrences) error {
				for slot, occ := range occs {
					if err := occ.wellFormed(); err != nil {
						return fault.Wrap(fault.KindValidation, "CHARTER-SCH-204",
							fmt.Sprintf("%s: owned slot %d: malformed occurrence bounds", where, slot), err)
					}
				}
				return nil
			}
			if err := check("genesis", s.Genesis.Globals); err != nil {
				return err
			}
			if err := checkOwned("genesis", s.Genesis.Assignments); err != nil {
				return err
			}
			for _, tt := range s.TransitionTypes() {
				t := s.Transitions[tt]
				where := fmt.Sprintf("transition %d", tt)
				if err := check(where, t.Globals); err != nil {
					return err
				}
				if err := checkOwned(where, t.Inputs); err != nil {
					return err
				}
				if err := checkOwned(where, t.Assignments); err != nil {
					return err
				}
			}
			return nil
		}},
		{ID: "CHARTER-SCH-205", Apply: func(s *Schema, _ *script.Set) error {
			for slot := range s.Genesis.Globals {
				if _, ok := s.Globals[slot]; !ok {
					return fault.New(fault.KindValidation, "CHARTER-SCH-205",
						fmt.Sprintf("genesis references undeclared global slot %d", slot))
				}
			}
			for slot := range s.Genesis.Assignments {
				if _, ok := s.Owned[slot]; !ok {
					return fault.New(fault.KindValidation, "CHARTER-SCH-205",
						fmt.Sprintf("genesis references undeclared owned slot %d", slot))
				}
			}
			return nil
		}},
		{ID: "CHARTER-SCH-206", Apply: func(s *Schema, _ *script.Set) error {
			for _, tt := range s.TransitionTypes() {
				t := s.Transitions[tt]
				for slot := range t.Globals {
					if _, ok := s.Globals[slot]; !ok {
						return fault.New(fault.KindValidation, "CHARTER-SCH-206",
							fmt.Sprintf("transition %d references undeclared global slot %d", tt, slot))
					}
				}
				for slot := range t.Inputs {
					if _, ok := s.Owned[slot]; !ok {
						return fault.New(fault.KindValidation, "CHARTER-SCH-206",
							fmt.Sprintf("transition %d consumes undeclared owned slot %d", tt, slot))
					}
				}
				for slot := range t.Assignments {
					if _, ok := s.Owned[slot]; !ok {
						return fault.New(fault.KindValidation, "CHARTER-SCH-206",
							fmt.Sprintf("transition %d assigns undeclared owned slot %d", tt, slot))
					}
				}
			}
			return nil
		}},
	}
}

func scriptRules() []Rule {
	return []Rule{
		{ID: "CHARTER-SCH-210", Apply: func(s *Schema, scripts *script.Set) error {
			for _, site := range s.Sites() {
				lib, err := scripts.Resolve(site)
				if err != nil {
					return err
				}
				if err := script.EntryBoundary(lib, site.Pos); err != nil {
					return err
				}
			}
			return nil
		}},
	}
}
