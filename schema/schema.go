// Package schema defines contract schemas: the declarative part of a
// charter contract family. A schema names the state slots a contract may
// carry, bounds their occurrences per operation, and points each
// operation at the validation subroutine that guards it. Schemas are
// immutable once built and are identified by a CIDv1 over their
// canonical serialized form, so the identity never depends on build
// order or wall-clock time.
package schema

import (
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/fault"
	"xledger.io/charter/script"
	"xledger.io/charter/typesys"
)

// GlobalSlot identifies a global (contract-wide) state slot.
type GlobalSlot uint16

// OwnedSlot identifies an owned state slot, assignable to single-use
// seals.
type OwnedSlot uint16

// TransitionType identifies a state transition family within a schema.
type TransitionType uint16

// StateKind describes what an owned slot carries.
type StateKind uint8

const (
	// StateRights is declarative: holding it grants a right, with no
	// attached data.
	StateRights StateKind = 1
	// StateFungible carries confidential fungible amounts.
	StateFungible StateKind = 2
	// StateStructured carries a typed data payload.
	StateStructured StateKind = 3
)

func (k StateKind) String() string {
	switch k {
	case StateRights:
		return "rights"
	case StateFungible:
		return "fungible"
	case StateStructured:
		return "structured"
	}
	return fmt.Sprintf("statekind(%d)", uint8(k))
}

// AmountFormat is the numeric format of fungible state.
type AmountFormat uint8

// AmountU64 is a 64-bit unsigned quantity, the only format the VM's
// commitment arithmetic supports today.
const AmountU64 AmountFormat = 1

// GlobalStateSchema declares one global slot: the data shape its values
// take and how many values the contract may accumulate in it.
type GlobalStateSchema struct {
	Sem      typesys.SemID
	MaxItems uint16
}

// OwnedStateSchema declares one owned slot. Format is meaningful only
// for StateFungible; Sem only for StateStructured.
type OwnedStateSchema struct {
	Kind   StateKind
	Format AmountFormat
	Sem    typesys.SemID
}

// GenesisSchema declares the contract's issuance operation: which slots
// it must populate, within which occurrence bounds, and the validation
// subroutine that witnesses it.
type GenesisSchema struct {
	Globals     map[GlobalSlot]Occurrences
	Assignments map[OwnedSlot]Occurrences
	Validator   *script.Site
}

// TransitionSchema declares one state transition family.
type TransitionSchema struct {
	Globals     map[GlobalSlot]Occurrences
	Inputs      map[OwnedSlot]Occurrences
	Assignments map[OwnedSlot]Occurrences
	Validator   *script.Site
}

// Schema is a complete contract schema. Build one with a Builder; a
// Schema obtained any other way must pass Validate before use.
type Schema struct {
	Name        string
	Developer   string
	Globals     map[GlobalSlot]GlobalStateSchema
	Owned       map[OwnedSlot]OwnedStateSchema
	Genesis     GenesisSchema
	Transitions map[TransitionType]TransitionSchema
}

// GlobalSlots returns the declared global slot ids in ascending order.
func (s *Schema) GlobalSlots() []GlobalSlot {
	out := make([]GlobalSlot, 0, len(s.Globals))
	for id := range s.Globals {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OwnedSlots returns the declared owned slot ids in ascending order.
func (s *Schema) OwnedSlots() []OwnedSlot {
	out := make([]OwnedSlot, 0, len(s.Owned))
	for id := range s.Owned {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TransitionTypes returns the declared transition ids in ascending order.
func (s *Schema) TransitionTypes() []TransitionType {
	out := make([]TransitionType, 0, len(s.Transitions))
	for id := range s.Transitions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sites returns every validator site the schema declares, genesis first,
// then transitions in ascending type order.
func (s *Schema) Sites() []script.Site {
	var out []script.Site
	if s.Genesis.Validator != nil {
		out = append(out, *s.Genesis.Validator)
	}
	for _, tt := range s.TransitionTypes() {
		if v := s.Transitions[tt].Validator; v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// ID returns the schema's content identifier over its canonical
// serialized form.
func (s *Schema) ID() (cid.Cid, error) {
	raw, err := s.MarshalCanonical()
	if err != nil {
		return cid.Undef, err
	}
	id, err := cidFromBytes(raw)
	if err != nil {
		return cid.Undef, fault.Wrap(fault.KindCID, "CHARTER-SCH-001", "derive schema id", err)
	}
	return id, nil
}
