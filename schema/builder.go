package schema

import (
	"fmt"

	"xledger.io/charter/fault"
	"xledger.io/charter/typesys"
)

// Builder assembles a Schema incrementally. Inserting a slot or
// transition id twice is an authoring mistake and is rejected at
// insertion; the first error sticks and Build returns it.
type Builder struct {
	s   Schema
	err error
}

// NewBuilder starts a schema for the named contract family.
func NewBuilder(name, developer string) *Builder {
	return &Builder{s: Schema{
		Name:        name,
		Developer:   developer,
		Globals:     make(map[GlobalSlot]GlobalStateSchema),
		Owned:       make(map[OwnedSlot]OwnedStateSchema),
		Transitions: make(map[TransitionType]TransitionSchema),
	}}
}

func (b *Builder) fail(ruleID, msg string) *Builder {
	if b.err == nil {
		b.err = fault.New(fault.KindValidation, ruleID, msg)
	}
	return b
}

// Global declares a global state slot.
func (b *Builder) Global(id GlobalSlot, sem typesys.SemID, maxItems uint16) *Builder {
	if b.err != nil {
		return b
	}
	if _, dup := b.s.Globals[id]; dup {
		return b.fail("CHARTER-SCH-101", fmt.Sprintf("global slot %d declared twice", id))
	}
	b.s.Globals[id] = GlobalStateSchema{Sem: sem, MaxItems: maxItems}
	return b
}

// OwnedRights declares an owned slot carrying a bare right.
func (b *Builder) OwnedRights(id OwnedSlot) *Builder {
	return b.owned(id, OwnedStateSchema{Kind: StateRights})
}

// OwnedFungible declares an owned slot carrying fungible amounts.
func (b *Builder) OwnedFungible(id OwnedSlot, format AmountFormat) *Builder {
	return b.owned(id, OwnedStateSchema{Kind: StateFungible, Format: format})
}

// OwnedStructured declares an owned slot carrying typed data.
func (b *Builder) OwnedStructured(id OwnedSlot, sem typesys.SemID) *Builder {
	return b.owned(id, OwnedStateSchema{Kind: StateStructured, Sem: sem})
}

func (b *Builder) owned(id OwnedSlot, decl OwnedStateSchema) *Builder {
	if b.err != nil {
		return b
	}
	if _, dup := b.s.Owned[id]; dup {
		return b.fail("CHARTER-SCH-102", fmt.Sprintf("owned slot %d declared twice", id))
	}
	b.s.Owned[id] = decl
	return b
}

// Genesis declares the issuance operation. A schema has exactly one.
func (b *Builder) Genesis(g GenesisSchema) *Builder {
	if b.err != nil {
		return b
	}
	if b.s.Genesis.Globals != nil || b.s.Genesis.Assignments != nil || b.s.Genesis.Validator != nil {
		return b.fail("CHARTER-SCH-104", "genesis declared twice")
	}
	b.s.Genesis = g
	return b
}

// Transition declares a state transition family.
func (b *Builder) Transition(id TransitionType, t TransitionSchema) *Builder {
	if b.err != nil {
		return b
	}
	if _, dup := b.s.Transitions[id]; dup {
		return b.fail("CHARTER-SCH-103", fmt.Sprintf("transition type %d declared twice", id))
	}
	b.s.Transitions[id] = t
	return b
}

// Build finishes the schema and runs the structural validation rules.
// Validator sites are checked against a script set separately, by
// Schema.Validate, once the scripts exist.
func (b *Builder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	s := b.s
	if err := ValidateRules(&s, nil, structuralRules()); err != nil {
		return nil, err
	}
	return &s, nil
}
