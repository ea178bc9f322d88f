package iface

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/fault"
	"xledger.io/charter/schema"
)

// ImplVersion is the current implementation record format.
const ImplVersion = 1

// NamedGlobal binds an interface global name to a schema global slot.
type NamedGlobal struct {
	Name string
	Slot schema.GlobalSlot
}

// NamedOwned binds an interface assignment name to a schema owned slot.
type NamedOwned struct {
	Name string
	Slot schema.OwnedSlot
}

// NamedTransition binds an interface transition name to a schema
// transition type.
type NamedTransition struct {
	Name string
	Type schema.TransitionType
}

// Impl records how one schema implements one interface.
//
// Unlike schemas and libraries, an Impl carries a build timestamp, so
// two otherwise identical bindings built at different times have
// different identities. Callers that need reproducible ids must pin
// Timestamp explicitly; nothing in this package reads the clock.
type Impl struct {
	Version     uint16
	SchemaID    cid.Cid
	IfaceID     cid.Cid
	Timestamp   int64
	Developer   string
	Globals     []NamedGlobal
	Assignments []NamedOwned
	Transitions []NamedTransition
}

// ID returns the implementation record's content identifier over its
// canonical serialized form.
func (im *Impl) ID() (cid.Cid, error) {
	raw, err := im.MarshalCanonical()
	if err != nil {
		return cid.Undef, err
	}
	id, err := cidFromBytes(raw)
	if err != nil {
		return cid.Undef, fault.Wrap(fault.KindCID, "CHARTER-IFC-002", "derive impl id", err)
	}
	return id, nil
}

// ValidateAgainst checks the record's coverage in both directions: every
// required interface member is bound to a declaration the schema
// actually has, and every binding names a member the interface actually
// declares.
func (im *Impl) ValidateAgainst(ifc *Iface, sch *schema.Schema) error {
	if err := ifc.Validate(); err != nil {
		return err
	}
	if im.Version != ImplVersion {
		return fault.New(fault.KindValidation, "CHARTER-IFC-004",
			fmt.Sprintf("unsupported impl version %d", im.Version))
	}
	ifcID, err := ifc.ID()
	if err != nil {
		return err
	}
	if !im.IfaceID.Equals(ifcID) {
		return fault.New(fault.KindValidation, "CHARTER-IFC-005",
			fmt.Sprintf("impl binds interface %s, given %s", im.IfaceID, ifcID))
	}
	schID, err := sch.ID()
	if err != nil {
		return err
	}
	if !im.SchemaID.Equals(schID) {
		return fault.New(fault.KindValidation, "CHARTER-IFC-006",
			fmt.Sprintf("impl binds schema %s, given %s", im.SchemaID, schID))
	}

	bound := make(map[string]bool)
	for _, g := range im.Globals {
		if bound["g:"+g.Name] {
			return fault.New(fault.KindValidation, "CHARTER-IFC-007",
				fmt.Sprintf("global %q bound twice", g.Name))
		}
		bound["g:"+g.Name] = true
		if _, ok := member(ifc.Globals, g.Name); !ok {
			return fault.New(fault.KindValidation, "CHARTER-IFC-008",
				fmt.Sprintf("binding for unknown global %q", g.Name))
		}
		if _, ok := sch.Globals[g.Slot]; !ok {
			return fault.New(fault.KindValidation, "CHARTER-IFC-009",
				fmt.Sprintf("global %q bound to undeclared slot %d", g.Name, g.Slot))
		}
	}
	for _, a := range im.Assignments {
		if bound["a:"+a.Name] {
			return fault.New(fault.KindValidation, "CHARTER-IFC-007",
				fmt.Sprintf("assignment %q bound twice", a.Name))
		}
		bound["a:"+a.Name] = true
		if _, ok := member(ifc.Assignments, a.Name); !ok {
			return fault.New(fault.KindValidation, "CHARTER-IFC-008",
				fmt.Sprintf("binding for unknown assignment %q", a.Name))
		}
		if _, ok := sch.Owned[a.Slot]; !ok {
			return fault.New(fault.KindValidation, "CHARTER-IFC-009",
				fmt.Sprintf("assignment %q bound to undeclared slot %d", a.Name, a.Slot))
		}
	}
	for _, tr := range im.Transitions {
		if bound["t:"+tr.Name] {
			return fault.New(fault.KindValidation, "CHARTER-IFC-007",
				fmt.Sprintf("transition %q bound twice", tr.Name))
		}
		bound["t:"+tr.Name] = true
		if _, ok := member(ifc.Transitions, tr.Name); !ok {
			return fault.New(fault.KindValidation, "CHARTER-IFC-008",
				fmt.Sprintf("binding for unknown transition %q", tr.Name))
		}
		if _, ok := sch.Transitions[tr.Type]; !ok {
			return fault.New(fault.KindValidation, "CHARTER-IFC-009",
				fmt.Sprintf("transition %q bound to undeclared type %d", tr.Name, tr.Type))
		}
	}

	for _, m := range ifc.Globals {
		if m.Required && !bound["g:"+m.Name] {
			return fault.New(fault.KindValidation, "CHARTER-IFC-003",
				fmt.Sprintf("required global %q not bound", m.Name))
		}
	}
	for _, m := range ifc.Assignments {
		if m.Required && !bound["a:"+m.Name] {
			return fault.New(fault.KindValidation, "CHARTER-IFC-003",
				fmt.Sprintf("required assignment %q not bound", m.Name))
		}
	}
	for _, m := range ifc.Transitions {
		if m.Required && !bound["t:"+m.Name] {
			return fault.New(fault.KindValidation, "CHARTER-IFC-003",
				fmt.Sprintf("required transition %q not bound", m.Name))
		}
	}
	return nil
}
