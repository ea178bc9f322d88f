// Package kit composes the publishable contract package: one schema, the
// interface it implements with its binding record, the type system its
// state shapes come from, and the validation script libraries its
// operations call into. A kit is the unit issuers hand to wallets; it is
// self-contained, immutable, and content-addressed.
package kit

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/fault"
	"xledger.io/charter/iface"
	"xledger.io/charter/schema"
	"xledger.io/charter/script"
	"xledger.io/charter/typesys"
)

// Kit is a complete contract package. Construct with Assemble or
// ParseKit; both validate.
type Kit struct {
	Schema  *schema.Schema
	Iface   *iface.Iface
	Impl    *iface.Impl
	Types   *typesys.System
	Scripts *script.Set
}

// Assemble cross-checks the components and returns the kit. All the
// closure checks run here: slot references, validator sites, interface
// coverage, and type-shape resolution.
func Assemble(sch *schema.Schema, ifc *iface.Iface, im *iface.Impl, types *typesys.System, scripts *script.Set) (*Kit, error) {
	k := &Kit{Schema: sch, Iface: ifc, Impl: im, Types: types, Scripts: scripts}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Validate re-runs every cross-component check. A kit that passes is
// internally closed: nothing it declares points outside itself.
func (k *Kit) Validate() error {
	if k.Schema == nil || k.Iface == nil || k.Impl == nil || k.Types == nil || k.Scripts == nil {
		return fault.New(fault.KindValidation, "CHARTER-KIT-001", "kit missing a component")
	}
	if err := k.Schema.Validate(k.Scripts); err != nil {
		return err
	}
	if err := k.Impl.ValidateAgainst(k.Iface, k.Schema); err != nil {
		return err
	}
	for _, slot := range k.Schema.GlobalSlots() {
		g := k.Schema.Globals[slot]
		if !k.Types.Contains(g.Sem) {
			return fault.New(fault.KindValidation, "CHARTER-KIT-002",
				fmt.Sprintf("global slot %d: data shape not in type system %q", slot, k.Types.Name()))
		}
	}
	for _, slot := range k.Schema.OwnedSlots() {
		o := k.Schema.Owned[slot]
		if o.Kind == schema.StateStructured && !k.Types.Contains(o.Sem) {
			return fault.New(fault.KindValidation, "CHARTER-KIT-003",
				fmt.Sprintf("owned slot %d: data shape not in type system %q", slot, k.Types.Name()))
		}
	}
	return nil
}

// ID returns the kit's content identifier over its canonical serialized
// form. Because the impl embeds a timestamp, kit identity is stable only
// for a pinned timestamp; schema and library identities inside it are
// content-pure regardless.
func (k *Kit) ID() (cid.Cid, error) {
	raw, err := k.MarshalCanonical()
	if err != nil {
		return cid.Undef, err
	}
	id, err := cidFromBytes(raw)
	if err != nil {
		return cid.Undef, fault.Wrap(fault.KindCID, "CHARTER-KIT-004", "derive kit id", err)
	}
	return id, nil
}
