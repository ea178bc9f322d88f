package model

import (
	"github.com/ipfs/go-cid"

	"xledger.io/charter/kit"
	"xledger.io/charter/schema"
	"xledger.io/charter/storage"
)

// Summarize projects a kit into its boundary DTO form.
//
// Slot, assignment, and transition names come from the kit's interface
// binding; slots the impl leaves unnamed appear without a name.
func Summarize(k *kit.Kit) (*KitSummary, error) {
	kitID, err := k.ID()
	if err != nil {
		return nil, mapErr(err)
	}
	schemaID, err := k.Schema.ID()
	if err != nil {
		return nil, mapErr(err)
	}
	ifaceID, err := k.Iface.ID()
	if err != nil {
		return nil, mapErr(err)
	}
	implID, err := k.Impl.ID()
	if err != nil {
		return nil, mapErr(err)
	}

	out := &KitSummary{
		KitCID:     kitID.String(),
		SchemaCID:  schemaID.String(),
		SchemaName: k.Schema.Name,
		Developer:  k.Schema.Developer,
		IfaceCID:   ifaceID.String(),
		IfaceName:  k.Iface.Name,
		ImplCID:    implID.String(),
		TypesCID:   k.Types.ID().String(),
		TypesName:  k.Types.Name(),
	}
	for _, libID := range k.Scripts.IDs() {
		out.LibraryCIDs = append(out.LibraryCIDs, libID.String())
	}

	globalNames := make(map[schema.GlobalSlot]string, len(k.Impl.Globals))
	for _, g := range k.Impl.Globals {
		globalNames[g.Slot] = g.Name
	}
	ownedNames := make(map[schema.OwnedSlot]string, len(k.Impl.Assignments))
	for _, o := range k.Impl.Assignments {
		ownedNames[o.Slot] = o.Name
	}
	transitionNames := make(map[schema.TransitionType]string, len(k.Impl.Transitions))
	for _, t := range k.Impl.Transitions {
		transitionNames[t.Type] = t.Name
	}

	for _, slot := range k.Schema.GlobalSlots() {
		g := k.Schema.Globals[slot]
		out.Globals = append(out.Globals, GlobalSlotInfo{
			Slot:     uint16(slot),
			Name:     globalNames[slot],
			Sem:      g.Sem.String(),
			MaxItems: g.MaxItems,
		})
	}
	for _, slot := range k.Schema.OwnedSlots() {
		o := k.Schema.Owned[slot]
		info := OwnedSlotInfo{
			Slot: uint16(slot),
			Name: ownedNames[slot],
			Kind: o.Kind.String(),
		}
		if o.Kind == schema.StateFungible && o.Format == schema.AmountU64 {
			info.Format = "u64"
		}
		if o.Kind == schema.StateStructured {
			info.Sem = o.Sem.String()
		}
		out.Owned = append(out.Owned, info)
	}
	if v := k.Schema.Genesis.Validator; v != nil {
		out.Genesis.Validator = v.String()
	}
	for _, tt := range k.Schema.TransitionTypes() {
		ts := k.Schema.Transitions[tt]
		info := TransitionInfo{Type: uint16(tt), Name: transitionNames[tt]}
		if ts.Validator != nil {
			info.Validator = ts.Validator.String()
		}
		out.Transitions = append(out.Transitions, info)
	}
	return out, nil
}

// SummarizeFromCAS loads a kit by CID and summarizes it.
func SummarizeFromCAS(cas storage.CAS, id cid.Cid) (*KitSummary, error) {
	if cas == nil {
		return nil, NewError(ErrMissingCAS, "kit referenced by cid but no CAS configured")
	}
	k, err := kit.Load(cas, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return Summarize(k)
}
