package iface

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"

	"xledger.io/charter/cidutil"
	"xledger.io/charter/fault"
	"xledger.io/charter/schema"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("iface: create CBOR enc mode: %v", err))
	}
	encMode = em
	dm, err := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("iface: create CBOR dec mode: %v", err))
	}
	decMode = dm
}

type wireMember struct {
	_        struct{} `cbor:",toarray"`
	Name     string
	Required bool
}

type wireIface struct {
	_           struct{} `cbor:",toarray"`
	Name        string
	Globals     []wireMember
	Assignments []wireMember
	Transitions []wireMember
}

type wireBinding struct {
	_    struct{} `cbor:",toarray"`
	Name string
	ID   uint16
}

type wireImpl struct {
	_           struct{} `cbor:",toarray"`
	Version     uint16
	SchemaID    []byte
	IfaceID     []byte
	Timestamp   int64
	Developer   string
	Globals     []wireBinding
	Assignments []wireBinding
	Transitions []wireBinding
}

func wireMembers(members []Member) []wireMember {
	out := make([]wireMember, 0, len(members))
	for _, m := range members {
		out = append(out, wireMember{Name: m.Name, Required: m.Required})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func membersFromWire(ws []wireMember) []Member {
	out := make([]Member, 0, len(ws))
	for _, w := range ws {
		out = append(out, Member{Name: w.Name, Required: w.Required})
	}
	return out
}

// MarshalCanonical returns the canonical serialized form: member lists
// sorted by name, deterministic CBOR.
func (i *Iface) MarshalCanonical() ([]byte, error) {
	w := wireIface{
		Name:        i.Name,
		Globals:     wireMembers(i.Globals),
		Assignments: wireMembers(i.Assignments),
		Transitions: wireMembers(i.Transitions),
	}
	raw, err := encMode.Marshal(w)
	if err != nil {
		return nil, fault.Wrap(fault.KindRender, "CHARTER-IFC-010", "encode interface", err)
	}
	return raw, nil
}

// ParseIface decodes the canonical serialized form, rejecting
// non-canonical encodings by re-encode comparison.
func ParseIface(data []byte) (*Iface, error) {
	var w wireIface
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, fault.Wrap(fault.KindParse, "CHARTER-IFC-011", "decode interface", err)
	}
	i := &Iface{
		Name:        w.Name,
		Globals:     membersFromWire(w.Globals),
		Assignments: membersFromWire(w.Assignments),
		Transitions: membersFromWire(w.Transitions),
	}
	canonical, err := i.MarshalCanonical()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(data, canonical) {
		return nil, fault.New(fault.KindCanonical, "CHARTER-IFC-012", "non-canonical interface encoding")
	}
	return i, nil
}

// MarshalCanonical returns the canonical serialized form: binding lists
// sorted by name, deterministic CBOR. Timestamp is part of the encoded
// form and therefore of the identity.
func (im *Impl) MarshalCanonical() ([]byte, error) {
	w := wireImpl{
		Version:     im.Version,
		SchemaID:    cidBytes(im.SchemaID),
		IfaceID:     cidBytes(im.IfaceID),
		Timestamp:   im.Timestamp,
		Developer:   im.Developer,
		Globals:     make([]wireBinding, 0, len(im.Globals)),
		Assignments: make([]wireBinding, 0, len(im.Assignments)),
		Transitions: make([]wireBinding, 0, len(im.Transitions)),
	}
	for _, g := range im.Globals {
		w.Globals = append(w.Globals, wireBinding{Name: g.Name, ID: uint16(g.Slot)})
	}
	for _, a := range im.Assignments {
		w.Assignments = append(w.Assignments, wireBinding{Name: a.Name, ID: uint16(a.Slot)})
	}
	for _, t := range im.Transitions {
		w.Transitions = append(w.Transitions, wireBinding{Name: t.Name, ID: uint16(t.Type)})
	}
	for _, bindings := range [][]wireBinding{w.Globals, w.Assignments, w.Transitions} {
		sort.Slice(bindings, func(i, j int) bool { return bindings[i].Name < bindings[j].Name })
	}
	raw, err := encMode.Marshal(w)
	if err != nil {
		return nil, fault.Wrap(fault.KindRender, "CHARTER-IFC-013", "encode impl", err)
	}
	return raw, nil
}

// ParseImpl decodes the canonical serialized form, rejecting
// non-canonical encodings by re-encode comparison.
func ParseImpl(data []byte) (*Impl, error) {
	var w wireImpl
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, fault.Wrap(fault.KindParse, "CHARTER-IFC-014", "decode impl", err)
	}
	schemaID, err := castCID(w.SchemaID, "schema id")
	if err != nil {
		return nil, err
	}
	ifaceID, err := castCID(w.IfaceID, "interface id")
	if err != nil {
		return nil, err
	}
	im := &Impl{
		Version:     w.Version,
		SchemaID:    schemaID,
		IfaceID:     ifaceID,
		Timestamp:   w.Timestamp,
		Developer:   w.Developer,
		Globals:     make([]NamedGlobal, 0, len(w.Globals)),
		Assignments: make([]NamedOwned, 0, len(w.Assignments)),
		Transitions: make([]NamedTransition, 0, len(w.Transitions)),
	}
	for _, g := range w.Globals {
		im.Globals = append(im.Globals, NamedGlobal{Name: g.Name, Slot: schema.GlobalSlot(g.ID)})
	}
	for _, a := range w.Assignments {
		im.Assignments = append(im.Assignments, NamedOwned{Name: a.Name, Slot: schema.OwnedSlot(a.ID)})
	}
	for _, t := range w.Transitions {
		im.Transitions = append(im.Transitions, NamedTransition{Name: t.Name, Type: schema.TransitionType(t.ID)})
	}
	canonical, err := im.MarshalCanonical()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(data, canonical) {
		return nil, fault.New(fault.KindCanonical, "CHARTER-IFC-015", "non-canonical impl encoding")
	}
	return im, nil
}

func cidBytes(c cid.Cid) []byte {
	if !c.Defined() {
		return []byte{}
	}
	return c.Bytes()
}

func castCID(raw []byte, what string) (cid.Cid, error) {
	if len(raw) == 0 {
		return cid.Undef, nil
	}
	c, err := cid.Cast(raw)
	if err != nil {
		return cid.Undef, fault.Wrap(fault.KindParse, "CHARTER-IFC-016",
			fmt.Sprintf("malformed %s", what), err)
	}
	return c, nil
}

func cidFromBytes(raw []byte) (cid.Cid, error) {
	return cidutil.CIDv1RawSHA256CID(raw)
}
