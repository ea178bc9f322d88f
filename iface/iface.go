// Package iface defines abstract contract interfaces and the records
// binding a schema to one. An Iface names the surface consumers program
// against (global state, assignments, transitions, by name); an Impl
// maps those names onto one schema's numeric slots. Schemas stay
// wallet-agnostic, interfaces stay schema-agnostic, and the Impl is the
// only place the two meet.
package iface

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/fault"
)

// Member is one named element of an interface category. Required members
// must be bound by every implementation; optional ones may be.
type Member struct {
	Name     string
	Required bool
}

// Iface is an abstract interface descriptor. Identity is a CIDv1 over
// the canonical serialized form, so interfaces are shared by content,
// not by name.
type Iface struct {
	Name        string
	Globals     []Member
	Assignments []Member
	Transitions []Member
}

// Validate checks the descriptor itself: a name, and unique well-formed
// member names per category.
func (i *Iface) Validate() error {
	if i.Name == "" {
		return fault.New(fault.KindValidation, "CHARTER-IFC-101", "interface has no name")
	}
	for _, cat := range []struct {
		what    string
		members []Member
	}{
		{"global", i.Globals},
		{"assignment", i.Assignments},
		{"transition", i.Transitions},
	} {
		seen := make(map[string]bool, len(cat.members))
		for _, m := range cat.members {
			if !isFieldName(m.Name) {
				return fault.New(fault.KindValidation, "CHARTER-IFC-102",
					fmt.Sprintf("%s member %q: not a field name", cat.what, m.Name))
			}
			if seen[m.Name] {
				return fault.New(fault.KindValidation, "CHARTER-IFC-103",
					fmt.Sprintf("%s member %q declared twice", cat.what, m.Name))
			}
			seen[m.Name] = true
		}
	}
	return nil
}

// ID returns the interface's content identifier over its canonical
// serialized form.
func (i *Iface) ID() (cid.Cid, error) {
	raw, err := i.MarshalCanonical()
	if err != nil {
		return cid.Undef, err
	}
	id, err := cidFromBytes(raw)
	if err != nil {
		return cid.Undef, fault.Wrap(fault.KindCID, "CHARTER-IFC-001", "derive interface id", err)
	}
	return id, nil
}

func member(members []Member, name string) (Member, bool) {
	for _, m := range members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// Field names are lowerCamel ASCII identifiers.
func isFieldName(s string) bool {
	if s == "" {
		return false
	}
	if !(s[0] >= 'a' && s[0] <= 'z') {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// Fungible returns the standard fungible-asset interface: nominal spec,
// issuance terms and issued supply as globals, a single ownable asset
// assignment, and a transfer transition. All members are required.
func Fungible() *Iface {
	return &Iface{
		Name: "Fungible",
		Globals: []Member{
			{Name: "issuedSupply", Required: true},
			{Name: "spec", Required: true},
			{Name: "terms", Required: true},
		},
		Assignments: []Member{
			{Name: "assetOwner", Required: true},
		},
		Transitions: []Member{
			{Name: "transfer", Required: true},
		},
	}
}
