package schema

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"

	"xledger.io/charter/cidutil"
	"xledger.io/charter/fault"
	"xledger.io/charter/script"
)

// EncodingVersion tags the canonical serialized schema form.
const EncodingVersion = 1

// Canonical serialization is deterministic CBOR: struct-as-array wire
// forms with a fixed field order, collections sorted by id, and
// canonical encoding options. Parse rejects any input that does not
// re-encode to the identical bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("schema: create CBOR enc mode: %v", err))
	}
	encMode = em
	dm, err := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("schema: create CBOR dec mode: %v", err))
	}
	decMode = dm
}

type wireSchema struct {
	_           struct{} `cbor:",toarray"`
	Version     uint16
	Name        string
	Developer   string
	Globals     []wireGlobal
	Owned       []wireOwned
	Genesis     wireGenesis
	Transitions []wireTransition
}

type wireGlobal struct {
	_        struct{} `cbor:",toarray"`
	Slot     uint16
	Sem      []byte
	MaxItems uint16
}

type wireOwned struct {
	_      struct{} `cbor:",toarray"`
	Slot   uint16
	Kind   uint8
	Format uint8
	Sem    []byte
}

type wireOcc struct {
	_    struct{} `cbor:",toarray"`
	Slot uint16
	Min  uint16
	Max  uint16
}

type wireSite struct {
	_   struct{} `cbor:",toarray"`
	Lib []byte
	Pos uint16
}

type wireGenesis struct {
	_           struct{} `cbor:",toarray"`
	Globals     []wireOcc
	Assignments []wireOcc
	Validator   *wireSite
}

type wireTransition struct {
	_           struct{} `cbor:",toarray"`
	Type        uint16
	Globals     []wireOcc
	Inputs      []wireOcc
	Assignments []wireOcc
	Validator   *wireSite
}

func semBytes(id cid.Cid) []byte {
	if !id.Defined() {
		return []byte{}
	}
	return id.Bytes()
}

func globalOccs(m map[GlobalSlot]Occurrences) []wireOcc {
	out := make([]wireOcc, 0, len(m))
	for slot := range m {
		out = append(out, wireOcc{Slot: uint16(slot), Min: m[slot].Min, Max: m[slot].Max})
	}
	sortOccs(out)
	return out
}

func ownedOccs(m map[OwnedSlot]Occurrences) []wireOcc {
	out := make([]wireOcc, 0, len(m))
	for slot := range m {
		out = append(out, wireOcc{Slot: uint16(slot), Min: m[slot].Min, Max: m[slot].Max})
	}
	sortOccs(out)
	return out
}

func sortOccs(occs []wireOcc) {
	for i := 1; i < len(occs); i++ {
		for j := i; j > 0 && occs[j].Slot < occs[j-1].Slot; j-- {
			occs[j], occs[j-1] = occs[j-1], occs[j]
		}
	}
}

func siteWire(s *script.Site) *wireSite {
	if s == nil {
		return nil
	}
	return &wireSite{Lib: s.Lib.Bytes(), Pos: s.Pos}
}

func toWire(s *Schema) wireSchema {
	w := wireSchema{
		Version:   EncodingVersion,
		Name:      s.Name,
		Developer: s.Developer,
		Globals:   make([]wireGlobal, 0, len(s.Globals)),
		Owned:     make([]wireOwned, 0, len(s.Owned)),
		Genesis: wireGenesis{
			Globals:     globalOccs(s.Genesis.Globals),
			Assignments: ownedOccs(s.Genesis.Assignments),
			Validator:   siteWire(s.Genesis.Validator),
		},
		Transitions: make([]wireTransition, 0, len(s.Transitions)),
	}
	for _, id := range s.GlobalSlots() {
		g := s.Globals[id]
		w.Globals = append(w.Globals, wireGlobal{Slot: uint16(id), Sem: semBytes(g.Sem), MaxItems: g.MaxItems})
	}
	for _, id := range s.OwnedSlots() {
		o := s.Owned[id]
		w.Owned = append(w.Owned, wireOwned{Slot: uint16(id), Kind: uint8(o.Kind), Format: uint8(o.Format), Sem: semBytes(o.Sem)})
	}
	for _, tt := range s.TransitionTypes() {
		t := s.Transitions[tt]
		w.Transitions = append(w.Transitions, wireTransition{
			Type:        uint16(tt),
			Globals:     globalOccs(t.Globals),
			Inputs:      ownedOccs(t.Inputs),
			Assignments: ownedOccs(t.Assignments),
			Validator:   siteWire(t.Validator),
		})
	}
	return w
}

// MarshalCanonical returns the canonical serialized form.
func (s *Schema) MarshalCanonical() ([]byte, error) {
	raw, err := encMode.Marshal(toWire(s))
	if err != nil {
		return nil, fault.Wrap(fault.KindRender, "CHARTER-SCH-003", "encode schema", err)
	}
	return raw, nil
}

func semFromBytes(raw []byte, what string) (cid.Cid, error) {
	if len(raw) == 0 {
		return cid.Undef, nil
	}
	c, err := cid.Cast(raw)
	if err != nil {
		return cid.Undef, fault.Wrap(fault.KindParse, "CHARTER-SCH-007",
			fmt.Sprintf("%s: malformed content id", what), err)
	}
	return c, nil
}

func siteFromWire(w *wireSite, what string) (*script.Site, error) {
	if w == nil {
		return nil, nil
	}
	if len(w.Lib) == 0 {
		return nil, fault.New(fault.KindParse, "CHARTER-SCH-007", what+": validator without library id")
	}
	lib, err := cid.Cast(w.Lib)
	if err != nil {
		return nil, fault.Wrap(fault.KindParse, "CHARTER-SCH-007", what+": malformed library id", err)
	}
	return &script.Site{Lib: lib, Pos: w.Pos}, nil
}

func globalOccMap(occs []wireOcc, what string) (map[GlobalSlot]Occurrences, error) {
	m := make(map[GlobalSlot]Occurrences, len(occs))
	for _, o := range occs {
		if _, dup := m[GlobalSlot(o.Slot)]; dup {
			return nil, fault.New(fault.KindParse, "CHARTER-SCH-006",
				fmt.Sprintf("%s: global slot %d listed twice", what, o.Slot))
		}
		m[GlobalSlot(o.Slot)] = Occurrences{Min: o.Min, Max: o.Max}
	}
	return m, nil
}

func ownedOccMap(occs []wireOcc, what string) (map[OwnedSlot]Occurrences, error) {
	m := make(map[OwnedSlot]Occurrences, len(occs))
	for _, o := range occs {
		if _, dup := m[OwnedSlot(o.Slot)]; dup {
			return nil, fault.New(fault.KindParse, "CHARTER-SCH-006",
				fmt.Sprintf("%s: owned slot %d listed twice", what, o.Slot))
		}
		m[OwnedSlot(o.Slot)] = Occurrences{Min: o.Min, Max: o.Max}
	}
	return m, nil
}

func fromWire(w wireSchema) (*Schema, error) {
	s := &Schema{
		Name:        w.Name,
		Developer:   w.Developer,
		Globals:     make(map[GlobalSlot]GlobalStateSchema, len(w.Globals)),
		Owned:       make(map[OwnedSlot]OwnedStateSchema, len(w.Owned)),
		Transitions: make(map[TransitionType]TransitionSchema, len(w.Transitions)),
	}
	for _, g := range w.Globals {
		if _, dup := s.Globals[GlobalSlot(g.Slot)]; dup {
			return nil, fault.New(fault.KindParse, "CHARTER-SCH-006",
				fmt.Sprintf("global slot %d listed twice", g.Slot))
		}
		sem, err := semFromBytes(g.Sem, fmt.Sprintf("global slot %d", g.Slot))
		if err != nil {
			return nil, err
		}
		s.Globals[GlobalSlot(g.Slot)] = GlobalStateSchema{Sem: sem, MaxItems: g.MaxItems}
	}
	for _, o := range w.Owned {
		if _, dup := s.Owned[OwnedSlot(o.Slot)]; dup {
			return nil, fault.New(fault.KindParse, "CHARTER-SCH-006",
				fmt.Sprintf("owned slot %d listed twice", o.Slot))
		}
		sem, err := semFromBytes(o.Sem, fmt.Sprintf("owned slot %d", o.Slot))
		if err != nil {
			return nil, err
		}
		s.Owned[OwnedSlot(o.Slot)] = OwnedStateSchema{Kind: StateKind(o.Kind), Format: AmountFormat(o.Format), Sem: sem}
	}

	var err error
	if s.Genesis.Globals, err = globalOccMap(w.Genesis.Globals, "genesis"); err != nil {
		return nil, err
	}
	if s.Genesis.Assignments, err = ownedOccMap(w.Genesis.Assignments, "genesis"); err != nil {
		return nil, err
	}
	if s.Genesis.Validator, err = siteFromWire(w.Genesis.Validator, "genesis"); err != nil {
		return nil, err
	}

	for _, t := range w.Transitions {
		if _, dup := s.Transitions[TransitionType(t.Type)]; dup {
			return nil, fault.New(fault.KindParse, "CHARTER-SCH-006",
				fmt.Sprintf("transition type %d listed twice", t.Type))
		}
		what := fmt.Sprintf("transition %d", t.Type)
		tr := TransitionSchema{}
		if tr.Globals, err = globalOccMap(t.Globals, what); err != nil {
			return nil, err
		}
		if tr.Inputs, err = ownedOccMap(t.Inputs, what); err != nil {
			return nil, err
		}
		if tr.Assignments, err = ownedOccMap(t.Assignments, what); err != nil {
			return nil, err
		}
		if tr.Validator, err = siteFromWire(t.Validator, what); err != nil {
			return nil, err
		}
		s.Transitions[TransitionType(t.Type)] = tr
	}
	return s, nil
}

// ParseSchema decodes the canonical serialized form. Non-canonical
// encodings are rejected by re-encoding and comparing bytes; semantic
// validation stays with Validate.
func ParseSchema(data []byte) (*Schema, error) {
	var w wireSchema
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, fault.Wrap(fault.KindParse, "CHARTER-SCH-004", "decode schema", err)
	}
	if w.Version != EncodingVersion {
		return nil, fault.New(fault.KindParse, "CHARTER-SCH-005",
			fmt.Sprintf("unsupported schema encoding version %d", w.Version))
	}
	s, err := fromWire(w)
	if err != nil {
		return nil, err
	}
	canonical, err := s.MarshalCanonical()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(data, canonical) {
		return nil, fault.New(fault.KindCanonical, "CHARTER-SCH-002", "non-canonical schema encoding")
	}
	return s, nil
}

func cidFromBytes(raw []byte) (cid.Cid, error) {
	return cidutil.CIDv1RawSHA256CID(raw)
}
