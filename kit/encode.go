package kit

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"

	"xledger.io/charter/cidutil"
	"xledger.io/charter/fault"
	"xledger.io/charter/iface"
	"xledger.io/charter/schema"
	"xledger.io/charter/script"
	"xledger.io/charter/typesys"
)

// EncodingVersion tags the canonical serialized kit form.
const EncodingVersion = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("kit: create CBOR enc mode: %v", err))
	}
	encMode = em
	dm, err := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("kit: create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// wireKit embeds each component's canonical bytes, so the kit is one
// self-contained artifact and component identities can be re-derived
// from it alone. Scripts are sorted by library id.
type wireKit struct {
	_       struct{} `cbor:",toarray"`
	Version uint16
	Schema  []byte
	Iface   []byte
	Impl    []byte
	Types   []byte
	Scripts [][]byte
}

// MarshalCanonical returns the canonical serialized form.
func (k *Kit) MarshalCanonical() ([]byte, error) {
	schemaRaw, err := k.Schema.MarshalCanonical()
	if err != nil {
		return nil, err
	}
	ifaceRaw, err := k.Iface.MarshalCanonical()
	if err != nil {
		return nil, err
	}
	implRaw, err := k.Impl.MarshalCanonical()
	if err != nil {
		return nil, err
	}
	w := wireKit{
		Version: EncodingVersion,
		Schema:  schemaRaw,
		Iface:   ifaceRaw,
		Impl:    implRaw,
		Types:   k.Types.Bytes(),
		Scripts: make([][]byte, 0, k.Scripts.Len()),
	}
	for _, id := range k.Scripts.IDs() {
		lib, _ := k.Scripts.Get(id)
		w.Scripts = append(w.Scripts, lib.Bytes())
	}
	raw, err := encMode.Marshal(w)
	if err != nil {
		return nil, fault.Wrap(fault.KindRender, "CHARTER-KIT-005", "encode kit", err)
	}
	return raw, nil
}

// ParseKit decodes and validates a canonical serialized kit. Each
// embedded component goes through its own strict parser, then the whole
// is re-encoded and compared, then cross-validated.
func ParseKit(data []byte) (*Kit, error) {
	var w wireKit
	if err := decMode.Unmarshal(data, &w); err != nil {
		return nil, fault.Wrap(fault.KindParse, "CHARTER-KIT-006", "decode kit", err)
	}
	if w.Version != EncodingVersion {
		return nil, fault.New(fault.KindParse, "CHARTER-KIT-007",
			fmt.Sprintf("unsupported kit encoding version %d", w.Version))
	}
	sch, err := schema.ParseSchema(w.Schema)
	if err != nil {
		return nil, err
	}
	ifc, err := iface.ParseIface(w.Iface)
	if err != nil {
		return nil, err
	}
	im, err := iface.ParseImpl(w.Impl)
	if err != nil {
		return nil, err
	}
	types, err := typesys.ParseSystem(w.Types)
	if err != nil {
		return nil, err
	}
	scripts := script.NewSet()
	for _, raw := range w.Scripts {
		lib, err := script.ParseLibrary(raw)
		if err != nil {
			return nil, err
		}
		scripts.Add(lib)
	}
	if len(w.Scripts) != scripts.Len() {
		return nil, fault.New(fault.KindCanonical, "CHARTER-KIT-008", "duplicate library in kit")
	}
	k := &Kit{Schema: sch, Iface: ifc, Impl: im, Types: types, Scripts: scripts}
	canonical, err := k.MarshalCanonical()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(data, canonical) {
		return nil, fault.New(fault.KindCanonical, "CHARTER-KIT-008", "non-canonical kit encoding")
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

func cidFromBytes(raw []byte) (cid.Cid, error) {
	return cidutil.CIDv1RawSHA256CID(raw)
}
