package kit

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/fault"
	"xledger.io/charter/storage"
)

// Publish stores the kit and each of its components as separate CAS
// objects, so schemas, interfaces, and libraries shared across kits are
// stored once and remain individually addressable. Returns the kit's id.
func Publish(cas storage.CAS, k *Kit) (cid.Cid, error) {
	if err := k.Validate(); err != nil {
		return cid.Undef, err
	}

	put := func(what string, raw []byte, want cid.Cid) error {
		got, err := cas.Put(raw)
		if err != nil {
			return fmt.Errorf("publish %s: %w", what, err)
		}
		if !got.Equals(want) {
			return fault.New(fault.KindInternal, "CHARTER-KIT-009",
				fmt.Sprintf("%s stored under %s, derived %s", what, got, want))
		}
		return nil
	}

	schemaRaw, err := k.Schema.MarshalCanonical()
	if err != nil {
		return cid.Undef, err
	}
	schemaID, err := k.Schema.ID()
	if err != nil {
		return cid.Undef, err
	}
	if err := put("schema", schemaRaw, schemaID); err != nil {
		return cid.Undef, err
	}

	ifaceRaw, err := k.Iface.MarshalCanonical()
	if err != nil {
		return cid.Undef, err
	}
	ifaceID, err := k.Iface.ID()
	if err != nil {
		return cid.Undef, err
	}
	if err := put("interface", ifaceRaw, ifaceID); err != nil {
		return cid.Undef, err
	}

	implRaw, err := k.Impl.MarshalCanonical()
	if err != nil {
		return cid.Undef, err
	}
	implID, err := k.Impl.ID()
	if err != nil {
		return cid.Undef, err
	}
	if err := put("impl", implRaw, implID); err != nil {
		return cid.Undef, err
	}

	if err := put("type system", k.Types.Bytes(), k.Types.ID()); err != nil {
		return cid.Undef, err
	}

	for _, id := range k.Scripts.IDs() {
		lib, _ := k.Scripts.Get(id)
		if err := put(fmt.Sprintf("library %s", id), lib.Bytes(), id); err != nil {
			return cid.Undef, err
		}
	}

	kitRaw, err := k.MarshalCanonical()
	if err != nil {
		return cid.Undef, err
	}
	kitID, err := k.ID()
	if err != nil {
		return cid.Undef, err
	}
	if err := put("kit", kitRaw, kitID); err != nil {
		return cid.Undef, err
	}
	return kitID, nil
}

// Load fetches a published kit by id and runs the full strict parse and
// validation path.
func Load(cas storage.CAS, id cid.Cid) (*Kit, error) {
	raw, err := cas.Get(id)
	if err != nil {
		return nil, fmt.Errorf("load kit %s: %w", id, err)
	}
	return ParseKit(raw)
}
