// Package fungible builds the non-inflatable fungible asset family: the
// schema, interface binding, and validation script for a token whose
// supply is fixed at issuance. Issuance proves the initial commitment
// sum lies within the configured bounds; every transfer proves the sum
// is conserved across inputs and outputs. Inflating the supply would
// break the conservation proof, so the cap needs no trusted party.
package fungible

import (
	"fmt"

	"xledger.io/charter/fault"
	"xledger.io/charter/iface"
	"xledger.io/charter/isa"
	"xledger.io/charter/kit"
	"xledger.io/charter/schema"
	"xledger.io/charter/script"
	"xledger.io/charter/typesys"
	"xledger.io/charter/verify"
)

// SchemaName is the family's schema name.
const SchemaName = "NonInflatableAsset"

// State slots and transition types of the family. The numbering is part
// of the consensus surface and never changes.
const (
	GlobalSpec         schema.GlobalSlot = 2000
	GlobalTerms        schema.GlobalSlot = 2001
	GlobalIssuedSupply schema.GlobalSlot = 2010

	OwnedAsset schema.OwnedSlot = 4000

	TransitionTransfer schema.TransitionType = 10000
)

// The validation library's source. Genesis runs the commitment-sum
// range check against the configured bounds; transfer runs the
// conservation check for the configured commitment family.
const sourceTemplate = `; non-inflatable asset validation
genesis:
    pccs %#04x, %#04x
    ret
transfer:
    pcvs %#04x
`

// Script assembles the family's validation library for the given
// parameters and returns it with the genesis and transfer entry
// offsets. The entries are taken from the assembler's label table and
// then proven: the genesis offset must carry the range-check opcode and
// the transfer offset the conservation opcode, or construction fails.
func Script(p Params) (*script.Library, uint16, uint16, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, 0, err
	}
	src := fmt.Sprintf(sourceTemplate, p.SumUpper, p.SumLower, p.ConservationFamily)
	lib, entries, err := script.AssembleSource(src)
	if err != nil {
		return nil, 0, 0, err
	}
	genesis, ok := entries["genesis"]
	if !ok {
		return nil, 0, 0, fault.New(fault.KindInternal, "CHARTER-FAM-002", "validation source lost its genesis label")
	}
	transfer, ok := entries["transfer"]
	if !ok {
		return nil, 0, 0, fault.New(fault.KindInternal, "CHARTER-FAM-002", "validation source lost its transfer label")
	}
	if err := script.CheckEntry(lib, genesis, isa.OpPCCS); err != nil {
		return nil, 0, 0, err
	}
	if err := script.CheckEntry(lib, transfer, isa.OpPCVS); err != nil {
		return nil, 0, 0, err
	}
	return lib, genesis, transfer, nil
}

// NewSchema builds the family's schema for a developer identity and
// parameters, returning the schema together with the validation library
// its sites point into.
func NewSchema(developer string, p Params) (*schema.Schema, *script.Library, error) {
	lib, genesis, transfer, err := Script(p)
	if err != nil {
		return nil, nil, err
	}
	std := typesys.Standard()
	specSem, err := std.SemID(typesys.DefAssetSpec)
	if err != nil {
		return nil, nil, err
	}
	termsSem, err := std.SemID(typesys.DefAssetTerms)
	if err != nil {
		return nil, nil, err
	}
	amountSem, err := std.SemID(typesys.DefAmount)
	if err != nil {
		return nil, nil, err
	}

	sch, err := schema.NewBuilder(SchemaName, developer).
		Global(GlobalSpec, specSem, 1).
		Global(GlobalTerms, termsSem, 1).
		Global(GlobalIssuedSupply, amountSem, 1).
		OwnedFungible(OwnedAsset, schema.AmountU64).
		Genesis(schema.GenesisSchema{
			Globals: map[schema.GlobalSlot]schema.Occurrences{
				GlobalSpec:         schema.Once(),
				GlobalTerms:        schema.Once(),
				GlobalIssuedSupply: schema.Once(),
			},
			Assignments: map[schema.OwnedSlot]schema.Occurrences{
				OwnedAsset: schema.OnceOrMore(),
			},
			Validator: &script.Site{Lib: lib.ID(), Pos: genesis},
		}).
		Transition(TransitionTransfer, schema.TransitionSchema{
			Inputs: map[schema.OwnedSlot]schema.Occurrences{
				OwnedAsset: schema.OnceOrMore(),
			},
			Assignments: map[schema.OwnedSlot]schema.Occurrences{
				OwnedAsset: schema.OnceOrMore(),
			},
			Validator: &script.Site{Lib: lib.ID(), Pos: transfer},
		}).
		Build()
	if err != nil {
		return nil, nil, err
	}
	if err := sch.Validate(script.NewSet(lib)); err != nil {
		return nil, nil, err
	}
	return sch, lib, nil
}

// NewImpl binds the schema to the standard fungible interface. The
// timestamp is the caller's: nothing here reads the clock, so builds are
// reproducible when it is pinned.
func NewImpl(sch *schema.Schema, developer string, timestamp int64) (*iface.Impl, error) {
	schemaID, err := sch.ID()
	if err != nil {
		return nil, err
	}
	ifc := iface.Fungible()
	ifaceID, err := ifc.ID()
	if err != nil {
		return nil, err
	}
	im := &iface.Impl{
		Version:   iface.ImplVersion,
		SchemaID:  schemaID,
		IfaceID:   ifaceID,
		Timestamp: timestamp,
		Developer: developer,
		Globals: []iface.NamedGlobal{
			{Name: "spec", Slot: GlobalSpec},
			{Name: "terms", Slot: GlobalTerms},
			{Name: "issuedSupply", Slot: GlobalIssuedSupply},
		},
		Assignments: []iface.NamedOwned{
			{Name: "assetOwner", Slot: OwnedAsset},
		},
		Transitions: []iface.NamedTransition{
			{Name: "transfer", Type: TransitionTransfer},
		},
	}
	if err := im.ValidateAgainst(ifc, sch); err != nil {
		return nil, err
	}
	return im, nil
}

// Issuer builds the family's complete kit.
func Issuer(developer string, timestamp int64, p Params) (*kit.Kit, error) {
	sch, lib, err := NewSchema(developer, p)
	if err != nil {
		return nil, err
	}
	im, err := NewImpl(sch, developer, timestamp)
	if err != nil {
		return nil, err
	}
	return kit.Assemble(sch, iface.Fungible(), im, typesys.Standard(), script.NewSet(lib))
}

// Expectations returns the family's audit expectations: genesis entries
// carry the range check, transfer entries the conservation check.
func Expectations() verify.Expectations {
	return verify.Expectations{
		Genesis:    isa.OpPCCS,
		HasGenesis: true,
		Transitions: map[schema.TransitionType]isa.Opcode{
			TransitionTransfer: isa.OpPCVS,
		},
	}
}
