package fungible

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"xledger.io/charter/fault"
)

// Params are the commitment-check operands baked into the family's
// validation script. They are consensus parameters: changing any of them
// yields a different library, and with it a different schema identity.
// Most issuers keep the protocol defaults; the values are configurable
// per issuance for deployments running their own commitment setup.
type Params struct {
	// SumUpper and SumLower bound the issuance commitment sum checked
	// at genesis.
	SumUpper uint16 `toml:"sum_upper"`
	SumLower uint16 `toml:"sum_lower"`
	// ConservationFamily selects the commitment family whose sum must
	// be conserved across every transfer.
	ConservationFamily uint16 `toml:"conservation_family"`
}

// DefaultParams returns the protocol-wide defaults.
func DefaultParams() Params {
	return Params{SumUpper: 4000, SumLower: 2000, ConservationFamily: 4000}
}

// Validate checks the parameter relations the VM assumes.
func (p Params) Validate() error {
	if p.SumLower > p.SumUpper {
		return fault.New(fault.KindValidation, "CHARTER-FAM-001",
			fmt.Sprintf("sum lower bound %d above upper bound %d", p.SumLower, p.SumUpper))
	}
	if p.SumUpper == 0 {
		return fault.New(fault.KindValidation, "CHARTER-FAM-001", "sum upper bound of zero admits no issuance")
	}
	if p.ConservationFamily == 0 {
		return fault.New(fault.KindValidation, "CHARTER-FAM-001", "conservation family zero is reserved")
	}
	return nil
}

// LoadParams reads a TOML parameter file. Unknown keys are rejected, and
// absent keys keep their protocol defaults.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return Params{}, fmt.Errorf("params %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return Params{}, fmt.Errorf("params %s: unknown key %q", path, undec[0].String())
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
