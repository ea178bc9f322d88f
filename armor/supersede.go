package armor

import (
	"bytes"
	"fmt"

	"xledger.io/charter/fault"
)

// Supersedes returns the armor id this envelope declares it replaces.
func (e *Envelope) Supersedes() (string, bool) {
	v, ok := e.Meta["Supersedes-CID"]
	return v, ok
}

// ValidateSupersession checks that newEnv legitimately replaces oldEnv.
// A replacement must declare Supersedes-CID equal to the old armor's id,
// carry the same envelope type and developer, and differ in bytes. It
// does not have to wrap the same payload; re-issuing a corrected
// artifact is the point.
func ValidateSupersession(newEnv, oldEnv *Envelope) error {
	if bytes.Equal(newEnv.raw, oldEnv.raw) {
		return fault.New(fault.KindValidation, "CHARTER-ARM-501", "supersession invalid: new armor identical to old")
	}
	sup, ok := newEnv.Supersedes()
	if !ok {
		return fault.New(fault.KindValidation, "CHARTER-ARM-502", "supersession invalid: new armor does not declare Supersedes-CID")
	}
	if oldID := oldEnv.ID(); sup != oldID {
		return fault.New(fault.KindValidation, "CHARTER-ARM-503",
			fmt.Sprintf("supersession invalid: Supersedes-CID=%q does not match old armor id %q", sup, oldID))
	}
	if newEnv.Type != oldEnv.Type {
		return fault.New(fault.KindValidation, "CHARTER-ARM-504",
			fmt.Sprintf("supersession invalid: type mismatch old=%q new=%q", oldEnv.Type, newEnv.Type))
	}
	oldDev, ok := oldEnv.Meta["Developer"]
	if !ok {
		return fault.New(fault.KindValidation, "CHARTER-ARM-505", "supersession invalid: old armor missing Developer")
	}
	newDev, ok := newEnv.Meta["Developer"]
	if !ok {
		return fault.New(fault.KindValidation, "CHARTER-ARM-505", "supersession invalid: new armor missing Developer")
	}
	if oldDev != newDev {
		return fault.New(fault.KindValidation, "CHARTER-ARM-506",
			fmt.Sprintf("supersession invalid: developer mismatch old=%q new=%q", oldDev, newDev))
	}
	return nil
}
