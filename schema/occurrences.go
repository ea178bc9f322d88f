package schema

import (
	"fmt"
	"math"

	"xledger.io/charter/fault"
)

// Unbounded is the Max value meaning "no upper bound".
const Unbounded uint16 = math.MaxUint16

// Occurrences bounds how many state values a slot holds in one
// operation. The schema declares the bounds; consensus-side validation
// counts actual values against them. Both bounds are inclusive.
type Occurrences struct {
	Min uint16
	Max uint16
}

// Once requires exactly one value.
func Once() Occurrences { return Occurrences{Min: 1, Max: 1} }

// OnceOrMore requires at least one value.
func OnceOrMore() Occurrences { return Occurrences{Min: 1, Max: Unbounded} }

// NoneOrOnce permits at most one value.
func NoneOrOnce() Occurrences { return Occurrences{Min: 0, Max: 1} }

// NoneOrMore permits any number of values.
func NoneOrMore() Occurrences { return Occurrences{Min: 0, Max: Unbounded} }

// Between bounds the count to [min, max].
func Between(min, max uint16) Occurrences { return Occurrences{Min: min, Max: max} }

// Check returns a structured error when count falls outside the bounds.
func (o Occurrences) Check(count uint16) error {
	if count < o.Min {
		return fault.New(fault.KindValidation, "CHARTER-OCC-001",
			fmt.Sprintf("requires at least %d value(s), got %d", o.Min, count))
	}
	if count > o.Max {
		return fault.New(fault.KindValidation, "CHARTER-OCC-002",
			fmt.Sprintf("permits at most %d value(s), got %d", o.Max, count))
	}
	return nil
}

func (o Occurrences) wellFormed() error {
	if o.Min > o.Max {
		return fault.New(fault.KindValidation, "CHARTER-OCC-003",
			fmt.Sprintf("lower bound %d above upper bound %d", o.Min, o.Max))
	}
	if o.Max == 0 {
		return fault.New(fault.KindValidation, "CHARTER-OCC-003", "upper bound of zero admits no values")
	}
	return nil
}

func (o Occurrences) String() string {
	switch o {
	case Once():
		return "once"
	case OnceOrMore():
		return "once-or-more"
	case NoneOrOnce():
		return "none-or-once"
	case NoneOrMore():
		return "none-or-more"
	}
	return fmt.Sprintf("between(%d,%d)", o.Min, o.Max)
}
