package verify

import (
	"fmt"

	"xledger.io/charter/fault"
	"xledger.io/charter/isa"
	"xledger.io/charter/schema"
)

// Mode selects how aggressively the auditor rejects violations.
//
// Strict mode prefers explicit failure over a report the caller might
// not read. Permissive mode always returns the report and leaves the
// judgement to the caller.
type Mode int

const (
	Permissive Mode = iota
	Strict
)

// Expectations pins the exact opcode each validator entry must carry.
// A contract family publishes its own expectations; without them the
// auditor only requires a commitment-extension opcode at each entry.
type Expectations struct {
	Genesis     isa.Opcode
	HasGenesis  bool
	Transitions map[schema.TransitionType]isa.Opcode
}

func (e Expectations) genesis() (isa.Opcode, bool) {
	return e.Genesis, e.HasGenesis
}

func (e Expectations) transition(tt schema.TransitionType) (isa.Opcode, bool) {
	op, ok := e.Transitions[tt]
	return op, ok
}

// Options controls auditor behavior. The zero value is a permissive
// audit with family-agnostic opcode checks and no execution oracle.
type Options struct {
	Mode   Mode
	Expect Expectations
	Oracle isa.Oracle
}

func (o Options) withDefaults() Options { return o }

func enforceStrict(report *Report) error {
	if n := report.Violations(); n > 0 {
		first := report.Failures()[0]
		return fault.New(fault.KindValidation, "CHARTER-VER-003",
			fmt.Sprintf("strict mode: %d violations, first: %s %s", n, first.Check, first.Target))
	}
	return nil
}
