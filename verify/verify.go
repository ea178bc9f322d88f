// Package verify implements the deterministic kit auditor.
package verify

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/cidutil"
	"xledger.io/charter/fault"
	"xledger.io/charter/isa"
	"xledger.io/charter/kit"
	"xledger.io/charter/schema"
	"xledger.io/charter/script"
	"xledger.io/charter/storage"
)

type Status string

const (
	StatusPass Status = "Pass"
	StatusFail Status = "Fail"
)

// Verdict records the outcome of one audit check against one target.
// Verdicts are emitted in a fixed order, so two audits of the same kit
// produce identical reports.
type Verdict struct {
	Check   string
	Target  string
	Status  Status
	Reasons []string
}

// Report is the full audit result for one kit.
type Report struct {
	KitID      string
	SchemaID   string
	SchemaName string
	IfaceID    string
	ImplID     string
	TypesID    string
	LibraryIDs []string

	Verdicts []Verdict
}

// Violations counts failing verdicts.
func (r *Report) Violations() int {
	n := 0
	for _, v := range r.Verdicts {
		if v.Status == StatusFail {
			n++
		}
	}
	return n
}

// Ok reports whether every check passed.
func (r *Report) Ok() bool { return r.Violations() == 0 }

// Failures returns the failing verdicts in report order.
func (r *Report) Failures() []Verdict {
	var out []Verdict
	for _, v := range r.Verdicts {
		if v.Status == StatusFail {
			out = append(out, v)
		}
	}
	return out
}

func (r *Report) pass(check, target string) {
	r.Verdicts = append(r.Verdicts, Verdict{Check: check, Target: target, Status: StatusPass})
}

func (r *Report) fail(check, target string, reasons ...string) {
	r.Verdicts = append(r.Verdicts, Verdict{Check: check, Target: target, Status: StatusFail, Reasons: reasons})
}

// Audit loads a published kit from the store and re-validates it from
// first principles. The returned report carries every violation; in
// Strict mode any violation is also returned as an error.
func Audit(cas storage.CAS, id cid.Cid, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	raw, err := cas.Get(id)
	if err != nil {
		return nil, fault.Wrap(fault.KindValidation, "CHARTER-VER-001", fmt.Sprintf("load kit %s", id), err)
	}
	k, err := kit.ParseKit(raw)
	if err != nil {
		return nil, fault.Wrap(fault.KindValidation, "CHARTER-VER-002", fmt.Sprintf("parse kit %s", id), err)
	}

	report, err := auditKit(k, opts)
	if err != nil {
		return nil, err
	}

	// Identity of the stored bytes themselves. Get already hands back the
	// bytes for the requested id, but the auditor does not take the
	// store's word for it.
	if !cidutil.Matches(id, raw) {
		report.fail("kit/id", id.String(), "stored bytes do not hash to the requested id")
	} else {
		report.pass("kit/id", id.String())
	}

	auditPublication(cas, k, report)

	if opts.Mode == Strict {
		if err := enforceStrict(report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// AuditKit audits an in-memory kit. Publication checks are skipped;
// everything content-derived runs.
func AuditKit(k *kit.Kit, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	report, err := auditKit(k, opts)
	if err != nil {
		return nil, err
	}
	if opts.Mode == Strict {
		if err := enforceStrict(report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func auditKit(k *kit.Kit, opts Options) (*Report, error) {
	report := &Report{}

	kitID, err := k.ID()
	if err != nil {
		return nil, fault.Wrap(fault.KindValidation, "CHARTER-VER-002", "derive kit id", err)
	}
	report.KitID = kitID.String()
	report.SchemaName = k.Schema.Name
	report.TypesID = k.Types.ID().String()
	for _, libID := range k.Scripts.IDs() {
		report.LibraryIDs = append(report.LibraryIDs, libID.String())
	}

	schemaID, err := k.Schema.ID()
	if err != nil {
		report.fail("schema/canonical", "", err.Error())
	} else {
		report.SchemaID = schemaID.String()
		report.pass("schema/canonical", schemaID.String())
	}

	ifaceID, err := k.Iface.ID()
	if err != nil {
		report.fail("iface/canonical", "", err.Error())
	} else {
		report.IfaceID = ifaceID.String()
		report.pass("iface/canonical", ifaceID.String())
	}

	implID, err := k.Impl.ID()
	if err != nil {
		report.fail("impl/canonical", "", err.Error())
	} else {
		report.ImplID = implID.String()
		report.pass("impl/canonical", implID.String())
	}

	// Structural closure: slot references, occurrence declarations, and
	// validator site resolution, every failure reported.
	if errs := k.Schema.ValidateAll(k.Scripts); len(errs) > 0 {
		reasons := make([]string, 0, len(errs))
		for _, e := range errs {
			reasons = append(reasons, e.Error())
		}
		report.fail("schema/structure", report.SchemaID, reasons...)
	} else {
		report.pass("schema/structure", report.SchemaID)
	}

	// Binding coverage: the impl must name real slots and satisfy the
	// interface shape it claims.
	if err := k.Impl.ValidateAgainst(k.Iface, k.Schema); err != nil {
		report.fail("impl/binding", report.ImplID, err.Error())
	} else {
		report.pass("impl/binding", report.ImplID)
	}

	auditTypes(k, report)
	auditSites(k, opts, report)

	return report, nil
}

func auditTypes(k *kit.Kit, report *Report) {
	target := k.Types.ID().String()
	var reasons []string
	for _, slot := range k.Schema.GlobalSlots() {
		g := k.Schema.Globals[slot]
		if !k.Types.Contains(g.Sem) {
			reasons = append(reasons, fmt.Sprintf("global slot %d: data shape not in type system", slot))
		}
	}
	for _, slot := range k.Schema.OwnedSlots() {
		o := k.Schema.Owned[slot]
		if o.Kind == schema.StateStructured && !k.Types.Contains(o.Sem) {
			reasons = append(reasons, fmt.Sprintf("owned slot %d: data shape not in type system", slot))
		}
	}
	if len(reasons) > 0 {
		report.fail("types/closure", target, reasons...)
	} else {
		report.pass("types/closure", target)
	}
}

// auditSites re-proves the validator entry points: each declared site
// must resolve, land on an instruction boundary, and carry the opcode
// the schema's rule calls for. With pinned expectations the opcode must
// match exactly; otherwise it must at least belong to the commitment
// extension.
func auditSites(k *kit.Kit, opts Options, report *Report) {
	check := func(name string, site *script.Site, want isa.Opcode, pinned bool) {
		if site == nil {
			return
		}
		target := fmt.Sprintf("%s:%d", site.Lib, site.Pos)
		lib, err := k.Scripts.Resolve(*site)
		if err != nil {
			report.fail(name, target, err.Error())
			return
		}
		if pinned {
			if err := script.CheckEntry(lib, site.Pos, want); err != nil {
				report.fail(name, target, err.Error())
				return
			}
		} else {
			if err := script.EntryBoundary(lib, site.Pos); err != nil {
				report.fail(name, target, err.Error())
				return
			}
			op, _ := lib.OpcodeAt(site.Pos)
			if !op.Commitment() {
				report.fail(name, target, fmt.Sprintf("entry opcode %s is not a commitment check", op))
				return
			}
		}
		if opts.Oracle != nil {
			if err := opts.Oracle.Exec(lib.Code(), site.Pos, nil); err != nil {
				report.fail(name, target, fmt.Sprintf("oracle: %v", err))
				return
			}
		}
		report.pass(name, target)
	}

	want, pinned := opts.Expect.genesis()
	check("script/genesis", k.Schema.Genesis.Validator, want, pinned)

	for _, tt := range k.Schema.TransitionTypes() {
		ts := k.Schema.Transitions[tt]
		want, pinned := opts.Expect.transition(tt)
		check(fmt.Sprintf("script/transition/%d", tt), ts.Validator, want, pinned)
	}
}

func auditPublication(cas storage.CAS, k *kit.Kit, report *Report) {
	component := func(name string, id cid.Cid, canonical []byte) {
		stored, err := cas.Get(id)
		if err != nil {
			if storage.IsNotFound(err) {
				report.fail("publication/"+name, id.String(), "component not individually published")
			} else {
				report.fail("publication/"+name, id.String(), err.Error())
			}
			return
		}
		if string(stored) != string(canonical) {
			report.fail("publication/"+name, id.String(), "stored component bytes differ from kit contents")
			return
		}
		report.pass("publication/"+name, id.String())
	}

	if raw, err := k.Schema.MarshalCanonical(); err == nil {
		if id, err := k.Schema.ID(); err == nil {
			component("schema", id, raw)
		}
	}
	if raw, err := k.Iface.MarshalCanonical(); err == nil {
		if id, err := k.Iface.ID(); err == nil {
			component("iface", id, raw)
		}
	}
	if raw, err := k.Impl.MarshalCanonical(); err == nil {
		if id, err := k.Impl.ID(); err == nil {
			component("impl", id, raw)
		}
	}
	component("types", k.Types.ID(), k.Types.Bytes())
	for _, libID := range k.Scripts.IDs() {
		lib, ok := k.Scripts.Get(libID)
		if !ok {
			continue
		}
		component("library", libID, lib.Bytes())
	}
}
