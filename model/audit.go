package model

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/fault"
	"xledger.io/charter/isa"
	"xledger.io/charter/kit"
	"xledger.io/charter/storage"
	"xledger.io/charter/verify"
)

type AuditOptions struct {
	CAS         storage.CAS
	CASAdapters []storage.CAS

	// Expect pins per-operation validator opcodes, typically a contract
	// family's published expectations. Nil audits family-agnostically.
	Expect *verify.Expectations

	// Oracle, when set, additionally executes each validator entry.
	Oracle isa.Oracle
}

// AuditOutcome is a compact, Go-friendly view of auditor output.
//
// It is intended for integrations that want the pass/fail answer plus the
// violations without consuming the full AuditResponse DTO.
type AuditOutcome struct {
	KitCID     cid.Cid
	Ok         bool
	Violations []CheckVerdict
}

// AuditResult runs the auditor (hydrating by CID via CAS when needed) and
// returns a compact, Go-friendly view of the outcome.
func AuditResult(req AuditRequest, opts AuditOptions) (*AuditOutcome, error) {
	report, err := runAudit(req, opts)
	if err != nil {
		return nil, err
	}

	kitCID, err := cid.Decode(report.KitID)
	if err != nil {
		return nil, NewError(ErrInvalidCID, "invalid kit cid")
	}
	out := &AuditOutcome{KitCID: kitCID, Ok: report.Ok()}
	for _, v := range report.Failures() {
		out.Violations = append(out.Violations, fromVerdict(v))
	}
	return out, nil
}

// Audit runs the auditor (hydrating by CID via CAS when needed) and returns
// the full boundary DTO.
func Audit(req AuditRequest, opts AuditOptions) (*AuditResponse, error) {
	report, err := runAudit(req, opts)
	if err != nil {
		return nil, err
	}
	return &AuditResponse{Report: fromReport(report)}, nil
}

func runAudit(req AuditRequest, opts AuditOptions) (*verify.Report, error) {
	switch req.Mode {
	case AuditPermissive, AuditStrict:
	case "":
		return nil, NewError(ErrInvalidRequest, "missing audit mode")
	default:
		return nil, NewError(ErrInvalidRequest, "invalid audit mode")
	}

	// The auditor itself runs permissively so the report is always
	// complete; strictness is enforced at this boundary.
	vopts := verify.Options{Mode: verify.Permissive, Oracle: opts.Oracle}
	if opts.Expect != nil {
		vopts.Expect = *opts.Expect
	}

	var report *verify.Report
	switch {
	case len(req.Kit.Bytes) > 0 && req.Kit.CID != "":
		return nil, NewError(ErrInvalidRequest, "kit ref has both bytes and cid")
	case len(req.Kit.Bytes) > 0:
		k, err := kit.ParseKit(req.Kit.Bytes)
		if err != nil {
			return nil, mapErr(err)
		}
		report, err = verify.AuditKit(k, vopts)
		if err != nil {
			return nil, mapErr(err)
		}
	case req.Kit.CID != "":
		id, err := cid.Decode(req.Kit.CID)
		if err != nil {
			return nil, NewError(ErrInvalidCID, "invalid cid")
		}
		cas := hydrationCAS(opts)
		if cas == nil {
			return nil, NewError(ErrMissingCAS, "kit referenced by cid but no CAS configured")
		}
		report, err = verify.Audit(cas, id, vopts)
		if err != nil {
			return nil, mapErr(err)
		}
	default:
		return nil, NewError(ErrInvalidRequest, "kit ref missing bytes/cid")
	}

	if req.Mode == AuditStrict && !report.Ok() {
		first := report.Failures()[0]
		return nil, NewError(ErrAuditFailed,
			fmt.Sprintf("%d violations, first: %s %s", report.Violations(), first.Check, first.Target))
	}
	return report, nil
}

func hydrationCAS(opts AuditOptions) storage.CAS {
	if len(opts.CASAdapters) == 0 {
		return opts.CAS
	}
	adapters := make([]storage.CAS, 0, 1+len(opts.CASAdapters))
	if opts.CAS != nil {
		adapters = append(adapters, opts.CAS)
	}
	adapters = append(adapters, opts.CASAdapters...)
	return storage.MultiCAS{Adapters: adapters}
}

func fromVerdict(v verify.Verdict) CheckVerdict {
	return CheckVerdict{
		Check:   v.Check,
		Target:  v.Target,
		Status:  string(v.Status),
		Reasons: append([]string(nil), v.Reasons...),
	}
}

func fromReport(r *verify.Report) AuditReport {
	out := AuditReport{
		KitCID:      r.KitID,
		SchemaCID:   r.SchemaID,
		SchemaName:  r.SchemaName,
		IfaceCID:    r.IfaceID,
		ImplCID:     r.ImplID,
		TypesCID:    r.TypesID,
		LibraryCIDs: append([]string(nil), r.LibraryIDs...),
		Ok:          r.Ok(),
		Verdicts:    make([]CheckVerdict, 0, len(r.Verdicts)),
	}
	for _, v := range r.Verdicts {
		out.Verdicts = append(out.Verdicts, fromVerdict(v))
	}
	return out
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(ErrNotFound, err.Error())
	}
	if errors.Is(err, storage.ErrCIDMismatch) {
		return NewError(ErrCIDMismatch, err.Error())
	}
	if errors.Is(err, storage.ErrInvalidCID) {
		return NewError(ErrInvalidCID, err.Error())
	}
	var fe *fault.Error
	if errors.As(err, &fe) {
		out := NewError(ErrInvalidArtifact, err.Error())
		out.RuleID = fe.RuleID
		return out
	}
	return NewError(ErrInternal, err.Error())
}
