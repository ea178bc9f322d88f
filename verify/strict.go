package verify

import (
	"github.com/ipfs/go-cid"

	"xledger.io/charter/kit"
	"xledger.io/charter/storage"
)

// AuditStrict runs Audit in strict mode: any violation is an error.
//
// This is a convenience entry point for callers that want "no ambiguity"
// behavior while keeping the base auditor available.
func AuditStrict(cas storage.CAS, id cid.Cid) (*Report, error) {
	return Audit(cas, id, Options{Mode: Strict})
}

// AuditKitStrict runs AuditKit in strict mode.
func AuditKitStrict(k *kit.Kit) (*Report, error) {
	return AuditKit(k, Options{Mode: Strict})
}
