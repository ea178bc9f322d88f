package model

// BlobRef refers to canonical bytes directly or by CID.
// Exactly one of CID or Bytes MUST be set.
//
// JSON note: Bytes are encoded as base64 by encoding/json.
type BlobRef struct {
	CID   string `json:"cid,omitempty"`
	Bytes []byte `json:"bytes,omitempty"`
}

type AuditMode string

const (
	AuditPermissive AuditMode = "permissive"
	AuditStrict     AuditMode = "strict"
)

type AuditRequest struct {
	Kit  BlobRef   `json:"kit"`
	Mode AuditMode `json:"mode"`
}

// CheckVerdict is one auditor check against one target.
type CheckVerdict struct {
	Check   string   `json:"check"`
	Target  string   `json:"target"`
	Status  string   `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
}

type AuditReport struct {
	KitCID      string         `json:"kitCID"`
	SchemaCID   string         `json:"schemaCID"`
	SchemaName  string         `json:"schemaName"`
	IfaceCID    string         `json:"ifaceCID"`
	ImplCID     string         `json:"implCID"`
	TypesCID    string         `json:"typesCID"`
	LibraryCIDs []string       `json:"libraryCIDs"`
	Ok          bool           `json:"ok"`
	Verdicts    []CheckVerdict `json:"verdicts"`
}

type AuditResponse struct {
	Report AuditReport `json:"report"`
}

// GlobalSlotInfo describes one declared global state slot.
type GlobalSlotInfo struct {
	Slot     uint16 `json:"slot"`
	Name     string `json:"name,omitempty"`
	Sem      string `json:"sem"`
	MaxItems uint16 `json:"maxItems"`
}

// OwnedSlotInfo describes one declared owned state slot.
type OwnedSlotInfo struct {
	Slot   uint16 `json:"slot"`
	Name   string `json:"name,omitempty"`
	Kind   string `json:"kind"`
	Format string `json:"format,omitempty"`
	Sem    string `json:"sem,omitempty"`
}

// GenesisInfo describes the issuance operation.
type GenesisInfo struct {
	Validator string `json:"validator,omitempty"`
}

// TransitionInfo describes one transition family.
type TransitionInfo struct {
	Type      uint16 `json:"type"`
	Name      string `json:"name,omitempty"`
	Validator string `json:"validator,omitempty"`
}

// KitSummary is a compact, JSON-facing projection of a contract kit.
type KitSummary struct {
	KitCID      string           `json:"kitCID"`
	SchemaCID   string           `json:"schemaCID"`
	SchemaName  string           `json:"schemaName"`
	Developer   string           `json:"developer"`
	IfaceCID    string           `json:"ifaceCID"`
	IfaceName   string           `json:"ifaceName"`
	ImplCID     string           `json:"implCID"`
	TypesCID    string           `json:"typesCID"`
	TypesName   string           `json:"typesName"`
	LibraryCIDs []string         `json:"libraryCIDs"`
	Globals     []GlobalSlotInfo `json:"globals"`
	Owned       []OwnedSlotInfo  `json:"owned"`
	Genesis     GenesisInfo      `json:"genesis"`
	Transitions []TransitionInfo `json:"transitions"`
}
