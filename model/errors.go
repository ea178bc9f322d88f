package model

import "fmt"

type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrInvalidCID      ErrorCode = "INVALID_CID"
	ErrInvalidArtifact ErrorCode = "INVALID_ARTIFACT"
	ErrMissingCAS      ErrorCode = "MISSING_CAS"
	ErrNotFound        ErrorCode = "NOT_FOUND"
	ErrCIDMismatch     ErrorCode = "CID_MISMATCH"
	ErrAuditFailed     ErrorCode = "AUDIT_FAILED"
	ErrInternal        ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
//
// RuleID carries the pipeline rule identifier when the underlying failure
// was a structured build error (e.g. CHARTER-SCH-104).
type CodedError struct {
	Code    ErrorCode `json:"code"`
	RuleID  string    `json:"ruleID,omitempty"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}
