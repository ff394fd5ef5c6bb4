package guard

import (
	"errors"
	"fmt"
)

// Code identifies the typed block reason. The string values are a
// stable wire contract shared by the HTTP bridge and the SDK.
type Code string

const (
	CodeInvalidRequest        Code = "PIC_INVALID_REQUEST"
	CodeNoProposal            Code = "PIC_NO_PROPOSAL"
	CodeSchemaInvalid         Code = "PIC_SCHEMA_INVALID"
	CodeContractViolation     Code = "PIC_CONTRACT_VIOLATION"
	CodeToolBindingMismatch   Code = "PIC_TOOL_BINDING_MISMATCH"
	CodeEvidenceLimitExceeded Code = "PIC_EVIDENCE_LIMIT_EXCEEDED"
	CodeBudgetExceeded        Code = "PIC_BUDGET_EXCEEDED"
	CodeInternalError         Code = "PIC_INTERNAL_ERROR"
)

// Error is a typed evaluation block. Details is populated only when
// debug mode is enabled; it must never reach untrusted callers
// otherwise.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts a typed guard error from err, if present.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
