package shared

import "errors"

// Error codes shared by every bounded context. Callers match on these codes,
// either through errors.Is against the sentinel values below or HasCode.
const (
	CodeNotFound               = "NOT_FOUND"
	CodeMissingTenant          = "MISSING_TENANT"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeAmountExceedsBalance   = "AMOUNT_EXCEEDS_BALANCE"
	CodeDuplicateKey           = "DUPLICATE_KEY"
	CodeTransientFailure       = "TRANSIENT_FAILURE"
	CodeSerializationFailure   = "SERIALIZATION_FAILURE"
	CodeConcurrencyConflict    = "CONCURRENCY_CONFLICT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error that keeps cause in its chain
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrMissingTenant          = NewDomainError(CodeMissingTenant, "Tenant ID is required")
	ErrValidationFailed       = NewDomainError(CodeValidationFailed, "Invalid input provided")
	ErrInvalidStateTransition = NewDomainError(CodeInvalidStateTransition, "Operation not allowed in current state")
	ErrAmountExceedsBalance   = NewDomainError(CodeAmountExceedsBalance, "Amount exceeds the available balance")
	ErrDuplicateKey           = NewDomainError(CodeDuplicateKey, "Resource already exists")
	ErrTransientFailure       = NewDomainError(CodeTransientFailure, "Temporary store failure, retry the request")
	ErrSerializationFailure   = NewDomainError(CodeSerializationFailure, "Snapshot could not be serialized")
	ErrConcurrencyConflict    = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
)
