package dto

import (
	"net/http"

	"github.com/invoicing/backend/internal/domain/shared"
)

// Error code constants returned in the error envelope
// Format: ERR_<DESCRIPTION>

// General error codes
const (
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUnavailable is used when a dependency such as the database is down
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// Input error codes
const (
	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON      = "ERR_INVALID_JSON"
	ErrCodeValidation       = "ERR_VALIDATION_FAILED"
	ErrCodeMissingTenant    = "ERR_MISSING_TENANT"
	ErrCodeMissingIdemKey   = "ERR_MISSING_IDEMPOTENCY_KEY"
	ErrCodeBodyTooLarge     = "ERR_BODY_TOO_LARGE"
	ErrCodeRateLimited      = "ERR_RATE_LIMITED"
	ErrCodeMethodNotAllowed = "ERR_METHOD_NOT_ALLOWED"
)

// Domain error codes, one per shared.DomainError code
const (
	ErrCodeNotFound               = "ERR_NOT_FOUND"
	ErrCodeInvalidStateTransition = "ERR_INVALID_STATE_TRANSITION"
	ErrCodeAmountExceedsBalance   = "ERR_AMOUNT_EXCEEDS_BALANCE"
	ErrCodeDuplicateKey           = "ERR_DUPLICATE_KEY"
	ErrCodeConcurrencyConflict    = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeTransientFailure       = "ERR_TRANSIENT_FAILURE"
	ErrCodeSerializationFailure   = "ERR_SERIALIZATION_FAILURE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeMissingTenant:    http.StatusBadRequest,
	ErrCodeMissingIdemKey:   http.StatusBadRequest,
	ErrCodeBodyTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:      http.StatusTooManyRequests,
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,

	ErrCodeNotFound:               http.StatusNotFound,
	ErrCodeInvalidStateTransition: http.StatusConflict,
	ErrCodeAmountExceedsBalance:   http.StatusUnprocessableEntity,
	ErrCodeDuplicateKey:           http.StatusConflict,
	ErrCodeConcurrencyConflict:    http.StatusConflict,
	ErrCodeTransientFailure:       http.StatusServiceUnavailable,
	ErrCodeSerializationFailure:   http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodeMapping maps shared.DomainError codes to response codes
var domainCodeMapping = map[string]string{
	shared.CodeNotFound:               ErrCodeNotFound,
	shared.CodeMissingTenant:          ErrCodeMissingTenant,
	shared.CodeValidationFailed:       ErrCodeValidation,
	shared.CodeInvalidStateTransition: ErrCodeInvalidStateTransition,
	shared.CodeAmountExceedsBalance:   ErrCodeAmountExceedsBalance,
	shared.CodeDuplicateKey:           ErrCodeDuplicateKey,
	shared.CodeConcurrencyConflict:    ErrCodeConcurrencyConflict,
	shared.CodeTransientFailure:       ErrCodeTransientFailure,
	shared.CodeSerializationFailure:   ErrCodeSerializationFailure,
}

// NormalizeErrorCode converts a domain error code to its response code.
// Codes that are already in response form, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := domainCodeMapping[code]; ok {
		return newCode
	}
	return code
}
