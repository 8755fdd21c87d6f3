package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
)

// MaxIdempotencyKeyLength bounds client-supplied idempotency keys
const MaxIdempotencyKeyLength = 255

// IdempotentOperation names the mutation an idempotency key was used for
type IdempotentOperation string

const (
	OperationRecordPayment IdempotentOperation = "RECORD_PAYMENT"
	OperationRefundPayment IdempotentOperation = "REFUND_PAYMENT"
)

// IdempotencyRecord maps (tenant, key) to the response body produced by the
// first successful request. It is written once, in the same transaction as
// the mutation it describes, and never updated.
type IdempotencyRecord struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Key          string
	Operation    IdempotentOperation
	Fingerprint  string
	ResourceID   uuid.UUID
	ResponseBody []byte
	CreatedAt    time.Time
}

// NormalizeIdempotencyKey trims and validates a client key
func NormalizeIdempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", shared.NewDomainError(shared.CodeValidationFailed, "Idempotency key is required")
	}
	if len(key) > MaxIdempotencyKeyLength {
		return "", shared.NewDomainError(shared.CodeValidationFailed, "Idempotency key cannot exceed 255 characters")
	}
	return key, nil
}

// NewIdempotencyRecord creates the ledger entry for a completed request
func NewIdempotencyRecord(tenantID uuid.UUID, key string, op IdempotentOperation, fingerprint string, resourceID uuid.UUID, body []byte) *IdempotencyRecord {
	return &IdempotencyRecord{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Key:          key,
		Operation:    op,
		Fingerprint:  fingerprint,
		ResourceID:   resourceID,
		ResponseBody: body,
		CreatedAt:    time.Now(),
	}
}

// CheckReplay verifies that a request reusing this record's key describes
// the same operation. A key reused for a different request is a client bug.
func (r *IdempotencyRecord) CheckReplay(op IdempotentOperation, fingerprint string) error {
	if r.Operation != op || r.Fingerprint != fingerprint {
		return shared.NewDomainError(shared.CodeValidationFailed, "Idempotency key was already used for a different request")
	}
	return nil
}
