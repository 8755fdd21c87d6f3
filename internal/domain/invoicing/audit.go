package invoicing

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntityType identifies the kind of entity an audit entry describes
type AuditEntityType string

const (
	AuditEntityInvoice  AuditEntityType = "INVOICE"
	AuditEntityLineItem AuditEntityType = "LINE_ITEM"
	AuditEntityPayment  AuditEntityType = "PAYMENT"
	AuditEntityRefund   AuditEntityType = "REFUND"
)

// AuditAction identifies the mutation an audit entry records
type AuditAction string

const (
	AuditActionCreated        AuditAction = "CREATED"
	AuditActionUpdated        AuditAction = "UPDATED"
	AuditActionDeleted        AuditAction = "DELETED"
	AuditActionSent           AuditAction = "SENT"
	AuditActionPaymentApplied AuditAction = "PAYMENT_APPLIED"
	AuditActionRefundApplied  AuditAction = "REFUND_APPLIED"
	AuditActionOverdue        AuditAction = "OVERDUE"
	AuditActionCancelled      AuditAction = "CANCELLED"
)

// AuditEntry is an append-only record of one entity mutation. OldValue and
// NewValue hold JSON snapshots; either may be nil.
type AuditEntry struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	EntityType AuditEntityType
	EntityID   uuid.UUID
	Action     AuditAction
	OldValue   []byte
	NewValue   []byte
	CreatedAt  time.Time
}

// NewAuditEntry creates a new audit entry
func NewAuditEntry(tenantID uuid.UUID, entityType AuditEntityType, entityID uuid.UUID, action AuditAction, oldValue, newValue []byte) *AuditEntry {
	return &AuditEntry{
		ID:         uuid.New(),
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		OldValue:   oldValue,
		NewValue:   newValue,
		CreatedAt:  time.Now(),
	}
}
