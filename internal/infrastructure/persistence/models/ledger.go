package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
)

// IdempotencyRecordModel is the persistence model for the idempotency ledger.
// The response body is stored as text so replays return the exact bytes.
type IdempotencyRecordModel struct {
	ID             uuid.UUID                     `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID                     `gorm:"type:uuid;not null;uniqueIndex:idx_idempotency_tenant_key,priority:1"`
	IdempotencyKey string                        `gorm:"type:varchar(255);not null;uniqueIndex:idx_idempotency_tenant_key,priority:2"`
	Operation      invoicing.IdempotentOperation `gorm:"type:varchar(30);not null"`
	Fingerprint    string                        `gorm:"type:varchar(64);not null"`
	ResourceID     uuid.UUID                     `gorm:"type:uuid;not null"`
	ResponseBody   string                        `gorm:"type:text;not null"`
	CreatedAt      time.Time                     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IdempotencyRecordModel) TableName() string {
	return "idempotency_records"
}

// ToDomain converts the persistence model to a domain IdempotencyRecord
func (m *IdempotencyRecordModel) ToDomain() *invoicing.IdempotencyRecord {
	return &invoicing.IdempotencyRecord{
		ID:           m.ID,
		TenantID:     m.TenantID,
		Key:          m.IdempotencyKey,
		Operation:    m.Operation,
		Fingerprint:  m.Fingerprint,
		ResourceID:   m.ResourceID,
		ResponseBody: []byte(m.ResponseBody),
		CreatedAt:    m.CreatedAt,
	}
}

// IdempotencyRecordModelFromDomain creates a persistence model from a domain record
func IdempotencyRecordModelFromDomain(r *invoicing.IdempotencyRecord) *IdempotencyRecordModel {
	return &IdempotencyRecordModel{
		ID:             r.ID,
		TenantID:       r.TenantID,
		IdempotencyKey: r.Key,
		Operation:      r.Operation,
		Fingerprint:    r.Fingerprint,
		ResourceID:     r.ResourceID,
		ResponseBody:   string(r.ResponseBody),
		CreatedAt:      r.CreatedAt,
	}
}

// AuditLogModel is the persistence model for an append-only audit entry
type AuditLogModel struct {
	ID         uuid.UUID                 `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID                 `gorm:"type:uuid;not null;index:idx_audit_entity,priority:1"`
	EntityType invoicing.AuditEntityType `gorm:"type:varchar(20);not null;index:idx_audit_entity,priority:2"`
	EntityID   uuid.UUID                 `gorm:"type:uuid;not null;index:idx_audit_entity,priority:3"`
	Action     invoicing.AuditAction     `gorm:"type:varchar(30);not null"`
	OldValue   *string                   `gorm:"column:old_value;type:jsonb"`
	NewValue   *string                   `gorm:"column:new_value;type:jsonb"`
	CreatedAt  time.Time                 `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain AuditEntry
func (m *AuditLogModel) ToDomain() *invoicing.AuditEntry {
	return &invoicing.AuditEntry{
		ID:         m.ID,
		TenantID:   m.TenantID,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Action:     m.Action,
		OldValue:   snapshotBytes(m.OldValue),
		NewValue:   snapshotBytes(m.NewValue),
		CreatedAt:  m.CreatedAt,
	}
}

// AuditLogModelFromDomain creates a persistence model from a domain AuditEntry
func AuditLogModelFromDomain(e *invoicing.AuditEntry) *AuditLogModel {
	return &AuditLogModel{
		ID:         e.ID,
		TenantID:   e.TenantID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		OldValue:   snapshotColumn(e.OldValue),
		NewValue:   snapshotColumn(e.NewValue),
		CreatedAt:  e.CreatedAt,
	}
}

// snapshotColumn stores an absent snapshot as SQL NULL
func snapshotColumn(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
}

func snapshotBytes(s *string) []byte {
	if s == nil || *s == "null" {
		return nil
	}
	return []byte(*s)
}

// AllModels returns every model in dependency order, for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&InvoiceModel{},
		&InvoiceLineItemModel{},
		&PaymentModel{},
		&RefundModel{},
		&IdempotencyRecordModel{},
		&AuditLogModel{},
	}
}
