package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for a payment fact.
// (tenant_id, payment_reference) is unique where the reference is set.
type PaymentModel struct {
	ID        uuid.UUID               `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID               `gorm:"type:uuid;not null;index"`
	InvoiceID uuid.UUID               `gorm:"type:uuid;not null;index"`
	Amount    decimal.Decimal         `gorm:"type:decimal(19,4);not null"`
	Currency  string                  `gorm:"type:varchar(3);not null"`
	Reference *string                 `gorm:"column:payment_reference;type:varchar(100)"`
	Status    invoicing.PaymentStatus `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *invoicing.Payment {
	return &invoicing.Payment{
		ID:        m.ID,
		TenantID:  m.TenantID,
		InvoiceID: m.InvoiceID,
		Amount:    m.Amount,
		Currency:  m.Currency,
		Reference: m.Reference,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}

// PaymentModelFromDomain creates a persistence model from a domain Payment
func PaymentModelFromDomain(p *invoicing.Payment) *PaymentModel {
	return &PaymentModel{
		ID:        p.ID,
		TenantID:  p.TenantID,
		InvoiceID: p.InvoiceID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Reference: p.Reference,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}

// RefundModel is the persistence model for a refund fact
type RefundModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(19,4);not null"`
	Reason    string          `gorm:"type:varchar(500)"`
	CreatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RefundModel) TableName() string {
	return "refunds"
}

// ToDomain converts the persistence model to a domain Refund
func (m *RefundModel) ToDomain() *invoicing.Refund {
	return &invoicing.Refund{
		ID:        m.ID,
		TenantID:  m.TenantID,
		PaymentID: m.PaymentID,
		InvoiceID: m.InvoiceID,
		Amount:    m.Amount,
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt,
	}
}

// RefundModelFromDomain creates a persistence model from a domain Refund
func RefundModelFromDomain(r *invoicing.Refund) *RefundModel {
	return &RefundModel{
		ID:        r.ID,
		TenantID:  r.TenantID,
		PaymentID: r.PaymentID,
		InvoiceID: r.InvoiceID,
		Amount:    r.Amount,
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
	}
}
