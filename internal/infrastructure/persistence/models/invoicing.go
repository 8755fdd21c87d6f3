package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// (tenant_id, invoice_number) is unique; the index is created by migration.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber string                  `gorm:"type:varchar(50);not null"`
	CustomerID    uuid.UUID               `gorm:"type:uuid;not null;index"`
	Currency      string                  `gorm:"type:varchar(3);not null"`
	Status        invoicing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	IssueDate     time.Time               `gorm:"not null"`
	DueDate       time.Time               `gorm:"not null;index"`
	Subtotal      decimal.Decimal         `gorm:"type:decimal(19,4);not null"`
	TaxTotal      decimal.Decimal         `gorm:"type:decimal(19,4);not null"`
	DiscountTotal decimal.Decimal         `gorm:"type:decimal(19,4);not null"`
	TotalAmount   decimal.Decimal         `gorm:"type:decimal(19,4);not null"`
	AmountPaid    decimal.Decimal         `gorm:"type:decimal(19,4);not null"`
	SentAt        *time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
	Items         []InvoiceLineItemModel `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		TenantAggregateRoot: m.root(),
		InvoiceNumber:       m.InvoiceNumber,
		CustomerID:          m.CustomerID,
		Currency:            m.Currency,
		Status:              m.Status,
		IssueDate:           m.IssueDate,
		DueDate:             m.DueDate,
		Subtotal:            m.Subtotal,
		TaxTotal:            m.TaxTotal,
		DiscountTotal:       m.DiscountTotal,
		TotalAmount:         m.TotalAmount,
		AmountPaid:          m.AmountPaid,
		SentAt:              m.SentAt,
		PaidAt:              m.PaidAt,
		CancelledAt:         m.CancelledAt,
		Items:               lo.Map(m.Items, func(item InvoiceLineItemModel, _ int) invoicing.LineItem {
			return *item.ToDomain()
		}),
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.setRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.CustomerID = inv.CustomerID
	m.Currency = inv.Currency
	m.Status = inv.Status
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Subtotal = inv.Subtotal
	m.TaxTotal = inv.TaxTotal
	m.DiscountTotal = inv.DiscountTotal
	m.TotalAmount = inv.TotalAmount
	m.AmountPaid = inv.AmountPaid
	m.SentAt = inv.SentAt
	m.PaidAt = inv.PaidAt
	m.CancelledAt = inv.CancelledAt
	m.Items = LineItemModelsFromDomain(inv.ID, inv.Items)
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// HeaderColumns returns the mutable header columns written by a versioned update.
// A map is used so zero values (amount_paid = 0, cleared timestamps) are written.
func (m *InvoiceModel) HeaderColumns() map[string]any {
	return map[string]any{
		"status":         m.Status,
		"subtotal":       m.Subtotal,
		"tax_total":      m.TaxTotal,
		"discount_total": m.DiscountTotal,
		"total_amount":   m.TotalAmount,
		"amount_paid":    m.AmountPaid,
		"sent_at":        m.SentAt,
		"paid_at":        m.PaidAt,
		"cancelled_at":   m.CancelledAt,
		"version":        m.Version,
		"updated_at":     m.UpdatedAt,
	}
}

// InvoiceLineItemModel is the persistence model for an invoice line item
type InvoiceLineItemModel struct {
	BaseModel
	InvoiceID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	Position        int              `gorm:"not null"`
	Description     string           `gorm:"type:varchar(500);not null"`
	Quantity        decimal.Decimal  `gorm:"type:decimal(19,4);not null"`
	UnitPrice       decimal.Decimal  `gorm:"type:decimal(19,4);not null"`
	TaxPercent      *decimal.Decimal `gorm:"type:decimal(5,2)"`
	DiscountPercent *decimal.Decimal `gorm:"type:decimal(5,2)"`
	LineTotal       decimal.Decimal  `gorm:"type:decimal(19,4);not null"`
}

// TableName returns the table name for GORM
func (InvoiceLineItemModel) TableName() string {
	return "invoice_line_items"
}

// ToDomain converts the persistence model to a domain LineItem
func (m *InvoiceLineItemModel) ToDomain() *invoicing.LineItem {
	return &invoicing.LineItem{
		ID:              m.ID,
		InvoiceID:       m.InvoiceID,
		Position:        m.Position,
		Description:     m.Description,
		Quantity:        m.Quantity,
		UnitPrice:       m.UnitPrice,
		TaxPercent:      m.TaxPercent,
		DiscountPercent: m.DiscountPercent,
		LineTotal:       m.LineTotal,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain LineItem
func (m *InvoiceLineItemModel) FromDomain(invoiceID uuid.UUID, item *invoicing.LineItem) {
	m.setEntity(shared.BaseEntity{ID: item.ID, CreatedAt: item.CreatedAt, UpdatedAt: item.UpdatedAt})
	m.InvoiceID = invoiceID
	m.Position = item.Position
	m.Description = item.Description
	m.Quantity = item.Quantity
	m.UnitPrice = item.UnitPrice
	m.TaxPercent = item.TaxPercent
	m.DiscountPercent = item.DiscountPercent
	m.LineTotal = item.LineTotal
}

// LineItemModelsFromDomain converts an invoice's line items
func LineItemModelsFromDomain(invoiceID uuid.UUID, items []invoicing.LineItem) []InvoiceLineItemModel {
	return lo.Map(items, func(item invoicing.LineItem, _ int) InvoiceLineItemModel {
		var m InvoiceLineItemModel
		m.FromDomain(invoiceID, &item)
		return m
	})
}
