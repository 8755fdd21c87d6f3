package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeInvoice is the aggregate type recorded on invoice events
const AggregateTypeInvoice = "Invoice"

// Event type names
const (
	EventTypeInvoiceCreated   = "InvoiceCreated"
	EventTypeInvoiceSent      = "InvoiceSent"
	EventTypePaymentApplied   = "InvoicePaymentApplied"
	EventTypeRefundApplied    = "InvoiceRefundApplied"
	EventTypeInvoiceOverdue   = "InvoiceOverdue"
	EventTypeInvoiceCancelled = "InvoiceCancelled"
)

// InvoiceCreatedEvent is raised when a new invoice is drafted
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Currency      string          `json:"currency"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		Currency:        inv.Currency,
		TotalAmount:     inv.TotalAmount,
	}
}

// InvoiceSentEvent is raised when a draft invoice is issued to the customer
type InvoiceSentEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	DueDate       time.Time       `json:"due_date"`
}

// NewInvoiceSentEvent creates a new InvoiceSentEvent
func NewInvoiceSentEvent(inv *Invoice) *InvoiceSentEvent {
	return &InvoiceSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceSent, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		TotalAmount:     inv.TotalAmount,
		DueDate:         inv.DueDate,
	}
}

// PaymentAppliedEvent is raised when a payment is applied to an invoice
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Status        InvoiceStatus   `json:"status"`
}

// NewPaymentAppliedEvent creates a new PaymentAppliedEvent
func NewPaymentAppliedEvent(inv *Invoice, amount decimal.Decimal) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentApplied, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		Currency:        inv.Currency,
		Amount:          amount,
		AmountPaid:      inv.AmountPaid,
		Status:          inv.Status,
	}
}

// RefundAppliedEvent is raised when a refund is reconciled against an invoice
type RefundAppliedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Status        InvoiceStatus   `json:"status"`
}

// NewRefundAppliedEvent creates a new RefundAppliedEvent
func NewRefundAppliedEvent(inv *Invoice, amount decimal.Decimal) *RefundAppliedEvent {
	return &RefundAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRefundApplied, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		Currency:        inv.Currency,
		Amount:          amount,
		AmountPaid:      inv.AmountPaid,
		Status:          inv.Status,
	}
}

// InvoiceStatusChangedEvent is raised for overdue and cancellation transitions
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string        `json:"invoice_number"`
	FromStatus    InvoiceStatus `json:"from_status"`
	ToStatus      InvoiceStatus `json:"to_status"`
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent of the given type
func NewInvoiceStatusChangedEvent(eventType string, inv *Invoice, from InvoiceStatus) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		FromStatus:      from,
		ToStatus:        inv.Status,
	}
}
