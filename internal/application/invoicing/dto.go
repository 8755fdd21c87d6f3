package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of issue and due dates
const DateLayout = "2006-01-02"

// ============================================================================
// Requests
// ============================================================================

// LineItemInput describes a line item supplied by a caller
type LineItemInput struct {
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	TaxPercent      *decimal.Decimal
	DiscountPercent *decimal.Decimal
}

// ToSpec converts the input into a domain LineItemSpec
func (in LineItemInput) ToSpec() invoicing.LineItemSpec {
	return invoicing.LineItemSpec{
		Description:     in.Description,
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice,
		TaxPercent:      in.TaxPercent,
		DiscountPercent: in.DiscountPercent,
	}
}

// CreateInvoiceRequest holds the data for drafting an invoice
type CreateInvoiceRequest struct {
	InvoiceNumber string
	CustomerID    uuid.UUID
	Currency      string
	IssueDate     time.Time
	DueDate       time.Time
	LineItems     []LineItemInput
}

// RecordPaymentRequest holds the data for recording a payment.
// Currency is optional; when empty the invoice currency is used.
type RecordPaymentRequest struct {
	InvoiceID      uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	Reference      string
	IdempotencyKey string
}

// RefundPaymentRequest holds the data for refunding part of a payment.
// IdempotencyKey is optional; when set the refund is applied at most once.
type RefundPaymentRequest struct {
	PaymentID      uuid.UUID
	Amount         decimal.Decimal
	Reason         string
	IdempotencyKey string
}

// ListInvoicesRequest holds filters for listing invoices
type ListInvoicesRequest struct {
	Status     *invoicing.InvoiceStatus
	CustomerID *uuid.UUID
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortDir    string
}

// ============================================================================
// Views
// ============================================================================

// LineItemView is the read projection of a line item
type LineItemView struct {
	ID              uuid.UUID        `json:"id"`
	Position        int              `json:"position"`
	Description     string           `json:"description"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	TaxPercent      *decimal.Decimal `json:"tax_percent"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	LineTotal       decimal.Decimal  `json:"line_total"`
}

// InvoiceView is the read projection returned by every invoice operation
type InvoiceView struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	IssueDate     string          `json:"issue_date"`
	DueDate       string          `json:"due_date"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	AmountDue     decimal.Decimal `json:"amount_due"`
	Version       int             `json:"version"`
	LineItems     []LineItemView  `json:"line_items"`
}

// NewInvoiceView projects an invoice aggregate
func NewInvoiceView(inv *invoicing.Invoice) *InvoiceView {
	return &InvoiceView{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID,
		Currency:      inv.Currency,
		Status:        inv.Status.String(),
		IssueDate:     inv.IssueDate.Format(DateLayout),
		DueDate:       inv.DueDate.Format(DateLayout),
		Subtotal:      inv.Subtotal,
		TaxTotal:      inv.TaxTotal,
		DiscountTotal: inv.DiscountTotal,
		TotalAmount:   inv.TotalAmount,
		AmountPaid:    inv.AmountPaid,
		AmountDue:     inv.OutstandingAmount(),
		Version:       inv.Version,
		LineItems:     lo.Map(inv.Items, func(item invoicing.LineItem, _ int) LineItemView { return NewLineItemView(&item) }),
	}
}

// NewLineItemView projects a line item
func NewLineItemView(item *invoicing.LineItem) LineItemView {
	return LineItemView{
		ID:              item.ID,
		Position:        item.Position,
		Description:     item.Description,
		Quantity:        item.Quantity,
		UnitPrice:       item.UnitPrice,
		TaxPercent:      item.TaxPercent,
		DiscountPercent: item.DiscountPercent,
		LineTotal:       item.LineTotal,
	}
}

// InvoiceSummaryView is the list projection of an invoice (no line items)
type InvoiceSummaryView struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	IssueDate     string          `json:"issue_date"`
	DueDate       string          `json:"due_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	AmountDue     decimal.Decimal `json:"amount_due"`
}

// NewInvoiceSummaryView projects an invoice for listings
func NewInvoiceSummaryView(inv *invoicing.Invoice) InvoiceSummaryView {
	return InvoiceSummaryView{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID,
		Currency:      inv.Currency,
		Status:        inv.Status.String(),
		IssueDate:     inv.IssueDate.Format(DateLayout),
		DueDate:       inv.DueDate.Format(DateLayout),
		TotalAmount:   inv.TotalAmount,
		AmountPaid:    inv.AmountPaid,
		AmountDue:     inv.OutstandingAmount(),
	}
}

// PaymentView is the read projection of a payment
type PaymentView struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Reference      *string         `json:"reference"`
	Status         string          `json:"status"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewPaymentView projects a payment together with its refunded total
func NewPaymentView(p *invoicing.Payment, refunded decimal.Decimal) PaymentView {
	return PaymentView{
		ID:             p.ID,
		InvoiceID:      p.InvoiceID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Reference:      p.Reference,
		Status:         string(p.Status),
		RefundedAmount: refunded,
		CreatedAt:      p.CreatedAt,
	}
}

// RefundView is the audit projection of a refund
type RefundView struct {
	ID        uuid.UUID       `json:"id"`
	PaymentID uuid.UUID       `json:"payment_id"`
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewRefundView projects a refund
func NewRefundView(r *invoicing.Refund) RefundView {
	return RefundView{
		ID:        r.ID,
		PaymentID: r.PaymentID,
		InvoiceID: r.InvoiceID,
		Amount:    r.Amount,
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
	}
}

// MutationResult is returned by the idempotent payment and refund operations.
// Body is the exact serialized InvoiceView produced by the first successful
// request; replays return the same bytes.
type MutationResult struct {
	Invoice  *InvoiceView
	Body     []byte
	Replayed bool
}
