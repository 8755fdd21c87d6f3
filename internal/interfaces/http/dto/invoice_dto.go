package dto

import (
	"time"

	"github.com/google/uuid"
	appinv "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineItemRequest is the body of a line item create or update
type LineItemRequest struct {
	Description     string           `json:"description" binding:"required,max=500"`
	Quantity        *decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice       *decimal.Decimal `json:"unit_price" binding:"required"`
	TaxPercent      *decimal.Decimal `json:"tax_percent"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
}

// ToInput converts the request into a service input
func (r LineItemRequest) ToInput() appinv.LineItemInput {
	return appinv.LineItemInput{
		Description:     r.Description,
		Quantity:        *r.Quantity,
		UnitPrice:       *r.UnitPrice,
		TaxPercent:      r.TaxPercent,
		DiscountPercent: r.DiscountPercent,
	}
}

// CreateInvoiceRequest is the body of POST /invoices
type CreateInvoiceRequest struct {
	InvoiceNumber string            `json:"invoice_number" binding:"required,max=50"`
	CustomerID    string            `json:"customer_id" binding:"required,uuid"`
	Currency      string            `json:"currency" binding:"required,currency"`
	IssueDate     string            `json:"issue_date" binding:"required,isodate"`
	DueDate       string            `json:"due_date" binding:"required,isodate"`
	LineItems     []LineItemRequest `json:"line_items" binding:"required,min=1,dive"`
}

// ToRequest converts the body into a service request
func (r CreateInvoiceRequest) ToRequest() (appinv.CreateInvoiceRequest, error) {
	issue, err := parseDate("issue_date", r.IssueDate)
	if err != nil {
		return appinv.CreateInvoiceRequest{}, err
	}
	due, err := parseDate("due_date", r.DueDate)
	if err != nil {
		return appinv.CreateInvoiceRequest{}, err
	}
	return appinv.CreateInvoiceRequest{
		InvoiceNumber: r.InvoiceNumber,
		CustomerID:    uuid.MustParse(r.CustomerID),
		Currency:      r.Currency,
		IssueDate:     issue,
		DueDate:       due,
		LineItems:     lo.Map(r.LineItems, func(li LineItemRequest, _ int) appinv.LineItemInput { return li.ToInput() }),
	}, nil
}

// ListInvoicesQuery holds the query parameters of GET /invoices
type ListInvoicesQuery struct {
	Status     string `form:"status" binding:"omitempty,oneof=DRAFT SENT PARTIALLY_PAID PAID OVERDUE CANCELLED REFUNDED"`
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	Search     string `form:"search" binding:"max=100"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	SortBy     string `form:"sort_by" binding:"omitempty,oneof=created_at updated_at invoice_number issue_date due_date total_amount status"`
	SortDir    string `form:"sort_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// ToRequest converts the query into a service request
func (q ListInvoicesQuery) ToRequest() appinv.ListInvoicesRequest {
	req := appinv.ListInvoicesRequest{
		Search:   q.Search,
		Page:     q.Page,
		PageSize: q.PageSize,
		SortBy:   q.SortBy,
		SortDir:  q.SortDir,
	}
	if q.Status != "" {
		req.Status = lo.ToPtr(invoicing.InvoiceStatus(q.Status))
	}
	if q.CustomerID != "" {
		req.CustomerID = lo.ToPtr(uuid.MustParse(q.CustomerID))
	}
	return req
}

// RecordPaymentRequest is the body of POST /invoices/:id/payments
type RecordPaymentRequest struct {
	Amount    *decimal.Decimal `json:"amount" binding:"required"`
	Currency  string           `json:"currency" binding:"omitempty,currency"`
	Reference string           `json:"reference" binding:"max=100"`
}

// ToRequest converts the body into a service request
func (r RecordPaymentRequest) ToRequest(invoiceID uuid.UUID, idempotencyKey string) appinv.RecordPaymentRequest {
	return appinv.RecordPaymentRequest{
		InvoiceID:      invoiceID,
		Amount:         *r.Amount,
		Currency:       r.Currency,
		Reference:      r.Reference,
		IdempotencyKey: idempotencyKey,
	}
}

// RefundPaymentRequest is the body of POST /payments/:id/refunds
type RefundPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
	Reason string           `json:"reason" binding:"max=500"`
}

// ToRequest converts the body into a service request
func (r RefundPaymentRequest) ToRequest(paymentID uuid.UUID, idempotencyKey string) appinv.RefundPaymentRequest {
	return appinv.RefundPaymentRequest{
		PaymentID:      paymentID,
		Amount:         *r.Amount,
		Reason:         r.Reason,
		IdempotencyKey: idempotencyKey,
	}
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(appinv.DateLayout, value)
	if err != nil {
		return time.Time{}, shared.NewDomainError(shared.CodeValidationFailed,
			field+" must be a date in YYYY-MM-DD format")
	}
	return t, nil
}
