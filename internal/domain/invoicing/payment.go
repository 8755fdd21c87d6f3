package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MaxReferenceLength bounds external payment references
const MaxReferenceLength = 100

// MaxReasonLength bounds refund reasons
const MaxReasonLength = 500

// PaymentStatus represents the status of a payment fact
type PaymentStatus string

// PaymentStatusReceived is the only status this engine produces
const PaymentStatusReceived PaymentStatus = "RECEIVED"

// Payment is an immutable record of a settled payment against an invoice.
// Corrections happen through Refund, never by editing Amount.
type Payment struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Reference *string
	Status    PaymentStatus
	CreatedAt time.Time
}

// NewPayment creates a RECEIVED payment for inv in the invoice's currency.
func NewPayment(inv *Invoice, amount decimal.Decimal, reference string) (*Payment, error) {
	ref, err := normalizeReference(reference)
	if err != nil {
		return nil, err
	}
	return &Payment{
		ID:        uuid.New(),
		TenantID:  inv.TenantID,
		InvoiceID: inv.ID,
		Amount:    amount,
		Currency:  inv.Currency,
		Reference: ref,
		Status:    PaymentStatusReceived,
		CreatedAt: time.Now(),
	}, nil
}

// RefundableAmount returns how much of the payment can still be refunded
func (p *Payment) RefundableAmount(priorRefunds decimal.Decimal) decimal.Decimal {
	return p.Amount.Sub(priorRefunds)
}

// Refund is an immutable record of money returned against one payment.
type Refund struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	PaymentID uuid.UUID
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Reason    string
	CreatedAt time.Time
}

// NewRefund validates amount against the payment's remaining refundable
// balance and creates the refund fact.
func NewRefund(payment *Payment, amount, priorRefunds decimal.Decimal, reason string) (*Refund, error) {
	if err := ValidatePositiveAmount(amount, payment.Currency); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > MaxReasonLength {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Refund reason cannot exceed 500 characters")
	}
	if priorRefunds.Add(amount).GreaterThan(payment.Amount) {
		return nil, shared.NewDomainError(shared.CodeAmountExceedsBalance, "Refund exceeds the refundable amount of the payment")
	}
	return &Refund{
		ID:        uuid.New(),
		TenantID:  payment.TenantID,
		PaymentID: payment.ID,
		InvoiceID: payment.InvoiceID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now(),
	}, nil
}

func normalizeReference(reference string) (*string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	if len(reference) > MaxReferenceLength {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Payment reference cannot exceed 100 characters")
	}
	return &reference, nil
}
