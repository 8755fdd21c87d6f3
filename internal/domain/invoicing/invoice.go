package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MaxInvoiceNumberLength bounds the human invoice number
const MaxInvoiceNumberLength = 50

// Invoice is the aggregate root of the invoicing context. It owns its line
// items and keeps totalAmount = subtotal + taxTotal - discountTotal and
// 0 <= amountPaid <= totalAmount at all times.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber string
	CustomerID    uuid.UUID
	Currency      string
	Status        InvoiceStatus
	IssueDate     time.Time
	DueDate       time.Time
	Subtotal      decimal.Decimal
	TaxTotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TotalAmount   decimal.Decimal
	AmountPaid    decimal.Decimal
	SentAt        *time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
	Items         []LineItem
}

// NewInvoice creates a new invoice in DRAFT status
func NewInvoice(tenantID uuid.UUID, invoiceNumber string, customerID uuid.UUID, currency string, issueDate, dueDate time.Time) (*Invoice, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > MaxInvoiceNumberLength {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Invoice number cannot exceed 50 characters")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Customer ID cannot be empty")
	}
	code, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	if issueDate.IsZero() || dueDate.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Issue date and due date are required")
	}
	if dueDate.Before(issueDate) {
		return nil, shared.NewDomainError(shared.CodeValidationFailed, "Due date cannot be before issue date")
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		CustomerID:          customerID,
		Currency:            code,
		Status:              InvoiceStatusDraft,
		IssueDate:           issueDate,
		DueDate:             dueDate,
		Subtotal:            decimal.Zero,
		TaxTotal:            decimal.Zero,
		DiscountTotal:       decimal.Zero,
		TotalAmount:         decimal.Zero,
		AmountPaid:          decimal.Zero,
		Items:               make([]LineItem, 0),
	}
	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))
	return inv, nil
}

// AddLineItem appends a line item and recalculates totals. DRAFT only.
func (i *Invoice) AddLineItem(spec LineItemSpec) (*LineItem, error) {
	if err := i.requireEditable(); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	item := LineItem{
		ID:        uuid.New(),
		InvoiceID: i.ID,
		Position:  i.nextPosition(),
		CreatedAt: now,
	}
	item.apply(spec, i.Currency)
	i.Items = append(i.Items, item)

	i.recalculate()
	i.touch()
	return &i.Items[len(i.Items)-1], nil
}

// UpdateLineItem replaces the caller-supplied fields of an existing item. DRAFT only.
func (i *Invoice) UpdateLineItem(itemID uuid.UUID, spec LineItemSpec) (*LineItem, error) {
	if err := i.requireEditable(); err != nil {
		return nil, err
	}
	idx := i.itemIndex(itemID)
	if idx < 0 {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Line item not found")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	i.Items[idx].apply(spec, i.Currency)
	i.recalculate()
	i.touch()
	return &i.Items[idx], nil
}

// RemoveLineItem deletes a line item and returns the removed copy. DRAFT only.
func (i *Invoice) RemoveLineItem(itemID uuid.UUID) (*LineItem, error) {
	if err := i.requireEditable(); err != nil {
		return nil, err
	}
	idx := i.itemIndex(itemID)
	if idx < 0 {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Line item not found")
	}

	removed := i.Items[idx]
	i.Items = append(i.Items[:idx], i.Items[idx+1:]...)
	for pos := range i.Items {
		i.Items[pos].Position = pos + 1
	}
	i.recalculate()
	i.touch()
	return &removed, nil
}

// Send issues a draft invoice. It requires at least one line item and a
// positive total.
func (i *Invoice) Send() error {
	if i.Status != InvoiceStatusDraft {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, fmt.Sprintf("Cannot send invoice in %s status", i.Status))
	}
	if len(i.Items) == 0 {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, "Cannot send an invoice without line items")
	}
	if !i.TotalAmount.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, "Cannot send an invoice with a zero total")
	}

	now := time.Now()
	i.Status = InvoiceStatusSent
	i.SentAt = &now
	i.touch()
	i.AddDomainEvent(NewInvoiceSentEvent(i))
	return nil
}

// ValidatePayment checks that amount may be applied without mutating the invoice.
func (i *Invoice) ValidatePayment(amount decimal.Decimal) error {
	if !i.Status.AcceptsPayment() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, fmt.Sprintf("Cannot record payment for invoice in %s status", i.Status))
	}
	if err := ValidatePositiveAmount(amount, i.Currency); err != nil {
		return err
	}
	if i.AmountPaid.Add(amount).GreaterThan(i.TotalAmount) {
		return shared.NewDomainError(shared.CodeAmountExceedsBalance,
			fmt.Sprintf("Payment of %s exceeds outstanding balance of %s", amount.StringFixed(MinorUnits(i.Currency)), i.OutstandingAmount().StringFixed(MinorUnits(i.Currency))))
	}
	return nil
}

// ApplyPayment adds amount to the paid total and moves the invoice to PAID
// when fully settled, PARTIALLY_PAID otherwise.
func (i *Invoice) ApplyPayment(amount decimal.Decimal) error {
	if err := i.ValidatePayment(amount); err != nil {
		return err
	}

	i.AmountPaid = i.AmountPaid.Add(amount)
	if i.AmountPaid.Equal(i.TotalAmount) {
		now := time.Now()
		i.Status = InvoiceStatusPaid
		i.PaidAt = &now
	} else {
		i.Status = InvoiceStatusPartiallyPaid
	}
	i.touch()
	i.AddDomainEvent(NewPaymentAppliedEvent(i, amount))
	return nil
}

// ApplyRefund subtracts amount from the paid total and re-derives the status:
// SENT when nothing remains paid, PARTIALLY_PAID when something does. A
// result still at or above the total indicates corrupted state and is rejected.
func (i *Invoice) ApplyRefund(amount decimal.Decimal) error {
	if !i.Status.AcceptsRefund() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, fmt.Sprintf("Cannot apply refund to invoice in %s status", i.Status))
	}
	if err := ValidatePositiveAmount(amount, i.Currency); err != nil {
		return err
	}
	if amount.GreaterThan(i.AmountPaid) {
		return shared.NewDomainError(shared.CodeAmountExceedsBalance, "Refund exceeds the amount paid on the invoice")
	}

	remaining := i.AmountPaid.Sub(amount)
	switch {
	case remaining.IsZero():
		i.Status = InvoiceStatusSent
	case remaining.LessThan(i.TotalAmount):
		i.Status = InvoiceStatusPartiallyPaid
	default:
		return shared.NewDomainError(shared.CodeAmountExceedsBalance, "Refund leaves the invoice paid at or above its total")
	}

	i.AmountPaid = remaining
	i.PaidAt = nil
	i.touch()
	i.AddDomainEvent(NewRefundAppliedEvent(i, amount))
	return nil
}

// MarkOverdue moves a SENT or PARTIALLY_PAID invoice whose due date is
// before asOf to OVERDUE.
func (i *Invoice) MarkOverdue(asOf time.Time) error {
	if !i.Status.CanBecomeOverdue() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, fmt.Sprintf("Cannot mark invoice in %s status as overdue", i.Status))
	}
	if !i.IsPastDue(asOf) {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, "Invoice is not past its due date")
	}

	from := i.Status
	i.Status = InvoiceStatusOverdue
	i.touch()
	i.AddDomainEvent(NewInvoiceStatusChangedEvent(EventTypeInvoiceOverdue, i, from))
	return nil
}

// Cancel voids an invoice that has not received any payment.
func (i *Invoice) Cancel() error {
	if !i.Status.CanCancel() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, fmt.Sprintf("Cannot cancel invoice in %s status", i.Status))
	}
	if !i.AmountPaid.IsZero() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, "Cannot cancel an invoice with payments applied")
	}

	from := i.Status
	now := time.Now()
	i.Status = InvoiceStatusCancelled
	i.CancelledAt = &now
	i.touch()
	i.AddDomainEvent(NewInvoiceStatusChangedEvent(EventTypeInvoiceCancelled, i, from))
	return nil
}

// OutstandingAmount returns the amount still owed
func (i *Invoice) OutstandingAmount() decimal.Decimal {
	return i.TotalAmount.Sub(i.AmountPaid)
}

// IsPastDue reports whether the due date lies before asOf
func (i *Invoice) IsPastDue(asOf time.Time) bool {
	return i.DueDate.Before(asOf)
}

// FindLineItem returns the line item with the given ID
func (i *Invoice) FindLineItem(itemID uuid.UUID) (*LineItem, bool) {
	idx := i.itemIndex(itemID)
	if idx < 0 {
		return nil, false
	}
	return &i.Items[idx], true
}

func (i *Invoice) requireEditable() error {
	if !i.Status.IsEditable() {
		return shared.NewDomainError(shared.CodeInvalidStateTransition, fmt.Sprintf("Cannot modify line items of invoice in %s status", i.Status))
	}
	return nil
}

func (i *Invoice) itemIndex(itemID uuid.UUID) int {
	_, idx, ok := lo.FindIndexOf(i.Items, func(item LineItem) bool {
		return item.ID == itemID
	})
	if !ok {
		return -1
	}
	return idx
}

func (i *Invoice) nextPosition() int {
	return lo.Reduce(i.Items, func(acc int, item LineItem, _ int) int {
		return max(acc, item.Position)
	}, 0) + 1
}

// recalculate derives all totals from the current line items
func (i *Invoice) recalculate() {
	totals := CalculateTotals(i.Items, i.Currency)
	i.Subtotal = totals.Subtotal
	i.TaxTotal = totals.TaxTotal
	i.DiscountTotal = totals.DiscountTotal
	i.TotalAmount = totals.TotalAmount
}

func (i *Invoice) touch() {
	i.Touch(time.Now())
}
