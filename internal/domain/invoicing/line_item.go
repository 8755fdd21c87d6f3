package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MaxDescriptionLength bounds line item descriptions
const MaxDescriptionLength = 500

// LineItemSpec is the caller-supplied part of a line item. The line total is
// always derived, never supplied.
type LineItemSpec struct {
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	TaxPercent      *decimal.Decimal
	DiscountPercent *decimal.Decimal
}

// Validate checks quantity, price, percentages and description
func (s LineItemSpec) Validate() error {
	desc := strings.TrimSpace(s.Description)
	if desc == "" {
		return shared.NewDomainError(shared.CodeValidationFailed, "Line item description cannot be empty")
	}
	if len(desc) > MaxDescriptionLength {
		return shared.NewDomainError(shared.CodeValidationFailed, "Line item description cannot exceed 500 characters")
	}
	if !s.Quantity.IsPositive() {
		return shared.NewDomainError(shared.CodeValidationFailed, "Line item quantity must be positive")
	}
	if s.UnitPrice.IsNegative() {
		return shared.NewDomainError(shared.CodeValidationFailed, "Line item unit price cannot be negative")
	}
	if err := validatePercent(s.TaxPercent, "Tax"); err != nil {
		return err
	}
	return validatePercent(s.DiscountPercent, "Discount")
}

func validatePercent(pct *decimal.Decimal, label string) error {
	if pct == nil {
		return nil
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return shared.NewDomainError(shared.CodeValidationFailed, label+" percent must be between 0 and 100")
	}
	return nil
}

// LineItem is a priced unit owned by exactly one invoice
type LineItem struct {
	ID              uuid.UUID
	InvoiceID       uuid.UUID
	Position        int
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	TaxPercent      *decimal.Decimal
	DiscountPercent *decimal.Decimal
	LineTotal       decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Amounts recomputes the line's base, tax, discount and total for currency
func (li *LineItem) Amounts(currency string) LineAmounts {
	return CalculateLine(li.Quantity, li.UnitPrice, li.TaxPercent, li.DiscountPercent, currency)
}

func (li *LineItem) apply(spec LineItemSpec, currency string) {
	li.Description = strings.TrimSpace(spec.Description)
	li.Quantity = spec.Quantity
	li.UnitPrice = spec.UnitPrice
	li.TaxPercent = copyDecimal(spec.TaxPercent)
	li.DiscountPercent = copyDecimal(spec.DiscountPercent)
	li.LineTotal = li.Amounts(currency).Total
	li.UpdatedAt = time.Now()
}

// LineAmounts holds the derived monetary components of one line
type LineAmounts struct {
	Base     decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// CalculateLine derives a line's amounts:
//
//	base      = q * p
//	tax       = base * t / 100
//	discount  = base * d / 100
//	lineTotal = base + tax - discount
//
// Each component is rounded half-up to the currency's minor unit before it
// is combined, so summing components across lines is exact.
func CalculateLine(quantity, unitPrice decimal.Decimal, taxPct, discountPct *decimal.Decimal, currency string) LineAmounts {
	base := RoundMoney(quantity.Mul(unitPrice), currency)
	tax := Percent(base, taxPct, currency)
	discount := Percent(base, discountPct, currency)
	return LineAmounts{
		Base:     base,
		Tax:      tax,
		Discount: discount,
		Total:    base.Add(tax).Sub(discount),
	}
}

// Totals holds the invoice-level monetary aggregation
type Totals struct {
	Subtotal      decimal.Decimal
	TaxTotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	TotalAmount   decimal.Decimal
}

// CalculateTotals aggregates all lines from scratch.
func CalculateTotals(items []LineItem, currency string) Totals {
	amounts := lo.Map(items, func(item LineItem, _ int) LineAmounts {
		return item.Amounts(currency)
	})
	sum := func(pick func(LineAmounts) decimal.Decimal) decimal.Decimal {
		return lo.Reduce(amounts, func(acc decimal.Decimal, a LineAmounts, _ int) decimal.Decimal {
			return acc.Add(pick(a))
		}, decimal.Zero)
	}

	subtotal := sum(func(a LineAmounts) decimal.Decimal { return a.Base })
	taxTotal := sum(func(a LineAmounts) decimal.Decimal { return a.Tax })
	discountTotal := sum(func(a LineAmounts) decimal.Decimal { return a.Discount })
	return Totals{
		Subtotal:      subtotal,
		TaxTotal:      taxTotal,
		DiscountTotal: discountTotal,
		TotalAmount:   subtotal.Add(taxTotal).Sub(discountTotal),
	}
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
