package invoicing

import (
	"strings"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DefaultMinorUnits is the number of fractional digits used for currencies
// not listed in minorUnits.
const DefaultMinorUnits int32 = 2

var hundred = decimal.NewFromInt(100)

// minorUnits lists ISO 4217 currencies whose minor unit differs from two digits.
var minorUnits = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0,
	"XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// MinorUnits returns the number of fractional digits for currency.
func MinorUnits(currency string) int32 {
	if places, ok := minorUnits[currency]; ok {
		return places
	}
	return DefaultMinorUnits
}

// RoundMoney rounds amount half-up (away from zero on a tie) to the minor
// unit of currency. Every stored monetary value passes through here.
func RoundMoney(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(MinorUnits(currency))
}

// Percent returns base * pct / 100 rounded to the currency's minor unit.
// A nil percentage is treated as zero.
func Percent(base decimal.Decimal, pct *decimal.Decimal, currency string) decimal.Decimal {
	if pct == nil || pct.IsZero() {
		return decimal.Zero
	}
	return RoundMoney(base.Mul(*pct).Div(hundred), currency)
}

// HasExcessPrecision reports whether amount carries more fractional digits
// than currency allows.
func HasExcessPrecision(amount decimal.Decimal, currency string) bool {
	return !amount.Equal(RoundMoney(amount, currency))
}

// NormalizeCurrency upper-cases and validates a three letter currency code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", shared.NewDomainError(shared.CodeValidationFailed, "Currency must be a three letter ISO 4217 code")
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", shared.NewDomainError(shared.CodeValidationFailed, "Currency must be a three letter ISO 4217 code")
		}
	}
	return code, nil
}

// ValidatePositiveAmount checks that amount is strictly positive and fits the
// currency's minor unit.
func ValidatePositiveAmount(amount decimal.Decimal, currency string) error {
	if !amount.IsPositive() {
		return shared.NewDomainError(shared.CodeValidationFailed, "Amount must be positive")
	}
	if HasExcessPrecision(amount, currency) {
		return shared.NewDomainError(shared.CodeValidationFailed, "Amount has more decimal places than the currency allows")
	}
	return nil
}
