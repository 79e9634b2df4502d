package models

import "github.com/shopspring/decimal"

const (
	// MoneyScale is the number of fractional digits a balance may carry.
	MoneyScale = 2
	// MaxIntegerDigits matches the NUMERIC(20,2) balance column.
	MaxIntegerDigits = 18

	maxSignificantDigits = 34
)

// FitsMoney reports whether d is representable as a stored balance or delta:
// no more than MoneyScale fractional digits and no more than
// MaxIntegerDigits integer digits. The bounds are checked on the coefficient
// and exponent first, so absurd exponents are rejected without rescaling.
func FitsMoney(d decimal.Decimal) bool {
	if d.IsZero() {
		return true
	}
	digits, exp := d.NumDigits(), int(d.Exponent())
	switch {
	case digits > maxSignificantDigits:
		return false
	case digits+exp > MaxIntegerDigits:
		return false
	case digits+exp+MoneyScale <= 0:
		// Every significant digit sits below the cent.
		return false
	}
	return d.Equal(d.Round(MoneyScale))
}
