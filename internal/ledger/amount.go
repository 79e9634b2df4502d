package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

// MoneyScale is the number of fractional digits a balance may carry.
const MoneyScale = models.MoneyScale

// ParseAmount parses a caller-supplied transfer amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := validateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !models.FitsMoney(amount) {
		return ErrInvalidAmount
	}
	return nil
}
