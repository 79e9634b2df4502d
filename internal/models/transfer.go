package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer represents an intent to move money between two accounts.
// It is journaled in the same commit as both balance updates.
type Transfer struct {
	ID        string
	From      AccountID
	To        AccountID
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// TransferReceipt holds the balances left behind by a committed transfer
type TransferReceipt struct {
	TransferID  string
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}
