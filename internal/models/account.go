package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountID identifies an account. It is the id of the user who owns it.
type AccountID string

// Account is a balance-holding row, one per user
type Account struct {
	ID        AccountID       `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
