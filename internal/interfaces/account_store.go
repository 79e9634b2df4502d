package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

// AccountStore is durable keyed storage of account balances.
//
// AtomicTransfer is the only operation that may touch two accounts. It
// checks the source balance before the destination's existence, and either
// commits both balance changes together with the transfer journal row or
// nothing at all.
type AccountStore interface {
	CreateAccount(ctx context.Context, id models.AccountID, initial decimal.Decimal) (models.Account, error)
	GetBalance(ctx context.Context, id models.AccountID) (decimal.Decimal, error)
	ApplyDelta(ctx context.Context, id models.AccountID, delta decimal.Decimal) (decimal.Decimal, error)
	AtomicTransfer(ctx context.Context, tx models.Transfer) (models.TransferReceipt, error)
	TransferExists(ctx context.Context, transferID string) (bool, error)
}
