package ledger

import (
	"errors"
	"fmt"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

// Kind is the stable, enumerable outcome of a ledger operation.
type Kind string

const (
	KindOK                 Kind = "ok"
	KindInvalidAmount      Kind = "invalid_amount"
	KindInvalidDestination Kind = "invalid_destination"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindAccountNotFound    Kind = "invalid_account"
	KindStoreUnavailable   Kind = "store_unavailable"
)

var (
	ErrInvalidAmount      = models.ErrInvalidAmount
	ErrInvalidDestination = models.ErrSameAccount
)

// KindOf maps err onto its outcome kind. Anything that is not a validation
// or business-rule rejection is reported as an unavailable store.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, models.ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, models.ErrSameAccount):
		return KindInvalidDestination
	case errors.Is(err, models.ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, models.ErrAccountNotFound):
		return KindAccountNotFound
	default:
		return KindStoreUnavailable
	}
}

// retryable reports whether a store error may go away on its own.
func retryable(err error) bool {
	return errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrStoreUnavailable)
}

func normalize(err error) error {
	if err == nil || errors.Is(err, models.ErrStoreUnavailable) || KindOf(err) != KindStoreUnavailable {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
}
