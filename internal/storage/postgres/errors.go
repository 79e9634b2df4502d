package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

// mapError translates driver failures onto the store sentinels. Anything
// that is not a recognised constraint or contention error means the
// database could not serve the call.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %s", models.ErrConflict, pqErr.Message)
		case codeCheckViolation:
			return models.ErrInsufficientFunds
		}
	}
	return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
}
