// Package storage holds store decorators shared by every backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes let through while half-open.
	HalfOpenRequests uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 10 * time.Second, HalfOpenRequests: 1}
}

// BreakerStore wraps an AccountStore with a circuit breaker. Only
// infrastructure failures count against the breaker; business rejections
// such as insufficient funds are successful round trips. While open, every
// call fails fast with models.ErrStoreUnavailable.
type BreakerStore struct {
	next    interfaces.AccountStore
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewBreakerStore(next interfaces.AccountStore, settings BreakerSettings, logger *zap.Logger) *BreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = DefaultBreakerSettings().ConsecutiveFailures
	}
	b := &BreakerStore{next: next, logger: logger}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "account-store",
		MaxRequests: settings.HalfOpenRequests,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return !isInfrastructureFailure(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return b
}

func (b *BreakerStore) State() gobreaker.State {
	return b.breaker.State()
}

func isInfrastructureFailure(err error) bool {
	if err == nil {
		return false
	}
	switch {
	// Backends wrap a dropped caller in ErrStoreUnavailable; that says
	// nothing about the store's health.
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, models.ErrStoreUnavailable):
		return true
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrAccountExists),
		errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrSameAccount),
		errors.Is(err, models.ErrConflict):
		return false
	}
	return true
}

func execute[T any](b *BreakerStore, fn func() (T, error)) (T, error) {
	var out T
	res, err := b.breaker.Execute(func() (interface{}, error) {
		v, err := fn()
		return v, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	if v, ok := res.(T); ok {
		out = v
	}
	return out, err
}

func (b *BreakerStore) CreateAccount(ctx context.Context, id models.AccountID, initial decimal.Decimal) (models.Account, error) {
	return execute(b, func() (models.Account, error) {
		return b.next.CreateAccount(ctx, id, initial)
	})
}

func (b *BreakerStore) GetBalance(ctx context.Context, id models.AccountID) (decimal.Decimal, error) {
	return execute(b, func() (decimal.Decimal, error) {
		return b.next.GetBalance(ctx, id)
	})
}

func (b *BreakerStore) ApplyDelta(ctx context.Context, id models.AccountID, delta decimal.Decimal) (decimal.Decimal, error) {
	return execute(b, func() (decimal.Decimal, error) {
		return b.next.ApplyDelta(ctx, id, delta)
	})
}

func (b *BreakerStore) AtomicTransfer(ctx context.Context, tx models.Transfer) (models.TransferReceipt, error) {
	return execute(b, func() (models.TransferReceipt, error) {
		return b.next.AtomicTransfer(ctx, tx)
	})
}

func (b *BreakerStore) TransferExists(ctx context.Context, transferID string) (bool, error) {
	return execute(b, func() (bool, error) {
		return b.next.TransferExists(ctx, transferID)
	})
}

var _ interfaces.AccountStore = (*BreakerStore)(nil)
