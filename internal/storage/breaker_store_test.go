package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/storage/memory"
)

// failingStore fails every call with err once set.
type failingStore struct {
	*memory.MemoryAccountStore
	err   error
	calls int
}

func (f *failingStore) GetBalance(ctx context.Context, id models.AccountID) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.MemoryAccountStore.GetBalance(ctx, id)
}

func newFailingStore(t *testing.T) *failingStore {
	t.Helper()
	m := memory.NewMemoryAccountStore()
	_, err := m.CreateAccount(context.Background(), "A", decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = m.CreateAccount(context.Background(), "B", decimal.Zero)
	require.NoError(t, err)
	return &failingStore{MemoryAccountStore: m}
}

func TestBreakerOpensOnInfrastructureFailures(t *testing.T) {
	inner := newFailingStore(t)
	inner.err = fmt.Errorf("%w: connection refused", models.ErrStoreUnavailable)
	b := NewBreakerStore(inner, BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: time.Minute}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.GetBalance(ctx, "A")
		require.ErrorIs(t, err, models.ErrStoreUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.GetBalance(ctx, "A")
	require.ErrorIs(t, err, models.ErrStoreUnavailable)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls, "open breaker must not reach the store")
}

func TestBreakerIgnoresBusinessRejections(t *testing.T) {
	inner := newFailingStore(t)
	b := NewBreakerStore(inner, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := b.AtomicTransfer(ctx, models.Transfer{ID: fmt.Sprintf("t%d", i), From: "A", To: "B", Amount: decimal.NewFromInt(100)})
		require.ErrorIs(t, err, models.ErrInsufficientFunds)

		_, err = b.GetBalance(ctx, "missing")
		require.ErrorIs(t, err, models.ErrAccountNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerPassesThroughResults(t *testing.T) {
	b := NewBreakerStore(newFailingStore(t), DefaultBreakerSettings(), nil)
	ctx := context.Background()

	receipt, err := b.AtomicTransfer(ctx, models.Transfer{ID: "t1", From: "A", To: "B", Amount: decimal.NewFromInt(4)})
	require.NoError(t, err)
	assert.True(t, receipt.FromBalance.Equal(decimal.NewFromInt(6)))
	assert.True(t, receipt.ToBalance.Equal(decimal.NewFromInt(4)))

	exists, err := b.TransferExists(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, exists)

	balance, err := b.ApplyDelta(ctx, "B", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(5)))

	acc, err := b.CreateAccount(ctx, "C", decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.Equal(t, models.AccountID("C"), acc.ID)
}

func TestBreakerIgnoresCancelledCallers(t *testing.T) {
	b := NewBreakerStore(newFailingStore(t), BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: time.Minute}, nil)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := b.AtomicTransfer(cancelled, models.Transfer{ID: fmt.Sprintf("t%d", i), From: "A", To: "B", Amount: decimal.NewFromInt(1)})
		require.ErrorIs(t, err, models.ErrStoreUnavailable)
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())

	balance, err := b.GetBalance(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)))
}

func TestBreakerUnknownErrorsCountAsFailures(t *testing.T) {
	assert.True(t, isInfrastructureFailure(fmt.Errorf("driver: bad connection")))
	assert.True(t, isInfrastructureFailure(context.DeadlineExceeded))
	assert.False(t, isInfrastructureFailure(nil))
	assert.False(t, isInfrastructureFailure(models.ErrConflict))
	assert.False(t, isInfrastructureFailure(context.Canceled))
	assert.False(t, isInfrastructureFailure(fmt.Errorf("%w: %w", models.ErrStoreUnavailable, context.Canceled)))
	assert.True(t, isInfrastructureFailure(fmt.Errorf("%w: %w", models.ErrStoreUnavailable, context.DeadlineExceeded)))
}
