package provisioning

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/storage/memory"
)

func TestOpeningBalanceRange(t *testing.T) {
	cases := map[float64]string{
		0:          "1",
		0.5:        "5001",
		0.12345678: "1235.56",
		0.99999999: "10000.99",
	}
	for seed, want := range cases {
		got := OpeningBalance(seed)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "seed %v gave %s", seed, got)
		assert.True(t, got.GreaterThanOrEqual(decimal.NewFromInt(1)))
		assert.True(t, got.LessThan(decimal.NewFromInt(10001)))
	}
}

func TestCreateAccount(t *testing.T) {
	store := memory.NewMemoryAccountStore()
	p := NewProvisioner(store, func() float64 { return 0.25 }, nil)
	ctx := context.Background()

	acc, err := p.CreateAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.AccountID("user-1"), acc.ID)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(2501)))

	balance, err := store.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(acc.Balance))

	_, err = p.CreateAccount(ctx, "user-1")
	require.ErrorIs(t, err, models.ErrAccountExists)
}

func TestCreateAccountDefaultSeed(t *testing.T) {
	p := NewProvisioner(memory.NewMemoryAccountStore(), nil, nil)

	acc, err := p.CreateAccount(context.Background(), "user-2")
	require.NoError(t, err)
	assert.True(t, acc.Balance.GreaterThanOrEqual(decimal.NewFromInt(1)))
	assert.True(t, acc.Balance.LessThan(decimal.NewFromInt(10001)))
	assert.True(t, acc.Balance.Equal(acc.Balance.Round(2)))
}
