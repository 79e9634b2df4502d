package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

func openTestDB(t *testing.T) (*mongo.Client, *mongo.Database) {
	t.Helper()
	uri := os.Getenv("LEDGER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LEDGER_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	db := client.Database("ledger_test_" + uuid.NewString()[:8])
	require.NoError(t, EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return client, db
}

func TestDecimal128Conversion(t *testing.T) {
	d128, err := toDecimal128(decimal.RequireFromString("1234.5"))
	require.NoError(t, err)
	assert.Equal(t, "1234.50", d128.String())

	back, err := fromDecimal128(d128)
	require.NoError(t, err)
	assert.True(t, back.Equal(decimal.RequireFromString("1234.5")))

	_, err = toDecimal128(decimal.RequireFromString("0.005"))
	require.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestRejectsSubCentAmountsBeforeQuerying(t *testing.T) {
	s := &MongoAccountStore{now: time.Now}
	ctx := context.Background()

	_, err := s.ApplyDelta(ctx, "a", decimal.RequireFromString("-0.005"))
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = s.CreateAccount(ctx, "a", decimal.RequireFromString("1.001"))
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = s.AtomicTransfer(ctx, models.Transfer{ID: "t", From: "a", To: "b", Amount: decimal.RequireFromString("0.015")})
	require.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestMapError(t *testing.T) {
	transient := mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}
	assert.ErrorIs(t, mapError(transient), models.ErrConflict)
	assert.ErrorIs(t, mapError(mongo.CommandError{Code: 13, Name: "Unauthorized"}), models.ErrStoreUnavailable)
	assert.ErrorIs(t, mapError(errors.New("server selection timeout")), models.ErrStoreUnavailable)
	assert.NoError(t, mapError(nil))
}

func TestMongoAccountStoreTransfer(t *testing.T) {
	client, db := openTestDB(t)
	store := NewMongoAccountStore(client, db)
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, "A", decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = store.CreateAccount(ctx, "B", decimal.NewFromInt(50))
	require.NoError(t, err)
	_, err = store.CreateAccount(ctx, "A", decimal.NewFromInt(1))
	require.ErrorIs(t, err, models.ErrAccountExists)

	tx := models.Transfer{ID: uuid.NewString(), From: "A", To: "B", Amount: decimal.NewFromInt(30), CreatedAt: time.Now().UTC()}
	receipt, err := store.AtomicTransfer(ctx, tx)
	require.NoError(t, err)
	assert.True(t, receipt.FromBalance.Equal(decimal.NewFromInt(70)))
	assert.True(t, receipt.ToBalance.Equal(decimal.NewFromInt(80)))

	exists, err := store.TransferExists(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = store.AtomicTransfer(ctx, models.Transfer{ID: uuid.NewString(), From: "A", To: "B", Amount: decimal.NewFromInt(1000)})
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	_, err = store.AtomicTransfer(ctx, models.Transfer{ID: uuid.NewString(), From: "A", To: "nonexistent", Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, models.ErrAccountNotFound)

	balance, err := store.GetBalance(ctx, "A")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(70)), "aborted transfer leaked: %s", balance)

	_, err = store.ApplyDelta(ctx, "B", decimal.NewFromInt(-1000))
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	_, err = store.GetBalance(ctx, "missing")
	require.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestMongoUserStore(t *testing.T) {
	_, db := openTestDB(t)
	store := NewMongoUserStore(db)
	ctx := context.Background()

	user := models.User{ID: "u1", Username: "ada@example.com", PasswordHash: "hash", FirstName: "Adaline", LastName: "Lovelace"}
	require.NoError(t, store.CreateUser(ctx, user))
	require.ErrorIs(t, store.CreateUser(ctx, models.User{ID: "u2", Username: "ada@example.com"}), models.ErrUserExists)

	got, err := store.GetUserByUsername(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	last := "Byron"
	require.NoError(t, store.UpdateUser(ctx, "u1", models.UserUpdate{LastName: &last}))

	found, err := store.SearchUsers(ctx, "BYR")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Adaline", found[0].FirstName)

	found, err = store.SearchUsers(ctx, ".*")
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, store.DeleteUser(ctx, "u1"))
	require.ErrorIs(t, store.DeleteUser(ctx, "u1"), models.ErrUserNotFound)
}
