package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

// accountRow pairs an account with its row lock. The lock is a weighted
// semaphore of size one so that acquisition honours context deadlines.
type accountRow struct {
	lock    *semaphore.Weighted
	account models.Account
}

// MemoryAccountStore is an in-memory implementation of interfaces.AccountStore.
// Every read or write of a balance holds that account's row lock; transfers
// take both row locks in ascending id order.
type MemoryAccountStore struct {
	mu        sync.RWMutex // protects the accounts and transfers maps, not the rows
	accounts  map[models.AccountID]*accountRow
	transfers map[string]models.Transfer
	now       func() time.Time
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts:  make(map[models.AccountID]*accountRow),
		transfers: make(map[string]models.Transfer),
		now:       time.Now,
	}
}

func (m *MemoryAccountStore) row(id models.AccountID) *accountRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[id]
}

func lockRow(ctx context.Context, r *accountRow) error {
	if err := r.lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: acquire row lock: %w", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (m *MemoryAccountStore) CreateAccount(ctx context.Context, id models.AccountID, initial decimal.Decimal) (models.Account, error) {
	if initial.IsNegative() || !models.FitsMoney(initial) {
		return models.Account{}, models.ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[id]; exists {
		return models.Account{}, models.ErrAccountExists
	}

	now := m.now().UTC()
	acc := models.Account{ID: id, Balance: initial, CreatedAt: now, UpdatedAt: now}
	m.accounts[id] = &accountRow{lock: semaphore.NewWeighted(1), account: acc}
	return acc, nil
}

func (m *MemoryAccountStore) GetBalance(ctx context.Context, id models.AccountID) (decimal.Decimal, error) {
	r := m.row(id)
	if r == nil {
		return decimal.Zero, models.ErrAccountNotFound
	}
	if err := lockRow(ctx, r); err != nil {
		return decimal.Zero, err
	}
	defer r.lock.Release(1)

	return r.account.Balance, nil
}

func (m *MemoryAccountStore) ApplyDelta(ctx context.Context, id models.AccountID, delta decimal.Decimal) (decimal.Decimal, error) {
	if !models.FitsMoney(delta) {
		return decimal.Zero, models.ErrInvalidAmount
	}
	r := m.row(id)
	if r == nil {
		return decimal.Zero, models.ErrAccountNotFound
	}
	if err := lockRow(ctx, r); err != nil {
		return decimal.Zero, err
	}
	defer r.lock.Release(1)

	next := r.account.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, models.ErrInsufficientFunds
	}
	if err := ctx.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	r.account.Balance = next
	r.account.UpdatedAt = m.now().UTC()
	return next, nil
}

func (m *MemoryAccountStore) AtomicTransfer(ctx context.Context, tx models.Transfer) (models.TransferReceipt, error) {
	if !tx.Amount.IsPositive() || !models.FitsMoney(tx.Amount) {
		return models.TransferReceipt{}, models.ErrInvalidAmount
	}
	if tx.From == tx.To {
		return models.TransferReceipt{}, models.ErrSameAccount
	}

	from := m.row(tx.From)
	if from == nil {
		return models.TransferReceipt{}, models.ErrAccountNotFound
	}
	to := m.row(tx.To)

	// Lock in order to avoid deadlocks between opposite transfers
	locked := []*accountRow{from}
	if to != nil {
		if tx.To < tx.From {
			locked = []*accountRow{to, from}
		} else {
			locked = append(locked, to)
		}
	}
	for i, r := range locked {
		if err := lockRow(ctx, r); err != nil {
			for _, held := range locked[:i] {
				held.lock.Release(1)
			}
			return models.TransferReceipt{}, err
		}
	}
	defer func() {
		for _, r := range locked {
			r.lock.Release(1)
		}
	}()

	if from.account.Balance.LessThan(tx.Amount) {
		return models.TransferReceipt{}, models.ErrInsufficientFunds
	}
	if to == nil {
		return models.TransferReceipt{}, models.ErrAccountNotFound
	}

	// Nothing has been written yet, so a cancelled caller gets a clean abort.
	if err := ctx.Err(); err != nil {
		return models.TransferReceipt{}, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	m.mu.Lock()
	if _, dup := m.transfers[tx.ID]; dup {
		m.mu.Unlock()
		return models.TransferReceipt{}, fmt.Errorf("%w: transfer %s already recorded", models.ErrConflict, tx.ID)
	}
	m.transfers[tx.ID] = tx
	m.mu.Unlock()

	now := m.now().UTC()
	from.account.Balance = from.account.Balance.Sub(tx.Amount)
	from.account.UpdatedAt = now
	to.account.Balance = to.account.Balance.Add(tx.Amount)
	to.account.UpdatedAt = now

	return models.TransferReceipt{
		TransferID:  tx.ID,
		FromBalance: from.account.Balance,
		ToBalance:   to.account.Balance,
	}, nil
}

func (m *MemoryAccountStore) TransferExists(ctx context.Context, transferID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.transfers[transferID]
	return exists, nil
}

// Compile-time check: ensure MemoryAccountStore implements AccountStore interface
var _ interfaces.AccountStore = (*MemoryAccountStore)(nil)
