package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

// PostgresAccountStore keeps balances in the accounts table. Transfers lock
// both rows with SELECT ... FOR UPDATE in ascending id order and journal the
// transfer in the same transaction.
type PostgresAccountStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{
		db:  db,
		now: time.Now,
	}
}

func (p *PostgresAccountStore) CreateAccount(ctx context.Context, id models.AccountID, initial decimal.Decimal) (models.Account, error) {
	if initial.IsNegative() || !models.FitsMoney(initial) {
		return models.Account{}, models.ErrInvalidAmount
	}
	const query = `INSERT INTO accounts (id, balance, created_at, updated_at)
	VALUES ($1, $2, $3, $3)`

	now := p.now().UTC()
	if _, err := p.db.ExecContext(ctx, query, string(id), initial, now); err != nil {
		if isUniqueViolation(err) {
			return models.Account{}, models.ErrAccountExists
		}
		return models.Account{}, mapError(err)
	}
	return models.Account{ID: id, Balance: initial, CreatedAt: now, UpdatedAt: now}, nil
}

func (p *PostgresAccountStore) GetBalance(ctx context.Context, id models.AccountID) (decimal.Decimal, error) {
	const query = `SELECT balance FROM accounts WHERE id = $1`

	var balance decimal.Decimal
	err := p.db.QueryRowContext(ctx, query, string(id)).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, models.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, mapError(err)
	}
	return balance, nil
}

// ApplyDelta relies on the balance check constraint to reject overdrafts.
func (p *PostgresAccountStore) ApplyDelta(ctx context.Context, id models.AccountID, delta decimal.Decimal) (decimal.Decimal, error) {
	if !models.FitsMoney(delta) {
		return decimal.Zero, models.ErrInvalidAmount
	}
	const query = `UPDATE accounts SET balance = balance + $2, updated_at = $3
	WHERE id = $1 RETURNING balance`

	var balance decimal.Decimal
	err := p.db.QueryRowContext(ctx, query, string(id), delta, p.now().UTC()).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, models.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, mapError(err)
	}
	return balance, nil
}

func (p *PostgresAccountStore) AtomicTransfer(ctx context.Context, tx models.Transfer) (receipt models.TransferReceipt, err error) {
	if !tx.Amount.IsPositive() || !models.FitsMoney(tx.Amount) {
		return models.TransferReceipt{}, models.ErrInvalidAmount
	}
	if tx.From == tx.To {
		return models.TransferReceipt{}, models.ErrSameAccount
	}

	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.TransferReceipt{}, mapError(err)
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	balances, err := p.lockAccounts(ctx, dbTx, tx.From, tx.To)
	if err != nil {
		return models.TransferReceipt{}, err
	}

	fromBalance, ok := balances[tx.From]
	if !ok {
		return models.TransferReceipt{}, models.ErrAccountNotFound
	}
	if fromBalance.LessThan(tx.Amount) {
		return models.TransferReceipt{}, models.ErrInsufficientFunds
	}
	toBalance, ok := balances[tx.To]
	if !ok {
		return models.TransferReceipt{}, models.ErrAccountNotFound
	}

	now := p.now().UTC()
	if err = p.saveTransfer(ctx, dbTx, tx); err != nil {
		return models.TransferReceipt{}, err
	}
	if err = p.setBalance(ctx, dbTx, tx.From, fromBalance.Sub(tx.Amount), now); err != nil {
		return models.TransferReceipt{}, err
	}
	if err = p.setBalance(ctx, dbTx, tx.To, toBalance.Add(tx.Amount), now); err != nil {
		return models.TransferReceipt{}, err
	}

	if err = dbTx.Commit(); err != nil {
		err = mapError(err)
		return models.TransferReceipt{}, err
	}
	return models.TransferReceipt{
		TransferID:  tx.ID,
		FromBalance: fromBalance.Sub(tx.Amount),
		ToBalance:   toBalance.Add(tx.Amount),
	}, nil
}

// lockAccounts row-locks the given accounts in ascending id order and
// returns the balances of those that exist.
func (p *PostgresAccountStore) lockAccounts(ctx context.Context, dbTx *sql.Tx, ids ...models.AccountID) (map[models.AccountID]decimal.Decimal, error) {
	const query = `SELECT id, balance FROM accounts
	WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}

	rows, err := dbTx.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	balances := make(map[models.AccountID]decimal.Decimal, len(ids))
	for rows.Next() {
		var (
			id      string
			balance decimal.Decimal
		)
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, mapError(err)
		}
		balances[models.AccountID(id)] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return balances, nil
}

func (p *PostgresAccountStore) saveTransfer(ctx context.Context, dbTx *sql.Tx, tx models.Transfer) error {
	const query = `INSERT INTO transfers (id, from_account, to_account, amount, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := dbTx.ExecContext(ctx, query, tx.ID, string(tx.From), string(tx.To), tx.Amount, tx.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: transfer %s already recorded", models.ErrConflict, tx.ID)
	}
	return mapError(err)
}

func (p *PostgresAccountStore) setBalance(ctx context.Context, dbTx *sql.Tx, id models.AccountID, balance decimal.Decimal, now time.Time) error {
	const query = `UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`

	_, err := dbTx.ExecContext(ctx, query, string(id), balance, now)
	return mapError(err)
}

func (p *PostgresAccountStore) TransferExists(ctx context.Context, transferID string) (bool, error) {
	const query = `SELECT 1 FROM transfers WHERE id = $1 LIMIT 1`

	var exists int
	err := p.db.QueryRowContext(ctx, query, transferID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err)
	}
	return true, nil
}

var _ interfaces.AccountStore = (*PostgresAccountStore)(nil)
