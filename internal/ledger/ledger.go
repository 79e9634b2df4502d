package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/metrics"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models/events"
)

const (
	DefaultStoreTimeout = 3 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBase    = 20 * time.Millisecond
	DefaultTopic        = "transfers.completed"
)

// idempotencyNamespace derives transfer ids from (source account, key) pairs.
var idempotencyNamespace = uuid.MustParse("5b0c7e0e-3f57-4d8a-9a55-2f1f7c1c9e41")

// TransferResult is the typed outcome of a transfer. Status is always set;
// the balances are only meaningful when Status is KindOK.
type TransferResult struct {
	Status      Kind
	TransferID  string
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal

	// Replayed is set when an idempotency key matched an earlier commit and
	// nothing was moved this time. Balances are then the current ones.
	Replayed bool
}

// Ledger coordinates transfers between accounts and serves balance reads.
// The store is injected; Ledger keeps no connection state of its own.
type Ledger struct {
	store     interfaces.AccountStore
	publisher interfaces.EventPublisher
	topic     string
	logger    *zap.Logger
	metrics   *metrics.Collectors

	storeTimeout time.Duration
	maxRetries   uint64
	retryBase    time.Duration

	newID func() string
	now   func() time.Time
}

type Option func(*Ledger)

// WithPublisher publishes a TransferCompleted event on topic after each commit.
func WithPublisher(p interfaces.EventPublisher, topic string) Option {
	return func(l *Ledger) {
		l.publisher = p
		if topic != "" {
			l.topic = topic
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithStoreTimeout bounds every single store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.storeTimeout = d
		}
	}
}

// WithRetry sets how many times a conflicting or failed store attempt is
// repeated, and the base delay of the exponential backoff between attempts.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(l *Ledger) {
		l.maxRetries = maxRetries
		if base > 0 {
			l.retryBase = base
		}
	}
}

func NewLedger(store interfaces.AccountStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:        store,
		topic:        DefaultTopic,
		logger:       zap.NewNop(),
		storeTimeout: DefaultStoreTimeout,
		maxRetries:   DefaultMaxRetries,
		retryBase:    DefaultRetryBase,
		newID:        func() string { return uuid.New().String() },
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Transfer moves amount from the caller's account to the destination as a
// single unit of work. Every failure leaves both balances untouched.
func (l *Ledger) Transfer(ctx context.Context, from, to models.AccountID, amount decimal.Decimal) (TransferResult, error) {
	return l.TransferWithKey(ctx, "", from, to, amount)
}

// TransferWithKey is Transfer with a client idempotency key. Requests from
// the same source account with the same key commit at most once; a repeat
// reports the earlier transfer as ok with Replayed set. An empty key
// behaves like Transfer.
func (l *Ledger) TransferWithKey(ctx context.Context, key string, from, to models.AccountID, amount decimal.Decimal) (TransferResult, error) {
	start := l.now()
	result, err := l.transfer(ctx, key, from, to, amount)
	err = normalize(err)
	result.Status = KindOf(err)

	if l.metrics != nil {
		l.metrics.Transfers.WithLabelValues(string(result.Status)).Inc()
		l.metrics.TransferDuration.Observe(l.now().Sub(start).Seconds())
	}

	fields := []zap.Field{
		zap.String("transfer_id", result.TransferID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("amount", amount.String()),
		zap.String("status", string(result.Status)),
	}
	switch {
	case result.Status == KindOK && result.Replayed:
		l.logger.Info("transfer replayed", fields...)
	case result.Status == KindOK:
		l.logger.Info("transfer committed", fields...)
		l.publishCompleted(ctx, result, from, to, amount)
	case result.Status == KindStoreUnavailable:
		l.logger.Warn("transfer aborted", append(fields, zap.Error(err))...)
	default:
		l.logger.Info("transfer rejected", fields...)
	}
	return result, err
}

func (l *Ledger) transfer(ctx context.Context, key string, from, to models.AccountID, amount decimal.Decimal) (TransferResult, error) {
	if err := validateAmount(amount); err != nil {
		return TransferResult{}, err
	}
	if from == to {
		return TransferResult{}, ErrInvalidDestination
	}

	id := l.newID()
	if key != "" {
		id = transferIDForKey(from, key)
	}
	tx := models.Transfer{
		ID:        id,
		From:      from,
		To:        to,
		Amount:    amount,
		CreatedAt: l.now().UTC(),
	}
	result := TransferResult{TransferID: tx.ID}

	if key != "" && l.committed(ctx, tx.ID) {
		result.Replayed = true
		l.fillBalances(ctx, tx, &result)
		return result, nil
	}

	attempts := 0
	op := func() error {
		attempts++
		if attempts > 1 && l.metrics != nil {
			l.metrics.TransferRetries.Inc()
		}

		receipt, err := l.atomicTransfer(ctx, tx)
		if err == nil {
			result.FromBalance, result.ToBalance = receipt.FromBalance, receipt.ToBalance
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		// The failure may have struck after the commit. Re-read before
		// retrying so a committed transfer is never applied twice.
		if l.committed(ctx, tx.ID) {
			l.fillBalances(ctx, tx, &result)
			return nil
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.retryBase
	policy.MaxInterval = 20 * l.retryBase
	policy.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, l.maxRetries), ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			if l.committed(ctx, tx.ID) {
				l.fillBalances(ctx, tx, &result)
				return result, nil
			}
			return result, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
		}
		return result, err
	}
	return result, nil
}

// transferIDForKey scopes key to the source account so two users cannot
// collide on the same key.
func transferIDForKey(from models.AccountID, key string) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(string(from)+"\x00"+key)).String()
}

func (l *Ledger) atomicTransfer(ctx context.Context, tx models.Transfer) (models.TransferReceipt, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, l.storeTimeout)
	defer cancel()
	return l.store.AtomicTransfer(attemptCtx, tx)
}

// committed asks the store whether transferID was journaled. It runs
// detached from the caller's cancellation since it only reads.
func (l *Ledger) committed(ctx context.Context, transferID string) bool {
	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.storeTimeout)
	defer cancel()

	exists, err := l.store.TransferExists(checkCtx, transferID)
	if err != nil {
		l.logger.Warn("could not verify transfer state",
			zap.String("transfer_id", transferID), zap.Error(err))
		return false
	}
	return exists
}

// fillBalances reports current balances for a transfer whose receipt was lost.
func (l *Ledger) fillBalances(ctx context.Context, tx models.Transfer, result *TransferResult) {
	readCtx := context.WithoutCancel(ctx)
	if b, err := l.GetBalance(readCtx, tx.From); err == nil {
		result.FromBalance = b
	}
	if b, err := l.GetBalance(readCtx, tx.To); err == nil {
		result.ToBalance = b
	}
}

func (l *Ledger) publishCompleted(ctx context.Context, result TransferResult, from, to models.AccountID, amount decimal.Decimal) {
	if l.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.storeTimeout)
	defer cancel()

	event := events.TransferCompleted{
		TransferID:  result.TransferID,
		FromAccount: string(from),
		ToAccount:   string(to),
		Amount:      amount,
		OccurredAt:  l.now().UTC(),
	}
	if err := l.publisher.Publish(pubCtx, l.topic, string(from), event); err != nil {
		l.logger.Error("failed to publish transfer event",
			zap.String("transfer_id", result.TransferID), zap.Error(err))
	}
}

// GetBalance returns the latest committed balance of an account.
func (l *Ledger) GetBalance(ctx context.Context, id models.AccountID) (decimal.Decimal, error) {
	readCtx, cancel := context.WithTimeout(ctx, l.storeTimeout)
	defer cancel()

	balance, err := l.store.GetBalance(readCtx, id)
	if err != nil {
		return decimal.Zero, normalize(err)
	}
	return balance, nil
}
