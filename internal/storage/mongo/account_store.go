package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

type accountDoc struct {
	ID        string               `bson:"_id"`
	Balance   primitive.Decimal128 `bson:"balance"`
	CreatedAt time.Time            `bson:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt"`
}

type transferDoc struct {
	ID        string               `bson:"_id"`
	From      string               `bson:"from"`
	To        string               `bson:"to"`
	Amount    primitive.Decimal128 `bson:"amount"`
	CreatedAt time.Time            `bson:"createdAt"`
}

// MongoAccountStore keeps one document per account. Balance changes are
// conditional $inc updates so a debit can never take a balance below zero.
type MongoAccountStore struct {
	client    *mongo.Client
	accounts  *mongo.Collection
	transfers *mongo.Collection
	now       func() time.Time
}

func NewMongoAccountStore(client *mongo.Client, db *mongo.Database) *MongoAccountStore {
	return &MongoAccountStore{
		client:    client,
		accounts:  db.Collection(accountsCollection),
		transfers: db.Collection(transfersCollection),
		now:       time.Now,
	}
}

func (s *MongoAccountStore) CreateAccount(ctx context.Context, id models.AccountID, initial decimal.Decimal) (models.Account, error) {
	if initial.IsNegative() || !models.FitsMoney(initial) {
		return models.Account{}, models.ErrInvalidAmount
	}
	balance, err := toDecimal128(initial)
	if err != nil {
		return models.Account{}, err
	}

	now := s.now().UTC()
	_, err = s.accounts.InsertOne(ctx, accountDoc{ID: string(id), Balance: balance, CreatedAt: now, UpdatedAt: now})
	if mongo.IsDuplicateKeyError(err) {
		return models.Account{}, models.ErrAccountExists
	}
	if err != nil {
		return models.Account{}, mapError(err)
	}
	return models.Account{ID: id, Balance: initial, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *MongoAccountStore) GetBalance(ctx context.Context, id models.AccountID) (decimal.Decimal, error) {
	var doc accountDoc
	err := s.accounts.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return decimal.Zero, models.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, mapError(err)
	}
	return fromDecimal128(doc.Balance)
}

func (s *MongoAccountStore) ApplyDelta(ctx context.Context, id models.AccountID, delta decimal.Decimal) (decimal.Decimal, error) {
	if !models.FitsMoney(delta) {
		return decimal.Zero, models.ErrInvalidAmount
	}
	return s.incBalance(ctx, s.accounts, id, delta)
}

// incBalance adds delta to the balance of id. A negative delta only applies
// when the balance covers it.
func (s *MongoAccountStore) incBalance(ctx context.Context, coll *mongo.Collection, id models.AccountID, delta decimal.Decimal) (decimal.Decimal, error) {
	inc, err := toDecimal128(delta)
	if err != nil {
		return decimal.Zero, err
	}
	filter := bson.M{"_id": string(id)}
	if delta.IsNegative() {
		need, err := toDecimal128(delta.Neg())
		if err != nil {
			return decimal.Zero, err
		}
		filter["balance"] = bson.M{"$gte": need}
	}
	update := bson.M{
		"$inc": bson.M{"balance": inc},
		"$set": bson.M{"updatedAt": s.now().UTC()},
	}

	var doc accountDoc
	err = coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, countErr := coll.CountDocuments(ctx, bson.M{"_id": string(id)})
		if countErr != nil {
			return decimal.Zero, mapError(countErr)
		}
		if n == 0 {
			return decimal.Zero, models.ErrAccountNotFound
		}
		return decimal.Zero, models.ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, mapError(err)
	}
	return fromDecimal128(doc.Balance)
}

func (s *MongoAccountStore) AtomicTransfer(ctx context.Context, tx models.Transfer) (models.TransferReceipt, error) {
	if !tx.Amount.IsPositive() || !models.FitsMoney(tx.Amount) {
		return models.TransferReceipt{}, models.ErrInvalidAmount
	}
	if tx.From == tx.To {
		return models.TransferReceipt{}, models.ErrSameAccount
	}
	amount, err := toDecimal128(tx.Amount)
	if err != nil {
		return models.TransferReceipt{}, err
	}

	session, err := s.client.StartSession()
	if err != nil {
		return models.TransferReceipt{}, mapError(err)
	}
	defer session.EndSession(context.Background())

	res, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		fromBalance, err := s.incBalance(sc, s.accounts, tx.From, tx.Amount.Neg())
		if err != nil {
			return nil, err
		}
		toBalance, err := s.incBalance(sc, s.accounts, tx.To, tx.Amount)
		if err != nil {
			return nil, err
		}
		_, err = s.transfers.InsertOne(sc, transferDoc{
			ID:        tx.ID,
			From:      string(tx.From),
			To:        string(tx.To),
			Amount:    amount,
			CreatedAt: tx.CreatedAt,
		})
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: transfer %s already recorded", models.ErrConflict, tx.ID)
		}
		if err != nil {
			return nil, err
		}
		return models.TransferReceipt{TransferID: tx.ID, FromBalance: fromBalance, ToBalance: toBalance}, nil
	})
	if err != nil {
		if isSentinel(err) {
			return models.TransferReceipt{}, err
		}
		return models.TransferReceipt{}, mapError(err)
	}
	return res.(models.TransferReceipt), nil
}

func (s *MongoAccountStore) TransferExists(ctx context.Context, transferID string) (bool, error) {
	n, err := s.transfers.CountDocuments(ctx, bson.M{"_id": transferID}, options.Count().SetLimit(1))
	if err != nil {
		return false, mapError(err)
	}
	return n > 0, nil
}

func isSentinel(err error) bool {
	for _, target := range []error{
		models.ErrAccountNotFound,
		models.ErrInsufficientFunds,
		models.ErrConflict,
		models.ErrStoreUnavailable,
		models.ErrInvalidAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var _ interfaces.AccountStore = (*MongoAccountStore)(nil)
