// Package mongo stores accounts and users in MongoDB. Transfers use
// multi-document transactions, which require a replica set or sharded
// cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

const (
	accountsCollection  = "accounts"
	transfersCollection = "transfers"
	usersCollection     = "users"
)

// Connect opens a client and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique username index used by the user store.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	})
	if err != nil {
		return fmt.Errorf("create username index: %w", err)
	}
	return nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	if !models.FitsMoney(d) {
		return primitive.Decimal128{}, fmt.Errorf("%w: %s", models.ErrInvalidAmount, d)
	}
	v, err := primitive.ParseDecimal128(d.StringFixed(2))
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode balance %s: %v", models.ErrStoreUnavailable, v, err)
	}
	return d, nil
}

// mapError translates driver failures onto the store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: %w", models.ErrConflict, err)
	}
	return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
}
