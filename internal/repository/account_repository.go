package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"balance-api/internal/models"
)

// AccountRepository is the balance store: a durable mapping from user identity
// to a non-negative balance in minor units, exposed through atomic
// read-modify-write primitives. Any engine offering atomic conditional updates
// on a keyed numeric field can satisfy this interface.
type AccountRepository interface {
	// Get returns the current balance, 0 when no document exists.
	Get(ctx context.Context, userID int64) (int64, error)

	// Set unconditionally overwrites the balance. Rejects negative amounts with
	// no side effect.
	Set(ctx context.Context, userID int64, amount int64) error

	// Add atomically increments the balance and returns the post-increment
	// value. Rejects non-positive amounts: a zero or negative delta must not
	// silently become a no-op.
	Add(ctx context.Context, userID int64, amount int64) (int64, error)

	// Subtract atomically decrements the balance only if the current balance
	// covers the amount; otherwise returns models.ErrInsufficientFunds and
	// leaves the balance untouched. Rejects non-positive amounts.
	Subtract(ctx context.Context, userID int64, amount int64) (int64, error)

	// Totals aggregates account count, summed balance and the minimum balance
	// across all accounts. Used by the periodic ledger sweep.
	Totals(ctx context.Context) (*LedgerTotals, error)
}

// LedgerTotals is the aggregate view produced by Totals.
type LedgerTotals struct {
	Accounts   int64 `bson:"accounts"`
	Total      int64 `bson:"total"`
	MinBalance int64 `bson:"min_balance"`
}

type accountRepository struct {
	collection *mongo.Collection
}

// NewAccountRepository creates a MongoDB-backed balance store.
func NewAccountRepository(db *mongo.Database) AccountRepository {
	return &accountRepository{
		collection: db.Collection("accounts"),
	}
}

func (r *accountRepository) Get(ctx context.Context, userID int64) (int64, error) {
	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, models.NewTransientError("get balance", err)
	}
	if err := account.Validate(); err != nil {
		return 0, fmt.Errorf("corrupt account document for user %d: %w", userID, err)
	}
	return account.Balance, nil
}

func (r *accountRepository) Set(ctx context.Context, userID int64, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: %d", models.ErrNegativeAmount, amount)
	}

	now := time.Now()
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set":         bson.M{"balance": amount, "updated_at": now},
		"$setOnInsert": bson.M{"user_id": userID, "created_at": now},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return models.NewTransientError("set balance", err)
	}
	return nil
}

func (r *accountRepository) Add(ctx context.Context, userID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", models.ErrNonPositiveAmount, amount)
	}

	now := time.Now()
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$inc":         bson.M{"balance": amount},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"user_id": userID, "created_at": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var account models.Account
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&account); err != nil {
		return 0, models.NewTransientError("add balance", err)
	}
	return account.Balance, nil
}

func (r *accountRepository) Subtract(ctx context.Context, userID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", models.ErrNonPositiveAmount, amount)
	}

	// The non-negativity guard and the decrement are a single FindOneAndUpdate,
	// so two concurrent subtracts that jointly overdraw can never both match;
	// the loser observes ErrNoDocuments. A missing account is a zero balance,
	// which also cannot cover a positive amount, so both cases surface as
	// insufficient funds.
	filter := bson.M{"user_id": userID, "balance": bson.M{"$gte": amount}}
	update := bson.M{
		"$inc": bson.M{"balance": -amount},
		"$set": bson.M{"updated_at": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var account models.Account
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, models.ErrInsufficientFunds
		}
		return 0, models.NewTransientError("subtract balance", err)
	}
	return account.Balance, nil
}

func (r *accountRepository) Totals(ctx context.Context) (*LedgerTotals, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":         nil,
			"accounts":    bson.M{"$sum": 1},
			"total":       bson.M{"$sum": "$balance"},
			"min_balance": bson.M{"$min": "$balance"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, models.NewTransientError("aggregate totals", err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, models.NewTransientError("aggregate totals", err)
		}
		return &LedgerTotals{}, nil
	}

	var totals LedgerTotals
	if err := cursor.Decode(&totals); err != nil {
		return nil, models.NewTransientError("aggregate totals", err)
	}
	return &totals, nil
}

// CreateAccountIndexes creates the indexes required by the accounts collection.
func CreateAccountIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: -1}},
		},
	}

	_, err := db.Collection("accounts").Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	return nil
}
