package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names used by the Mongo repositories.
const (
	usersCollection    = "users"
	productsCollection = "products"
	ordersCollection   = "orders"
	returnsCollection  = "return_requests"
	paymentsCollection = "payments"
	imagesCollection   = "images"
)

func translateMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}

// NewMongoSet builds the Mongo-backed repository set over db.
func NewMongoSet(db *mongo.Database) Set {
	return Set{
		Users:    NewMongoUserRepository(db),
		Products: NewMongoProductRepository(db),
		Orders:   NewMongoOrderRepository(db),
		Returns:  NewMongoReturnRepository(db),
		Payments: NewMongoPaymentRepository(db),
		Images:   NewMongoImageRepository(db),
	}
}

// EnsureIndexes creates the indexes the repositories rely on for uniqueness
// and lookups. It is safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "reset_token_hash", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		productsCollection: {
			{Keys: bson.D{{Key: "gender", Value: 1}, {Key: "subcategory", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "razorpay_order_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		returnsCollection: {
			{Keys: bson.D{{Key: "line_key", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "requested_at", Value: -1}}},
		},
		paymentsCollection: {
			{Keys: bson.D{{Key: "order_id", Value: 1}}},
		},
		imagesCollection: {
			{Keys: bson.D{{Key: "uploaded_at", Value: -1}}},
		},
	}
	for name, idx := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
