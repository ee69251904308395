package repositories

import (
	"context"
	"fmt"
	"time"

	"jlrp/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPaymentRepository is a MongoDB implementation of PaymentRepository.
type MongoPaymentRepository struct {
	col *mongo.Collection
}

// NewMongoPaymentRepository creates a payment repository over the payments collection.
func NewMongoPaymentRepository(db *mongo.Database) *MongoPaymentRepository {
	return &MongoPaymentRepository{col: db.Collection(paymentsCollection)}
}

func (r *MongoPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	if _, err := r.col.InsertOne(ctx, payment); err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepository) ListByOrder(ctx context.Context, gatewayOrderID string) ([]models.Payment, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"order_id": gatewayOrderID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	payments := []models.Payment{}
	if err := cur.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return payments, nil
}
