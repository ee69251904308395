package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jlrp/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOrderRepository is a MongoDB implementation of OrderRepository.
type MongoOrderRepository struct {
	col *mongo.Collection
}

// NewMongoOrderRepository creates an order repository over the orders collection.
func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{col: db.Collection(ordersCollection)}
}

func (r *MongoOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", translateMongoError(err))
	}
	return nil
}

func (r *MongoOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, fmt.Errorf("order with ID %s: %w", id, translateMongoError(err))
	}
	return &order, nil
}

func (r *MongoOrderRepository) GetByReference(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	filter := bson.M{"$or": bson.A{
		bson.M{"_id": ref},
		bson.M{"razorpay_order_id": ref},
	}}
	if err := r.col.FindOne(ctx, filter).Decode(&order); err != nil {
		return nil, fmt.Errorf("order %s: %w", ref, translateMongoError(err))
	}
	return &order, nil
}

func (r *MongoOrderRepository) List(ctx context.Context) ([]models.Order, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := []models.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (r *MongoOrderRepository) UpdateFulfillment(ctx context.Context, id string, from models.FulfillmentStatus, change FulfillmentChange) (*models.Order, error) {
	var order models.Order
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M(change.fields(time.Now().UTC()))},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("order %s is no longer %s: %w", id, from, ErrStale)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", translateMongoError(err))
	}
	return &order, nil
}

func (r *MongoOrderRepository) SetPaymentStatus(ctx context.Context, gatewayOrderID string, from []models.PaymentStatus, to models.PaymentStatus, paymentID string) (*models.Order, error) {
	set := bson.M{
		"payment_status": to,
		"updated_at":     time.Now().UTC(),
	}
	if paymentID != "" {
		set["razorpay_payment_id"] = paymentID
	}
	var order models.Order
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"razorpay_order_id": gatewayOrderID, "payment_status": bson.M{"$in": from}},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if err := r.col.FindOne(ctx, bson.M{"razorpay_order_id": gatewayOrderID}).Decode(&order); err != nil {
			return nil, fmt.Errorf("order for gateway order %s: %w", gatewayOrderID, translateMongoError(err))
		}
		return &order, fmt.Errorf("order for gateway order %s is %s: %w", gatewayOrderID, order.PaymentStatus, ErrStale)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set payment status: %w", translateMongoError(err))
	}
	return &order, nil
}

func (r *MongoOrderRepository) Stats(ctx context.Context, since time.Time) (models.OrderStats, error) {
	var (
		stats models.OrderStats
		err   error
	)
	if stats.Total, err = r.col.CountDocuments(ctx, bson.M{}); err != nil {
		return stats, fmt.Errorf("failed to count orders: %w", err)
	}
	if stats.Today, err = r.col.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since}}); err != nil {
		return stats, fmt.Errorf("failed to count today's orders: %w", err)
	}
	if stats.Revenue, err = r.sumAmount(ctx, bson.M{"payment_status": models.PaymentPaid}); err != nil {
		return stats, err
	}
	stats.TodayRevenue, err = r.sumAmount(ctx, bson.M{
		"payment_status": models.PaymentPaid,
		"created_at":     bson.M{"$gte": since},
	})
	return stats, err
}

func (r *MongoOrderRepository) sumAmount(ctx context.Context, match bson.M) (float64, error) {
	cur, err := r.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sum order amounts: %w", err)
	}
	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode order sums: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}
