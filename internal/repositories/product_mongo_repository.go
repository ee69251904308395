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

// MongoProductRepository is a MongoDB implementation of ProductRepository.
type MongoProductRepository struct {
	col *mongo.Collection
}

// NewMongoProductRepository creates a product repository over the products collection.
func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{col: db.Collection(productsCollection)}
}

func (r *MongoProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := bson.M{}
	if filter.Gender != "" {
		query["gender"] = filter.Gender
	}
	if filter.Subcategory != "" {
		query["subcategory"] = filter.Subcategory
	}
	price := bson.M{}
	if filter.MinPrice != nil {
		price["$gte"] = *filter.MinPrice
	}
	if filter.MaxPrice != nil {
		price["$lte"] = *filter.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}

	column, ok := productSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	dir := -1
	if filter.SortDir == 1 {
		dir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: column, Value: dir}}).
		SetSkip(int64(filter.Skip))
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	products := []models.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

func (r *MongoProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, fmt.Errorf("product with ID %s: %w", id, translateMongoError(err))
	}
	return &product, nil
}

func (r *MongoProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, product); err != nil {
		return fmt.Errorf("failed to create product: %w", translateMongoError(err))
	}
	return nil
}

func (r *MongoProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": product.ID}, product)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("product with ID %s not found for update: %w", product.ID, ErrNotFound)
	}
	return nil
}

func (r *MongoProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("product with ID %s not found for deletion: %w", id, ErrNotFound)
	}
	return nil
}

func (r *MongoProductRepository) Count(ctx context.Context, availableOnly bool) (int64, error) {
	filter := bson.M{}
	if availableOnly {
		filter["available"] = true
	}
	n, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}
