package repositories

import (
	"context"
	"fmt"

	"jlrp/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoReturnRepository is a MongoDB implementation of ReturnRepository.
// Line key uniqueness relies on the sparse unique index from EnsureIndexes.
type MongoReturnRepository struct {
	col *mongo.Collection
}

// NewMongoReturnRepository creates a return repository over the returns collection.
func NewMongoReturnRepository(db *mongo.Database) *MongoReturnRepository {
	return &MongoReturnRepository{col: db.Collection(returnsCollection)}
}

func (r *MongoReturnRepository) Create(ctx context.Context, req *models.ReturnRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if _, err := r.col.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("failed to create return request: %w", translateMongoError(err))
	}
	return nil
}

func (r *MongoReturnRepository) GetByID(ctx context.Context, id string) (*models.ReturnRequest, error) {
	var req models.ReturnRequest
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&req); err != nil {
		return nil, fmt.Errorf("return request %s: %w", id, translateMongoError(err))
	}
	return &req, nil
}

func (r *MongoReturnRepository) List(ctx context.Context, status models.ReturnStatus, limit int) ([]models.ReturnRequest, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "requested_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list return requests: %w", err)
	}
	reqs := []models.ReturnRequest{}
	if err := cur.All(ctx, &reqs); err != nil {
		return nil, fmt.Errorf("failed to decode return requests: %w", err)
	}
	return reqs, nil
}

func (r *MongoReturnRepository) CompareAndSetStatus(ctx context.Context, id string, from []models.ReturnStatus, to models.ReturnStatus) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": to}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update return status: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoReturnRepository) Update(ctx context.Context, req *models.ReturnRequest) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": req.ID}, req)
	if err != nil {
		return fmt.Errorf("failed to update return request: %w", translateMongoError(err))
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("return request %s not found for update: %w", req.ID, ErrNotFound)
	}
	return nil
}

func (r *MongoReturnRepository) CountByStatus(ctx context.Context, status models.ReturnStatus) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, fmt.Errorf("failed to count return requests: %w", err)
	}
	return n, nil
}
