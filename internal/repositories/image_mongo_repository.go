package repositories

import (
	"context"
	"fmt"
	"regexp"

	"jlrp/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoImageRepository is a MongoDB implementation of ImageRepository.
type MongoImageRepository struct {
	col *mongo.Collection
}

// NewMongoImageRepository creates an image repository over the images collection.
func NewMongoImageRepository(db *mongo.Database) *MongoImageRepository {
	return &MongoImageRepository{col: db.Collection(imagesCollection)}
}

func (r *MongoImageRepository) Create(ctx context.Context, img *models.Image) error {
	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	if _, err := r.col.InsertOne(ctx, img); err != nil {
		return fmt.Errorf("failed to save image metadata: %w", err)
	}
	return nil
}

func (r *MongoImageRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	var img models.Image
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&img); err != nil {
		return nil, fmt.Errorf("image %s: %w", id, translateMongoError(err))
	}
	return &img, nil
}

func (r *MongoImageRepository) List(ctx context.Context, query string, skip, limit int) ([]models.Image, int64, error) {
	filter := bson.M{}
	if query != "" {
		filter["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count images: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list images: %w", err)
	}
	images := []models.Image{}
	if err := cur.All(ctx, &images); err != nil {
		return nil, 0, fmt.Errorf("failed to decode images: %w", err)
	}
	return images, total, nil
}

func (r *MongoImageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("image %s not found for deletion: %w", id, ErrNotFound)
	}
	return nil
}

func (r *MongoImageRepository) DeleteByURL(ctx context.Context, url string) error {
	if _, err := r.col.DeleteMany(ctx, bson.M{"url": url}); err != nil {
		return fmt.Errorf("failed to delete image metadata for %s: %w", url, err)
	}
	return nil
}
