package repositories

import (
	"context"
	"fmt"
	"time"

	"jlrp/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoUserRepository is a MongoDB implementation of UserRepository.
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a user repository over the users collection.
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{col: db.Collection(usersCollection)}
}

func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.RefreshTokens == nil {
		user.RefreshTokens = []string{}
	}
	if _, err := r.col.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", translateMongoError(err))
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M, what string) (*models.User, error) {
	var user models.User
	if err := r.col.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", what, translateMongoError(err))
	}
	return &user, nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "ID")
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email}, "email")
}

func (r *MongoUserRepository) GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	if hash == "" {
		return nil, fmt.Errorf("failed to get user by reset token: %w", ErrNotFound)
	}
	return r.findOne(ctx, bson.M{"reset_token_hash": hash}, "reset token")
}

func (r *MongoUserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", translateMongoError(err))
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user with ID %s not found for update: %w", user.ID, ErrNotFound)
	}
	return nil
}

func (r *MongoUserRepository) AddRefreshToken(ctx context.Context, id, jti string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$addToSet": bson.M{"refresh_tokens": jti}})
	if err != nil {
		return fmt.Errorf("failed to update refresh tokens: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// RemoveRefreshToken pulls jti in a single update filtered on its presence,
// so only one concurrent caller sees a modification.
func (r *MongoUserRepository) RemoveRefreshToken(ctx context.Context, id, jti string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "refresh_tokens": jti},
		bson.M{"$pull": bson.M{"refresh_tokens": jti}})
	if err != nil {
		return false, fmt.Errorf("failed to update refresh tokens: %w", err)
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
