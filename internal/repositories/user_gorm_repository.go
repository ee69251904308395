package repositories

import (
	"context"
	"fmt"
	"slices"
	"time"

	"jlrp/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", translateGORMError(err))
	}
	return nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, translateGORMError(err))
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, translateGORMError(err))
	}
	return &user, nil
}

// GetByResetTokenHash retrieves the user holding an outstanding reset token.
func (r *GORMUserRepository) GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "reset_token_hash = ?", hash).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by reset token: %w", translateGORMError(err))
	}
	return &user, nil
}

// Update saves every field of an existing user.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(user).Select("*").Omit("id", "created_at").Updates(user)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", translateGORMError(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user with ID %s not found for update: %w", user.ID, ErrNotFound)
	}
	return nil
}

// AddRefreshToken records jti as a live refresh token for the user.
func (r *GORMUserRepository) AddRefreshToken(ctx context.Context, id, jti string) error {
	_, err := r.editRefreshTokens(ctx, id, func(tokens []string) ([]string, bool) {
		if slices.Contains(tokens, jti) {
			return tokens, false
		}
		return append(tokens, jti), true
	})
	return err
}

// RemoveRefreshToken revokes a single refresh token.
func (r *GORMUserRepository) RemoveRefreshToken(ctx context.Context, id, jti string) (bool, error) {
	return r.editRefreshTokens(ctx, id, func(tokens []string) ([]string, bool) {
		kept := slices.DeleteFunc(slices.Clone(tokens), func(t string) bool { return t == jti })
		return kept, len(kept) != len(tokens)
	})
}

// editRefreshTokens rewrites the token list under a row lock and reports
// whether edit changed it.
func (r *GORMUserRepository) editRefreshTokens(ctx context.Context, id string, edit func([]string) ([]string, bool)) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to load user %s: %w", id, translateGORMError(err))
		}
		user.RefreshTokens, changed = edit(user.RefreshTokens)
		if !changed {
			return nil
		}
		if user.RefreshTokens == nil {
			user.RefreshTokens = []string{}
		}
		if err := tx.Model(&user).Select("refresh_tokens").Updates(&user).Error; err != nil {
			return fmt.Errorf("failed to update refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
