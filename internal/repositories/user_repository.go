package repositories

import (
	"context"

	"jlrp/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	AddRefreshToken(ctx context.Context, id, jti string) error
	// RemoveRefreshToken revokes jti and reports whether it was live. Of
	// concurrent removals of the same jti only one reports true.
	RemoveRefreshToken(ctx context.Context, id, jti string) (bool, error)
}
