package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jlrp/internal/models"

	"github.com/google/uuid"
)

// MemoryUserRepository is an in-memory implementation of UserRepository.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemoryUserRepository creates an empty in-memory user repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]models.User),
	}
}

func cloneUser(u models.User) *models.User {
	u.Roles = append([]string(nil), u.Roles...)
	u.RefreshTokens = append([]string(nil), u.RefreshTokens...)
	return &u
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return fmt.Errorf("user with email %s: %w", user.Email, ErrDuplicate)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = *cloneUser(*user)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, ErrNotFound)
}

func (r *MemoryUserRepository) GetByResetTokenHash(_ context.Context, hash string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if hash == "" {
		return nil, fmt.Errorf("user by reset token: %w", ErrNotFound)
	}
	for _, u := range r.users {
		if u.ResetTokenHash == hash {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("user by reset token: %w", ErrNotFound)
}

func (r *MemoryUserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return fmt.Errorf("user with ID %s not found for update: %w", user.ID, ErrNotFound)
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = *cloneUser(*user)
	return nil
}

func (r *MemoryUserRepository) AddRefreshToken(_ context.Context, id, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
	}
	if !u.HasRefreshToken(jti) {
		u.RefreshTokens = append(append([]string(nil), u.RefreshTokens...), jti)
	}
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepository) RemoveRefreshToken(_ context.Context, id, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return false, fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
	}
	if !u.HasRefreshToken(jti) {
		return false, nil
	}
	kept := make([]string, 0, len(u.RefreshTokens))
	for _, t := range u.RefreshTokens {
		if t != jti {
			kept = append(kept, t)
		}
	}
	u.RefreshTokens = kept
	r.users[id] = u
	return true, nil
}
