package models

import "time"

// Role names recognised by the admin guards.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	RoleOwner    = "owner"
)

// User represents an account that can sign in to the store.
type User struct {
	ID                string     `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Email             string     `json:"email" gorm:"uniqueIndex;type:varchar(255)" bson:"email"`
	FullName          string     `json:"full_name,omitempty" gorm:"type:varchar(255)" bson:"full_name,omitempty"`
	HashedPassword    string     `json:"-" gorm:"type:varchar(255)" bson:"hashed_password"`
	Roles             []string   `json:"roles" gorm:"type:text;serializer:json" bson:"roles"`
	IsActive          bool       `json:"is_active" bson:"is_active"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty" bson:"password_changed_at,omitempty"`
	RefreshTokens     []string   `json:"-" gorm:"type:text;serializer:json" bson:"refresh_tokens"`
	ResetTokenHash    string     `json:"-" gorm:"type:varchar(64);index" bson:"reset_token_hash,omitempty"`
	ResetExpiresAt    *time.Time `json:"-" bson:"reset_expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" bson:"updated_at"`
}

// IsAdmin reports whether the user holds the admin or owner role.
func (u *User) IsAdmin() bool {
	for _, r := range u.Roles {
		if r == RoleAdmin || r == RoleOwner {
			return true
		}
	}
	return false
}

// HasRefreshToken reports whether jti is one of the user's live refresh tokens.
func (u *User) HasRefreshToken(jti string) bool {
	for _, t := range u.RefreshTokens {
		if t == jti {
			return true
		}
	}
	return false
}
