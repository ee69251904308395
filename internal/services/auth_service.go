package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"jlrp/internal/models"
	"jlrp/internal/notify"
	"jlrp/internal/repositories"
	"jlrp/internal/throttle"
	"jlrp/pkg/logger"
)

const (
	minPasswordLength      = 6
	minResetPasswordLength = 8
	resetThrottleWindow    = 60 * time.Second
)

// AuthConfig tunes session lifetimes and login policy.
type AuthConfig struct {
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	ResetTTL       time.Duration
	AdminLoginOnly bool
	SiteAdminEmail string
	ResetURL       string
	// ExposeResetToken returns the plaintext reset token to the caller.
	// Only enabled in development.
	ExposeResetToken bool
}

// Session is the result of a successful login or refresh.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *models.User
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	users    repositories.UserRepository
	tokens   *TokenService
	hasher   *PasswordHasher
	notifier notify.Dispatcher
	limiter  throttle.Limiter
	cfg      AuthConfig
	log      logger.Logger
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users repositories.UserRepository,
	tokens *TokenService,
	hasher *PasswordHasher,
	notifier notify.Dispatcher,
	limiter throttle.Limiter,
	cfg AuthConfig,
	log logger.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		limiter:  limiter,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// SetClock replaces the time source used for password and reset timestamps.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return newError(ErrValidation, "invalid email address")
	}
	return nil
}

// Register creates a customer account.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*models.User, error) {
	return s.CreateUser(ctx, email, password, fullName, []string{models.RoleCustomer})
}

// CreateUser creates an account with the given roles.
func (s *AuthService) CreateUser(ctx context.Context, email, password, fullName string, roles []string) (*models.User, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password, minPasswordLength); err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		roles = []string{models.RoleCustomer}
	}
	for _, r := range roles {
		switch r {
		case models.RoleCustomer, models.RoleAdmin, models.RoleOwner:
		default:
			return nil, newError(ErrValidation, "unknown role %q", r)
		}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, newError(ErrConflict, "email already registered")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &models.User{
		Email:          email,
		FullName:       strings.TrimSpace(fullName),
		HashedPassword: hashed,
		Roles:          roles,
		IsActive:       true,
		RefreshTokens:  []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, newError(ErrConflict, "email already registered")
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}

// Login authenticates by email and password. When adminOnly is set, or the
// service is configured for admin-only login, non-admin users are refused
// with the same generic error as a bad password.
func (s *AuthService) Login(ctx context.Context, email, password string, adminOnly bool) (*Session, error) {
	invalid := newError(ErrUnauthorized, "incorrect email or password")

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !s.hasher.Verify(password, user.HashedPassword) {
		return nil, invalid
	}
	if !user.IsActive {
		return nil, invalid
	}
	if (adminOnly || s.cfg.AdminLoginOnly) && !user.IsAdmin() {
		return nil, invalid
	}

	if s.hasher.NeedsRehash(user.HashedPassword) {
		s.rehash(ctx, user, password)
	}

	return s.startSession(ctx, user)
}

// rehash upgrades a legacy hash. Failures are logged and never fail the login.
func (s *AuthService) rehash(ctx context.Context, user *models.User, password string) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("password rehash failed")
		return
	}
	user.HashedPassword = hashed
	if err := s.users.Update(ctx, user); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to store rehashed password")
		return
	}
	s.log.Debug().Str("user_id", user.ID).Msg("password rehashed")
}

func (s *AuthService) startSession(ctx context.Context, user *models.User) (*Session, error) {
	access, err := s.IssueAccessToken(user, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, jti, err := s.tokens.IssueRefresh(user.ID, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	if err := s.users.AddRefreshToken(ctx, user.ID, jti); err != nil {
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}
	return &Session{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

// IssueAccessToken signs an access token for user valid for ttl.
func (s *AuthService) IssueAccessToken(user *models.User, ttl time.Duration) (string, error) {
	role := models.RoleCustomer
	if len(user.Roles) > 0 {
		role = user.Roles[0]
	}
	return s.tokens.Issue(user.ID, map[string]interface{}{
		"type":  TokenTypeAccess,
		"role":  role,
		"email": user.Email,
	}, ttl)
}

// IssueTokenForEmail signs an access token for an existing account. It is
// meant for operators and bypasses the password check.
func (s *AuthService) IssueTokenForEmail(ctx context.Context, email string, ttl time.Duration) (string, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", newError(ErrNotFound, "user not found")
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if ttl <= 0 {
		ttl = s.cfg.AccessTTL
	}
	return s.IssueAccessToken(user, ttl)
}

// checkTokenUser loads the token's user and rejects tokens issued before the
// last password change.
func (s *AuthService) checkTokenUser(ctx context.Context, claims *TokenClaims) (*models.User, error) {
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrUnauthorized, "invalid token")
		}
		return nil, fmt.Errorf("failed to load token user: %w", err)
	}
	if !user.IsActive {
		return nil, newError(ErrUnauthorized, "invalid token")
	}
	if user.PasswordChangedAt != nil && claims.IssuedAt.Unix() < user.PasswordChangedAt.Unix() {
		return nil, newError(ErrUnauthorized, "token revoked")
	}
	return user, nil
}

// Authenticate resolves the user behind an access token.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.tokens.Decode(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, newError(ErrUnauthorized, "invalid token")
	}
	return s.checkTokenUser(ctx, claims)
}

// Refresh exchanges a live refresh token for a new session, rotating its jti.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, newError(ErrUnauthorized, "missing refresh token")
	}
	claims, err := s.tokens.Decode(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh || claims.JTI == "" {
		return nil, newError(ErrUnauthorized, "invalid token")
	}
	user, err := s.checkTokenUser(ctx, claims)
	if err != nil {
		return nil, err
	}
	removed, err := s.users.RemoveRefreshToken(ctx, user.ID, claims.JTI)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if !removed {
		return nil, newError(ErrUnauthorized, "refresh token revoked")
	}
	return s.startSession(ctx, user)
}

// Logout revokes the presented refresh token. Invalid tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.Decode(refreshToken)
	if err != nil || claims.JTI == "" {
		return nil
	}
	if _, err := s.users.RemoveRefreshToken(ctx, claims.Subject, claims.JTI); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// setPassword stores a new hash and revokes every session of the user.
func (s *AuthService) setPassword(ctx context.Context, user *models.User, password string) error {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	user.HashedPassword = hashed
	user.PasswordChangedAt = &now
	user.RefreshTokens = []string{}
	user.ResetTokenHash = ""
	user.ResetExpiresAt = nil
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// ChangePassword replaces the password of an authenticated user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return newError(ErrUnauthorized, "invalid token")
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !s.hasher.Verify(current, user.HashedPassword) {
		return newError(ErrValidation, "current password is incorrect")
	}
	if err := ValidatePassword(next, minPasswordLength); err != nil {
		return err
	}
	return s.setPassword(ctx, user, next)
}

// ForgotPassword starts a password reset. It reveals nothing about whether
// the account exists; the returned token is empty unless ExposeResetToken is set.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)
	if site := NormalizeEmail(s.cfg.SiteAdminEmail); site != "" && email != site {
		return "", nil
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, "password-reset:"+email, resetThrottleWindow)
		if err != nil {
			s.log.Warn().Err(err).Msg("reset throttle unavailable")
		} else if !ok {
			return "", nil
		}
	}

	token, err := randomToken()
	if err != nil {
		return "", err
	}
	expires := s.now().UTC().Add(s.cfg.ResetTTL)
	user.ResetTokenHash = hashResetToken(token)
	user.ResetExpiresAt = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	s.notifier.Dispatch(notify.Job{
		Template: notify.TemplatePasswordReset,
		To:       user.Email,
		Data: map[string]any{
			"name":       user.FullName,
			"reset_link": s.cfg.ResetURL + "?token=" + token,
			"expires_in": int(s.cfg.ResetTTL.Minutes()),
		},
	})

	if s.cfg.ExposeResetToken {
		s.log.Debug().Str("email", email).Str("token", token).Msg("reset token created")
		return token, nil
	}
	return "", nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if err := ValidatePassword(password, minResetPasswordLength); err != nil {
		return err
	}
	invalid := newError(ErrValidation, "invalid or expired token")
	if token == "" {
		return invalid
	}
	user, err := s.users.GetByResetTokenHash(ctx, hashResetToken(token))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return invalid
		}
		return fmt.Errorf("failed to look up reset token: %w", err)
	}
	if user.ResetExpiresAt == nil || !s.now().Before(*user.ResetExpiresAt) {
		return invalid
	}
	return s.setPassword(ctx, user, password)
}

// GetUser returns a user by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrNotFound, "user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// SeedAdmin creates an owner account, or promotes and resets an existing one.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password, fullName string) (*models.User, error) {
	email = NormalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return s.CreateUser(ctx, email, password, fullName, []string{models.RoleOwner, models.RoleAdmin})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := ValidatePassword(password, minPasswordLength); err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		user.Roles = append(user.Roles, models.RoleAdmin)
	}
	user.IsActive = true
	if fullName != "" {
		user.FullName = fullName
	}
	if err := s.setPassword(ctx, user, password); err != nil {
		return nil, err
	}
	return user, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
