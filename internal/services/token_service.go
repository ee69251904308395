package services

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims is the decoded form of a signed token.
type TokenClaims struct {
	Subject   string
	Type      string
	Role      string
	Email     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and decodes HMAC-signed JWTs.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewTokenService creates a token service for one of HS256, HS384 or HS512.
func NewTokenService(secret, algorithm string) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}
	return &TokenService{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}, nil
}

// SetClock replaces the time source used for iat, exp and expiry checks.
func (s *TokenService) SetClock(now func() time.Time) {
	s.now = now
}

// Issue signs a token for subject valid for ttl. extra claims are merged in
// and cannot override sub, iat or exp.
func (s *TokenService) Issue(subject string, extra map[string]interface{}, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["sub"] = subject
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()

	token := jwt.NewWithClaims(s.method, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// IssueRefresh signs a refresh token with a fresh jti and returns both.
func (s *TokenService) IssueRefresh(subject string, ttl time.Duration) (string, string, error) {
	jti := uuid.New().String()
	token, err := s.Issue(subject, map[string]interface{}{"type": TokenTypeRefresh, "jti": jti}, ttl)
	return token, jti, err
}

// Decode validates the signature, algorithm and expiry of tokenString.
func (s *TokenService) Decode(tokenString string) (*TokenClaims, error) {
	parser := &jwt.Parser{
		ValidMethods:         []string{s.method.Alg()},
		SkipClaimsValidation: true,
	}
	token, err := parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, wrapError(ErrUnauthorized, err, "invalid token")
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, newError(ErrUnauthorized, "invalid token")
	}

	exp, ok := numericClaim(mc, "exp")
	if !ok || !s.now().Before(time.Unix(exp, 0)) {
		return nil, newError(ErrUnauthorized, "invalid token")
	}
	iat, _ := numericClaim(mc, "iat")

	claims := &TokenClaims{
		Subject:   stringClaim(mc, "sub"),
		Type:      stringClaim(mc, "type"),
		Role:      stringClaim(mc, "role"),
		Email:     stringClaim(mc, "email"),
		JTI:       stringClaim(mc, "jti"),
		IssuedAt:  time.Unix(iat, 0),
		ExpiresAt: time.Unix(exp, 0),
	}
	if claims.Subject == "" {
		return nil, newError(ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

func numericClaim(mc jwt.MapClaims, key string) (int64, bool) {
	switch v := mc[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func stringClaim(mc jwt.MapClaims, key string) string {
	s, _ := mc[key].(string)
	return s
}
