package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password accepted anywhere, in UTF-8 bytes.
// Longer passwords are rejected rather than truncated.
const MaxPasswordBytes = 72

// Argon2Params are the argon2id cost parameters encoded into each hash.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params is the current hashing policy.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher struct {
	params Argon2Params
}

// NewPasswordHasher creates a hasher using params for new hashes.
func NewPasswordHasher(params Argon2Params) *PasswordHasher {
	return &PasswordHasher{params: params}
}

// ValidatePassword enforces the length policy for a new password.
func ValidatePassword(password string, minLen int) error {
	if len([]rune(password)) < minLen {
		return newError(ErrValidation, "password must be at least %d characters", minLen)
	}
	if len(password) > MaxPasswordBytes {
		return newError(ErrValidation, "password must be %d bytes or fewer in UTF-8", MaxPasswordBytes)
	}
	return nil
}

// Hash returns an argon2id hash in PHC string format.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", newError(ErrValidation, "password must be %d bytes or fewer in UTF-8", MaxPasswordBytes)
	}
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches hash. It accepts argon2id and
// legacy bcrypt hashes and never returns an error.
func (h *PasswordHasher) Verify(password, hash string) bool {
	if len(password) > MaxPasswordBytes || hash == "" {
		return false
	}
	if isBcryptHash(hash) {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	params, salt, key, err := decodeArgon2Hash(hash)
	if err != nil {
		return false
	}
	other := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, other) == 1
}

// NeedsRehash reports whether hash was produced under an older policy.
func (h *PasswordHasher) NeedsRehash(hash string) bool {
	if isBcryptHash(hash) {
		return true
	}
	params, _, key, err := decodeArgon2Hash(hash)
	if err != nil {
		return true
	}
	return params.Memory < h.params.Memory ||
		params.Iterations < h.params.Iterations ||
		params.Parallelism < h.params.Parallelism ||
		uint32(len(key)) < h.params.KeyLength
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func decodeArgon2Hash(hash string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, fmt.Errorf("not an argon2id hash")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, fmt.Errorf("unsupported argon2 version")
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, fmt.Errorf("invalid argon2 parameters: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("invalid argon2 salt: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, fmt.Errorf("invalid argon2 key")
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return params, salt, key, nil
}
