package middleware

import (
	"context"
	"errors"
	"strings"

	"jlrp/internal/models"
	"jlrp/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const userKey = "user"

// Authenticator resolves a bearer token to the user it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// AuthRequired is a Fiber middleware to check for a valid access token.
// The authenticated user is stored in c.Locals under "user".
func AuthRequired(auth Authenticator, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c)
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return unauthorized(c)
		}

		user, err := auth.Authenticate(c.UserContext(), strings.TrimSpace(parts[1]))
		if err != nil {
			if !errors.Is(err, services.ErrUnauthorized) {
				log.Error().Err(err).Msg("token authentication failed")
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Internal server error",
				})
			}
			return unauthorized(c)
		}

		c.Locals(userKey, user)
		return c.Next()
	}
}

// AdminRequired rejects users without the admin or owner role. It must run
// after AuthRequired.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return unauthorized(c)
		}
		if !user.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Not enough permissions",
			})
		}
		return c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}

func unauthorized(c *fiber.Ctx) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": "Could not validate credentials",
	})
}
