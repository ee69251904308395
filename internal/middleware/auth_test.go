package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"jlrp/internal/middleware"
	"jlrp/internal/models"
	"jlrp/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth map[string]*models.User

func (s stubAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	if token == "boom" {
		return nil, errors.New("database down")
	}
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("decode: %w", services.ErrUnauthorized)
}

func newApp() *fiber.App {
	auth := stubAuth{
		"customer": {ID: "u1", Roles: []string{models.RoleCustomer}},
		"admin":    {ID: "u2", Roles: []string{models.RoleAdmin}},
	}
	app := fiber.New()
	protected := app.Group("", middleware.AuthRequired(auth, zerolog.Nop()))
	protected.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(middleware.CurrentUser(c).ID)
	})
	protected.Get("/admin", middleware.AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestAuthRequired(t *testing.T) {
	app := newApp()

	cases := []struct {
		name   string
		header string
		path   string
		status int
	}{
		{"missing header", "", "/me", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", "/me", http.StatusUnauthorized},
		{"empty token", "Bearer ", "/me", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", "/me", http.StatusUnauthorized},
		{"lookup failure", "Bearer boom", "/me", http.StatusInternalServerError},
		{"customer", "Bearer customer", "/me", http.StatusOK},
		{"lower-case scheme", "bearer customer", "/me", http.StatusOK},
		{"customer on admin route", "Bearer customer", "/admin", http.StatusForbidden},
		{"admin", "Bearer admin", "/admin", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.status == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
			}
		})
	}
}
