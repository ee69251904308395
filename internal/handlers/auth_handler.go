package handlers

import (
	"strings"
	"time"

	"jlrp/internal/middleware"
	"jlrp/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const refreshCookieName = "refresh_token"

// CookieConfig controls the refresh token cookie.
type CookieConfig struct {
	MaxAge time.Duration
	Secure bool
}

// AuthHandler handles HTTP requests for authentication and accounts.
type AuthHandler struct {
	authService *services.AuthService
	cookie      CookieConfig
	validate    *validator.Validate
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, cookie CookieConfig, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      cookie,
		validate:    validator.New(),
		log:         log,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, requireAuth, requireAdmin fiber.Handler) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/refresh", h.HandleRefresh)
	authRoutes.Post("/logout", h.HandleLogout)
	authRoutes.Post("/forgot-password", h.HandleForgotPassword)
	authRoutes.Post("/reset-password", h.HandleResetPassword)
	authRoutes.Post("/change-password", requireAuth, h.HandleChangePassword)

	router.Get("/users/me", requireAuth, h.HandleMe)

	router.Post("/admin/login", h.HandleAdminLogin)
	router.Post("/admin/users", requireAuth, requireAdmin, h.HandleCreateUser)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name"`
}

// HandleRegister handles new customer registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.log, err)
	}

	user, err := h.authService.Register(c.UserContext(), req.Email, req.Password, req.FullName)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// loginRequest accepts a JSON body or an OAuth2 password form, where the
// email arrives as "username".
type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password" validate:"required"`
}

func (r loginRequest) login() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Username
}

func (h *AuthHandler) parseLogin(c *fiber.Ctx) (loginRequest, error) {
	var req loginRequest
	if err := bind(c, h.validate, &req); err != nil {
		return req, err
	}
	if strings.TrimSpace(req.login()) == "" {
		return req, badRequest("email is required")
	}
	return req, nil
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/auth",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// HandleLogin handles user login, issuing an access token and a refresh cookie.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	req, err := h.parseLogin(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	session, err := h.authService.Login(c.UserContext(), req.login(), req.Password, false)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.setRefreshCookie(c, session.RefreshToken)
	return c.JSON(fiber.Map{
		"access_token": session.AccessToken,
		"token_type":   "bearer",
	})
}

// HandleAdminLogin is the admin panel login; non-admin accounts are refused.
func (h *AuthHandler) HandleAdminLogin(c *fiber.Ctx) error {
	req, err := h.parseLogin(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	session, err := h.authService.Login(c.UserContext(), req.login(), req.Password, true)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.setRefreshCookie(c, session.RefreshToken)
	return c.JSON(fiber.Map{
		"access_token": session.AccessToken,
		"token_type":   "bearer",
		"user": fiber.Map{
			"email": session.User.Email,
			"role":  "admin",
		},
	})
}

// HandleRefresh rotates the refresh cookie and returns a new access token.
func (h *AuthHandler) HandleRefresh(c *fiber.Ctx) error {
	session, err := h.authService.Refresh(c.UserContext(), c.Cookies(refreshCookieName))
	if err != nil {
		h.clearRefreshCookie(c)
		return respondError(c, h.log, err)
	}
	h.setRefreshCookie(c, session.RefreshToken)
	return c.JSON(fiber.Map{
		"access_token": session.AccessToken,
		"token_type":   "bearer",
	})
}

// HandleLogout revokes the presented refresh token.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if err := h.authService.Logout(c.UserContext(), c.Cookies(refreshCookieName)); err != nil {
		return respondError(c, h.log, err)
	}
	h.clearRefreshCookie(c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

// HandleForgotPassword always answers with the same message so callers
// cannot probe for accounts.
func (h *AuthHandler) HandleForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.log, err)
	}

	token, err := h.authService.ForgotPassword(c.UserContext(), req.Email)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if token != "" {
		return c.JSON(fiber.Map{
			"message":     "reset created (dev)",
			"reset_token": token,
		})
	}
	return c.JSON(fiber.Map{
		"message": "If an account with that email exists, a password reset link has been sent.",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// HandleResetPassword consumes a reset token.
func (h *AuthHandler) HandleResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.log, err)
	}

	if err := h.authService.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Password has been reset successfully."})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// HandleChangePassword changes the signed-in user's password. Every
// existing session is revoked.
func (h *AuthHandler) HandleChangePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.log, err)
	}

	user := middleware.CurrentUser(c)
	if err := h.authService.ChangePassword(c.UserContext(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return respondError(c, h.log, err)
	}
	h.clearRefreshCookie(c)
	return c.JSON(fiber.Map{"message": "Password changed successfully"})
}

// HandleMe returns the signed-in user.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	return c.JSON(middleware.CurrentUser(c))
}

type createUserRequest struct {
	Email    string   `json:"email" validate:"required"`
	Password string   `json:"password" validate:"required"`
	FullName string   `json:"full_name"`
	Roles    []string `json:"roles"`
}

// HandleCreateUser lets an admin create an account with explicit roles.
func (h *AuthHandler) HandleCreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.log, err)
	}

	user, err := h.authService.CreateUser(c.UserContext(), req.Email, req.Password, req.FullName, req.Roles)
	if err != nil {
		return respondError(c, h.log, err)
	}
	h.log.Info().Str("user_id", user.ID).Strs("roles", user.Roles).
		Str("by", middleware.CurrentUser(c).Email).Msg("user created by admin")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created successfully",
		"user":    user,
	})
}
