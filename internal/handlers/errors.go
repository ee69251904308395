package handlers

import (
	"errors"
	"fmt"

	"jlrp/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// requestError is a malformed request caught before reaching a service.
type requestError struct {
	message string
	fields  map[string]string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{message: fmt.Sprintf(format, args...)}
}

// bind parses the request body into out and validates its struct tags.
func bind(c *fiber.Ctx, validate *validator.Validate, out any) error {
	if err := c.BodyParser(out); err != nil {
		return badRequest("Invalid request body")
	}
	return check(validate, out)
}

func check(validate *validator.Validate, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return badRequest("Invalid request body")
	}
	errorMessages := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return &requestError{message: "Validation failed", fields: errorMessages}
}

// statusFor maps a service error kind to an HTTP status code.
func statusFor(err error) int {
	kind := err
	var se *services.Error
	if errors.As(err, &se) {
		kind = se.Kind
	}
	switch {
	case errors.Is(kind, services.ErrValidation), errors.Is(kind, services.ErrInvalidSignature):
		return fiber.StatusBadRequest
	case errors.Is(kind, services.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(kind, services.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(kind, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(kind, services.ErrConflict),
		errors.Is(kind, services.ErrInvalidTransition),
		errors.Is(kind, services.ErrAlreadyProcessed):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Server-side failures are
// logged with their cause and answered with a generic message.
func respondError(c *fiber.Ctx, log zerolog.Logger, err error) error {
	var re *requestError
	if errors.As(err, &re) {
		body := fiber.Map{"message": re.message}
		if len(re.fields) > 0 {
			body["errors"] = re.fields
		}
		return c.Status(fiber.StatusBadRequest).JSON(body)
	}

	status := statusFor(err)
	switch status {
	case fiber.StatusInternalServerError:
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
		msg := "Internal server error"
		if errors.Is(err, services.ErrUpstream) {
			msg = services.Message(err)
		}
		return c.Status(status).JSON(fiber.Map{"message": msg})
	case fiber.StatusUnauthorized:
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return c.Status(status).JSON(fiber.Map{"message": services.Message(err)})
	case fiber.StatusForbidden:
		return c.Status(status).JSON(fiber.Map{"message": "Not enough permissions"})
	default:
		return c.Status(status).JSON(fiber.Map{"message": services.Message(err)})
	}
}
