package middleware

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/services"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{services.ErrIdentityExists, fiber.StatusBadRequest},
	{services.ErrContactInUse, fiber.StatusBadRequest},
	{services.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{services.ErrUnauthorized, fiber.StatusUnauthorized},
	{services.ErrInvalidToken, fiber.StatusUnauthorized},
	{services.ErrUserNotFound, fiber.StatusNotFound},
}

// StatusFor maps an error surfaced by a handler to its HTTP status and the
// message safe to return to the client.
func StatusFor(err error) (int, string) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return fiber.StatusBadRequest, verr.Message
	}

	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.err.Error()
		}
	}

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		if ferr.Code >= fiber.StatusInternalServerError {
			return ferr.Code, "Internal server error"
		}
		return ferr.Code, ferr.Message
	}

	return fiber.StatusInternalServerError, "Internal server error"
}

// ErrorHandler is the single place where handler errors become HTTP
// responses. Details of 5xx errors are logged and reported, never returned.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code, message := StatusFor(err)

	attrs := []any{
		"method", c.Method(),
		"path", c.Path(),
		"status", code,
		"error", err.Error(),
	}
	if rid, ok := c.Locals("requestid").(string); ok {
		attrs = append(attrs, "request_id", rid)
	}
	if uid, ok := c.Locals(userIDLocalsKey).(string); ok {
		attrs = append(attrs, "user_id", uid)
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("unhandled server error", attrs...)
		if hub := sentryfiber.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
	} else {
		slog.Warn("request failed", attrs...)
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
	})
}
