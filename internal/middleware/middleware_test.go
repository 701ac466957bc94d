package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/services"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", &services.ValidationError{Field: "email", Message: "bad email"}, 400, "bad email"},
		{"identity exists", services.ErrIdentityExists, 400, "Email or Phone number already registered"},
		{"contact in use", services.ErrContactInUse, 400, "Email or Phone number already in use"},
		{"invalid credentials", services.ErrInvalidCredentials, 401, "Invalid credentials"},
		{"unauthorized", services.ErrUnauthorized, 401, "Unauthorized"},
		{"wrapped not found", fmt.Errorf("lookup: %w", services.ErrUserNotFound), 404, "User not found"},
		{"fiber client error", fiber.NewError(fiber.StatusTooManyRequests, "Too many requests"), 429, "Too many requests"},
		{"fiber server error", fiber.NewError(fiber.StatusBadGateway, "upstream exploded"), 502, "Internal server error"},
		{"unknown", errors.New("connection reset by peer"), 500, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestErrorHandlerHidesInternalDetails(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("pq: password authentication failed")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":true,"message":"Internal server error"}`, string(body))
}

func TestAuthenticate(t *testing.T) {
	tokens := services.NewTokenManager("middleware-secret", time.Hour)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/me", Authenticate(tokens), func(c *fiber.Ctx) error {
		id, err := UserID(c)
		if err != nil {
			return err
		}
		return c.SendString(id)
	})
	app.Get("/open", func(c *fiber.Ctx) error {
		_, err := UserID(c)
		return err
	})

	call := func(path, token string) (int, string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	t.Run("valid token exposes subject", func(t *testing.T) {
		token, err := tokens.Issue("user-42")
		require.NoError(t, err)

		status, body := call("/me", token)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "user-42", body)
	})

	t.Run("missing token", func(t *testing.T) {
		status, _ := call("/me", "")
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("token without exp", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-42", "userId": "user-42",
		}).SignedString([]byte("middleware-secret"))
		require.NoError(t, err)

		status, _ := call("/me", raw)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("expired token", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-42", "userId": "user-42",
			"iat": time.Now().Add(-2 * time.Hour).Unix(),
			"exp": time.Now().Add(-time.Hour).Unix(),
		}).SignedString([]byte("middleware-secret"))
		require.NoError(t, err)

		status, _ := call("/me", raw)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("route without middleware has no subject", func(t *testing.T) {
		status, body := call("/open", "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.JSONEq(t, `{"error":true,"message":"Unauthorized"}`, body)
	})
}
