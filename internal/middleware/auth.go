package middleware

import (
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/services"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenLocalsKey  = "token"
	userIDLocalsKey = "user_id"
)

// Authenticate verifies the bearer token and stores its subject in the
// request locals for UserID.
func Authenticate(tokens *services.TokenManager) fiber.Handler {
	return jwtware.New(jwtware.Config{
		KeyFunc:    tokens.Keyfunc,
		Claims:     &services.TokenClaims{},
		ContextKey: tokenLocalsKey,
		SuccessHandler: func(c *fiber.Ctx) error {
			token, _ := c.Locals(tokenLocalsKey).(*jwt.Token)
			subject, err := tokens.Subject(token)
			if err != nil {
				return unauthorized(c)
			}
			c.Locals(userIDLocalsKey, subject)
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorized(c)
		},
	})
}

// UserID returns the authenticated subject, or ErrUnauthorized when the
// route was not behind Authenticate.
func UserID(c *fiber.Ctx) (string, error) {
	id, ok := c.Locals(userIDLocalsKey).(string)
	if !ok || id == "" {
		return "", services.ErrUnauthorized
	}
	return id, nil
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Message: "Unauthorized: invalid or expired token",
	})
}
