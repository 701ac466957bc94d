package handlers

import (
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/identity-profile-api/internal/services"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler exposes the auth use cases over HTTP. Service errors are
// returned as-is and turned into responses by middleware.ErrorHandler.
type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	resp, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	resp, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		return err
	}

	return c.JSON(resp)
}

func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	profile, err := h.authService.GetProfile(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(profile)
}

func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	resp, err := h.authService.UpdateProfile(c.UserContext(), userID, &req)
	if err != nil {
		return err
	}

	return c.JSON(resp)
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid request body",
	})
}
