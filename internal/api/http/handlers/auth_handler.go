package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/civicwatch/incident-service/internal/api/dto"
	"github.com/civicwatch/incident-service/internal/service"
	apperrors "github.com/civicwatch/incident-service/pkg/util"
)

// AuthHandler exposes login for voters, officials and admins.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.PhoneNumber == "" || req.Password == "" {
		return apperrors.NewValidationError("phone_number and password required", nil)
	}

	user, token, exp, err := h.auth.Login(c.Context(), req.PhoneNumber, req.Password)
	if err != nil {
		return err
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"user": fiber.Map{
				"id":   user.ID,
				"name": user.Name,
				"role": user.Role,
			},
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}
