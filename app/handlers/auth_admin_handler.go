package handlers

import (
	"log"
	"strings"

	"github.com/amirphl/page-pilot/app/dto"
	businessflow "github.com/amirphl/page-pilot/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AuthAdminHandlerInterface defines the contract for admin auth handlers
type AuthAdminHandlerInterface interface {
	Login(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
}

// AuthAdminHandler implements AuthAdminHandlerInterface
type AuthAdminHandler struct {
	baseHandler
	flow businessflow.AdminAuthFlow
}

func NewAuthAdminHandler(flow businessflow.AdminAuthFlow) AuthAdminHandlerInterface {
	return &AuthAdminHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// Login authenticates the admin with username/password and issues an access token
func (h *AuthAdminHandler) Login(c fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestID(c))

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/login")
	defer cancel()

	result, err := h.flow.Login(ctx, &req, metadata)
	if err != nil {
		if businessflow.IsAdminNotFound(err) || businessflow.IsIncorrectPassword(err) || businessflow.IsInvalidCredentials(err) {
			// same answer for unknown user and wrong password
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid username or password", "INVALID_CREDENTIALS", nil)
		}
		if businessflow.IsAdminInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Admin inactive", "ADMIN_INACTIVE", nil)
		}
		log.Println("Admin login failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", "LOGIN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

// Logout revokes the bearer token of the current request
func (h *AuthAdminHandler) Logout(c fiber.Ctx) error {
	token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	if token == "" {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Access token is required", "MISSING_ACCESS_TOKEN", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/logout")
	defer cancel()

	if err := h.flow.Logout(ctx, token); err != nil {
		log.Println("Admin logout failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Logout failed", "LOGOUT_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Logged out", nil)
}
