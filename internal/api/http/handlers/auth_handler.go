package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reporting-service/internal/api/dto"
	"github.com/spec-kit/reporting-service/internal/auth"
	"github.com/spec-kit/reporting-service/internal/config"
	"github.com/spec-kit/reporting-service/internal/service"
	apperrors "github.com/spec-kit/reporting-service/pkg/util"
)

const refreshCookieName = "refresh_token"

// AuthHandler exposes the auth endpoints. The refresh token only ever
// travels in an httpOnly cookie scoped to /auth.
type AuthHandler struct {
	auth       *service.AuthService
	cookie     config.CookieConfig
	refreshTTL time.Duration
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(authService *service.AuthService, cookie config.CookieConfig) *AuthHandler {
	return &AuthHandler{
		auth:       authService,
		cookie:     cookie,
		refreshTTL: authService.Codec().RefreshTTL(),
	}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	user, pair, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	return respond(c, http.StatusOK, fiber.Map{
		"accessToken": pair.AccessToken,
		"user":        dto.NewUserResponse(user),
	})
}

// Refresh handles POST /auth/refresh. The token comes from the cookie only.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	refreshToken := c.Cookies(refreshCookieName)
	if refreshToken == "" {
		return apperrors.NewRefreshMissing()
	}

	pair, err := h.auth.Refresh(c.UserContext(), refreshToken)
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	return respond(c, http.StatusOK, fiber.Map{"accessToken": pair.AccessToken})
}

// Logout handles POST /auth/logout. Always succeeds.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.auth.Logout(c.UserContext(), c.Cookies(refreshCookieName))
	h.clearRefreshCookie(c)
	return respond(c, http.StatusOK, fiber.Map{"ok": true})
}

// Me handles GET /auth/me from the guard-attached identity alone.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("unauthorized")
	}
	return respond(c, http.StatusOK, fiber.Map{
		"user": fiber.Map{"id": identity.UserID, "role": identity.Role},
	})
}

// CreateUser handles POST /auth/create-user (ADMIN only).
func (h *AuthHandler) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	user, err := h.auth.CreateUser(c.UserContext(), req.Email, req.Password, req.Role)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, fiber.Map{"user": dto.NewUserResponse(user)})
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/auth",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}
