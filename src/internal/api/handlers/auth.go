package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/casapps/casrecipes/src/internal/auth"
	"github.com/casapps/casrecipes/src/internal/errors"
	"github.com/casapps/casrecipes/src/internal/logging"
	"github.com/casapps/casrecipes/src/internal/services"
)

// AuthHandler handles token login and logout
type AuthHandler struct {
	users       *services.UserService
	authService *auth.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *services.UserService, authService *auth.AuthService) *AuthHandler {
	return &AuthHandler{users: users, authService: authService}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges an email and password for an auth token
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		logging.Ctx(ctx).Info().Str("email", req.Email).Msg("login failed")
		return err
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.InternalError("failed to issue token", err)
	}

	logging.Ctx(ctx).Info().Uint("user_id", user.ID).Msg("user logged in")
	return c.JSON(http.StatusOK, TokenResponse{AuthToken: token})
}

// Logout revokes the token the request was authenticated with
func (h *AuthHandler) Logout(c echo.Context) error {
	claims := auth.CurrentClaims(c)
	if claims == nil {
		return errors.UnauthorizedError("Authentication credentials were not provided.")
	}

	ctx := c.Request().Context()
	if err := h.authService.Revoke(ctx, claims); err != nil {
		return errors.InternalError("failed to revoke token", err)
	}

	logging.Ctx(ctx).Info().Uint("user_id", claims.UserID).Msg("user logged out")
	return c.NoContent(http.StatusNoContent)
}
