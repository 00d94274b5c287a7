package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Context keys set by the middleware
const (
	ContextUserID  = "user_id"
	ContextIsAdmin = "is_admin"
	ContextClaims  = "claims"
)

// Middleware provides authentication middleware
type Middleware struct {
	authService *AuthService
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(authService *AuthService) *Middleware {
	return &Middleware{authService: authService}
}

// extractToken accepts "Token <jwt>" and "Bearer <jwt>"
func extractToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", false
	}
	switch strings.ToLower(parts[0]) {
	case "token", "bearer":
		return parts[1], true
	}
	return "", false
}

func (m *Middleware) authenticate(c echo.Context) error {
	token, ok := extractToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid authentication format")
	}

	claims, err := m.authService.ValidateToken(c.Request().Context(), token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextIsAdmin, claims.IsAdmin)
	c.Set(ContextClaims, claims)
	return nil
}

// Auth returns the authentication middleware handler
func (m *Middleware) Auth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
			}
			if err := m.authenticate(c); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// OptionalAuth sets the user context when a valid token is sent. A missing
// header means an anonymous request; a bad token is still rejected.
func (m *Middleware) OptionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(c)
			}
			if err := m.authenticate(c); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireAdmin returns middleware that requires admin privileges
func (m *Middleware) RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !IsAdmin(c) {
				return echo.NewHTTPError(http.StatusForbidden, "admin privileges required")
			}
			return next(c)
		}
	}
}

// UserID returns the authenticated user id, or nil for anonymous requests
func UserID(c echo.Context) *uint {
	if id, ok := c.Get(ContextUserID).(uint); ok {
		return &id
	}
	return nil
}

// IsAdmin reports whether the authenticated user is an admin
func IsAdmin(c echo.Context) bool {
	admin, _ := c.Get(ContextIsAdmin).(bool)
	return admin
}

// CurrentClaims returns the validated token claims, if any
func CurrentClaims(c echo.Context) *Claims {
	claims, _ := c.Get(ContextClaims).(*Claims)
	return claims
}
