package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/casapps/casrecipes/src/internal/cache"
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *AuthService {
	t.Helper()
	cfg := viper.New()
	cfg.Set("cache.enabled", true)
	return NewAuthService("test-secret", "casrecipes", time.Hour, cache.NewCacheManager(cfg))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)
	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	user := &models.User{ID: 7, Username: "chef", IsAdmin: true}

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.True(t, claims.IsAdmin)
	assert.NotEmpty(t, claims.ID)

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewAuthService("another-secret", "casrecipes", time.Hour, nil)
		_, err := other.ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("Revoked", func(t *testing.T) {
		require.NoError(t, svc.Revoke(ctx, claims))
		_, err := svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})
}

func TestExtractToken(t *testing.T) {
	tok, ok := extractToken("Token abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	tok, ok = extractToken("Bearer xyz")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	_, ok = extractToken("Basic abc")
	assert.False(t, ok)
	_, ok = extractToken("Token")
	assert.False(t, ok)
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)
	m := NewMiddleware(svc)
	e := echo.New()

	token, err := svc.GenerateToken(&models.User{ID: 3, Username: "cook"})
	require.NoError(t, err)

	handler := func(c echo.Context) error {
		if id := UserID(c); id != nil {
			return c.JSON(http.StatusOK, map[string]uint{"id": *id})
		}
		return c.NoContent(http.StatusNoContent)
	}

	run := func(mw echo.MiddlewareFunc, header string) (int, error) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(echo.HeaderAuthorization, header)
		}
		rec := httptest.NewRecorder()
		err := mw(handler)(e.NewContext(req, rec))
		return rec.Code, err
	}

	t.Run("AuthRequiresHeader", func(t *testing.T) {
		_, err := run(m.Auth(), "")
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})

	t.Run("AuthAcceptsToken", func(t *testing.T) {
		code, err := run(m.Auth(), "Token "+token)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("OptionalAnonymous", func(t *testing.T) {
		code, err := run(m.OptionalAuth(), "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, code)
	})

	t.Run("OptionalRejectsGarbage", func(t *testing.T) {
		_, err := run(m.OptionalAuth(), "Bearer garbage")
		assert.Error(t, err)
	})

	t.Run("RequireAdmin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.Set(ContextIsAdmin, false)
		err := m.RequireAdmin()(handler)(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusForbidden, he.Code)
	})
}
