package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/casapps/casrecipes/src/internal/cache"
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

// RevocationStore remembers logged-out token ids until they expire
type RevocationStore interface {
	Mark(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// AuthService handles authentication operations
type AuthService struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
	revoked   RevocationStore
}

// NewAuthService creates a new authentication service
func NewAuthService(secretKey, issuer string, ttl time.Duration, revoked RevocationStore) *AuthService {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &AuthService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		ttl:       ttl,
		revoked:   revoked,
	}
}

// Claims represents JWT claims
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// HashPassword hashes a plain text password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken issues a signed token for user
func (a *AuthService) GenerateToken(user *models.User) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT token and rejects revoked ones
func (a *AuthService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secretKey, nil
	}, jwt.WithIssuer(a.issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if a.revoked != nil {
		revoked, err := a.revoked.Exists(ctx, cache.RevokedTokenKey(claims.ID))
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Revoke invalidates a token until its natural expiry
func (a *AuthService) Revoke(ctx context.Context, claims *Claims) error {
	if a.revoked == nil || claims == nil {
		return nil
	}

	ttl := a.ttl
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return a.revoked.Mark(ctx, cache.RevokedTokenKey(claims.ID), ttl)
}
