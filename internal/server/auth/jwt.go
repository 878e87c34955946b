// Package auth issues and verifies the HS256 bearer tokens used between
// filestore components and by API callers.
package auth

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carries the caller's public user id and granted scopes.
type Claims struct {
	jwt.RegisteredClaims
	UserID string   `json:"uid"`
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope reports whether scope was granted.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

func GenerateToken(userID string, scopes []string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
		Scopes: scopes,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies tokenString. Expired tokens yield common.ErrTokenExpired,
// anything else unusable common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// ServiceTokenSource mints tokens for a service principal and reuses each one
// until it is close to expiry.
type ServiceTokenSource struct {
	clientID string
	secret   []byte
	scopes   []string
	validity time.Duration

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewServiceTokenSource(clientID string, secret []byte, scopes []string, validity time.Duration) *ServiceTokenSource {
	return &ServiceTokenSource{clientID: clientID, secret: secret, scopes: scopes, validity: validity}
}

// Token returns a valid bearer token.
func (s *ServiceTokenSource) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Until(s.expires) > s.validity/10 {
		return s.token, nil
	}
	tok, err := GenerateToken(s.clientID, s.scopes, s.secret, s.validity)
	if err != nil {
		return "", err
	}
	s.token = tok
	s.expires = time.Now().Add(s.validity)
	return tok, nil
}
