package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds the settings for signing and verifying identity tokens.
type Config struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// Claims is the JWT payload asserted by the identity provider for a
// dashboard join. The hub compares these verified claims against the
// client-asserted identity instead of trusting the assertion alone.
type Claims struct {
	UserID     string `json:"uid"`
	Role       string `json:"role"`
	Department string `json:"dept,omitempty"`
	jwt.RegisteredClaims
}

// NewToken generates a signed identity token. Used by the identity provider
// side and by tests; the hub itself only verifies.
func NewToken(cfg Config, userID, role, department string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:     userID,
		Role:       role,
		Department: department,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseToken validates a token string and extracts its identity claims.
func ParseToken(cfg Config, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
