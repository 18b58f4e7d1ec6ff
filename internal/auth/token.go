package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token has expired")
	ErrMalformedClaim   = errors.New("token claims are malformed")
)

// TokenService issues and verifies bearer tokens.
// Implementations include JWTService (HMAC) and PasetoService (v4.local).
type TokenService interface {
	// Issue signs a token for subject. A non-positive ttl selects the
	// service's default lifetime.
	Issue(subject string, ttl time.Duration) (string, error)
	Verify(token string) (*TokenClaims, error)
}

// TokenClaims is what a verified token asserts
type TokenClaims struct {
	Subject   string    `json:"sub"`
	ID        string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}
