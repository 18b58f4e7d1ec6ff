package auth

import (
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

// PasetoService handles PASETO token creation and validation
// Uses v4.local (symmetric encryption with XChaCha20-Poly1305)
type PasetoService struct {
	symmetricKey paseto.V4SymmetricKey
	defaultTTL   time.Duration
	now          func() time.Time
}

func NewPasetoService(symmetricKey []byte, defaultTTL time.Duration) (*PasetoService, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(symmetricKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &PasetoService{
		symmetricKey: key,
		defaultTTL:   defaultTTL,
		now:          time.Now,
	}, nil
}

// Issue generates a new PASETO v4.local token for subject
func (s *PasetoService) Issue(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.now()

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetExpiration(now.Add(ttl))
	token.SetSubject(subject)
	token.SetJti(uuid.NewString())

	return token.V4Encrypt(s.symmetricKey, nil), nil
}

// Verify decrypts a PASETO v4.local token and returns the claims.
// Expiry is checked here against the service clock rather than by the parser.
func (s *PasetoService) Verify(tokenStr string) (*TokenClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()

	token, err := parser.ParseV4Local(s.symmetricKey, tokenStr, nil)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrMalformedClaim
	}
	if !s.now().Before(expiresAt) {
		return nil, ErrExpired
	}

	subject, err := token.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrMalformedClaim
	}

	claims := &TokenClaims{
		Subject:   subject,
		ExpiresAt: expiresAt,
	}
	if jti, err := token.GetJti(); err == nil {
		claims.ID = jti
	}
	if issuedAt, err := token.GetIssuedAt(); err == nil {
		claims.IssuedAt = issuedAt
	}

	return claims, nil
}
