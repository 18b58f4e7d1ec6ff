package auth

import (
	"strings"
	"testing"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestJWT(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService(testSecret, "HS256", 30*time.Minute)
	require.NoError(t, err)
	return svc
}

func newTestPaseto(t *testing.T) *PasetoService {
	t.Helper()
	svc, err := NewPasetoService(testSecret, 30*time.Minute)
	require.NoError(t, err)
	return svc
}

// tokenServices runs the shared contract against every implementation
func tokenServices(t *testing.T) map[string]struct {
	svc    TokenService
	setNow func(func() time.Time)
} {
	j := newTestJWT(t)
	p := newTestPaseto(t)
	return map[string]struct {
		svc    TokenService
		setNow func(func() time.Time)
	}{
		"jwt":    {j, func(f func() time.Time) { j.now = f }},
		"paseto": {p, func(f func() time.Time) { p.now = f }},
	}
}

func TestTokenService_RoundTrip(t *testing.T) {
	for name, tc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			token, err := tc.svc.Issue("alice@example.com", 0)
			require.NoError(t, err)

			claims, err := tc.svc.Verify(token)
			require.NoError(t, err)
			assert.Equal(t, "alice@example.com", claims.Subject)
			assert.NotEmpty(t, claims.ID)
			assert.WithinDuration(t, time.Now().Add(30*time.Minute), claims.ExpiresAt, 2*time.Second)
		})
	}
}

func TestTokenService_UniqueIDs(t *testing.T) {
	for name, tc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			a, err := tc.svc.Issue("alice@example.com", time.Minute)
			require.NoError(t, err)
			b, err := tc.svc.Issue("alice@example.com", time.Minute)
			require.NoError(t, err)
			assert.NotEqual(t, a, b)
		})
	}
}

func TestTokenService_Expired(t *testing.T) {
	for name, tc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			token, err := tc.svc.Issue("alice@example.com", time.Minute)
			require.NoError(t, err)

			tc.setNow(func() time.Time { return time.Now().Add(2 * time.Minute) })

			_, err = tc.svc.Verify(token)
			assert.ErrorIs(t, err, ErrExpired)
		})
	}
}

func TestTokenService_Tampered(t *testing.T) {
	for name, tc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			token, err := tc.svc.Issue("alice@example.com", time.Minute)
			require.NoError(t, err)

			// Flip a character inside the signature/MAC, away from the padding bits
			i := len(token) - 10
			replacement := "A"
			if token[i] == 'A' {
				replacement = "B"
			}
			tampered := token[:i] + replacement + token[i+1:]

			_, err = tc.svc.Verify(tampered)
			assert.ErrorIs(t, err, ErrInvalidSignature)

			_, err = tc.svc.Verify("not-a-token")
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestJWTService_WrongSecret(t *testing.T) {
	other, err := NewJWTService([]byte(strings.Repeat("x", 32)), "HS256", time.Minute)
	require.NoError(t, err)

	token, err := other.Issue("alice@example.com", time.Minute)
	require.NoError(t, err)

	_, err = newTestJWT(t).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	hs512, err := NewJWTService(testSecret, "HS512", time.Minute)
	require.NoError(t, err)
	token, err := hs512.Issue("alice@example.com", time.Minute)
	require.NoError(t, err)

	_, err = newTestJWT(t).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestJWT(t).Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestJWTService_MalformedClaims(t *testing.T) {
	svc := newTestJWT(t)

	sign := func(claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		require.NoError(t, err)
		return s
	}

	noSubject := sign(jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))})
	_, err := svc.Verify(noSubject)
	assert.ErrorIs(t, err, ErrMalformedClaim)

	noExpiry := sign(jwt.RegisteredClaims{Subject: "alice@example.com"})
	_, err = svc.Verify(noExpiry)
	assert.ErrorIs(t, err, ErrMalformedClaim)
}

func TestNewJWTService_Validation(t *testing.T) {
	_, err := NewJWTService(nil, "HS256", time.Minute)
	assert.Error(t, err)

	_, err = NewJWTService(testSecret, "RS256", time.Minute)
	assert.Error(t, err)

	_, err = NewJWTService(testSecret, "none", time.Minute)
	assert.Error(t, err)
}

func TestPasetoService_MalformedClaims(t *testing.T) {
	svc := newTestPaseto(t)
	key, err := paseto.V4SymmetricKeyFromBytes(testSecret)
	require.NoError(t, err)

	noSubject := paseto.NewToken()
	noSubject.SetExpiration(time.Now().Add(time.Minute))
	_, err = svc.Verify(noSubject.V4Encrypt(key, nil))
	assert.ErrorIs(t, err, ErrMalformedClaim)

	noExpiry := paseto.NewToken()
	noExpiry.SetSubject("alice@example.com")
	_, err = svc.Verify(noExpiry.V4Encrypt(key, nil))
	assert.ErrorIs(t, err, ErrMalformedClaim)
}

func TestNewPasetoService_KeyLength(t *testing.T) {
	_, err := NewPasetoService([]byte("short"), time.Minute)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)

	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPassword("correct horse", hash))
	assert.False(t, CheckPassword("wrong horse", hash))
	assert.False(t, CheckPassword("correct horse", "not-a-bcrypt-hash"))
	assert.False(t, CheckPassword("correct horse", ""))

	_, err = HashPassword(strings.Repeat("a", 73), 4)
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	// Out-of-range cost is clamped instead of failing
	_, err = HashPassword("correct horse", 1)
	assert.NoError(t, err)
}
