package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestTokenService_RoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	svc, err := NewTokenService(TokenConfig{Secret: testSecret, TTL: time.Hour}, fixedClock(now))
	require.NoError(t, err)

	token, expiresAt, err := svc.Issue(identity.Principal{UserID: "u-1", Role: identity.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	p, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, identity.Principal{UserID: "u-1", Role: identity.RoleAdmin}, p)
}

func TestTokenService_Rejects(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	svc, err := NewTokenService(TokenConfig{Secret: testSecret, TTL: time.Hour}, fixedClock(now))
	require.NoError(t, err)
	token, _, err := svc.Issue(identity.Principal{UserID: "u-1", Role: identity.RolePartner})
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later, err := NewTokenService(TokenConfig{Secret: testSecret}, fixedClock(now.Add(2*time.Hour)))
		require.NoError(t, err)
		_, err = later.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.True(t, shared.IsUnauthorized(err))
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewTokenService(TokenConfig{Secret: "ffffffffffffffffffffffffffffffff"}, fixedClock(now))
		require.NoError(t, err)
		_, err = other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			Role:             "super_admin",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "partner-portal", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		})
		s, err := forged.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Verify(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown role", func(t *testing.T) {
		bad := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			Role:             "root",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "partner-portal", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		})
		s, err := bad.SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = svc.Verify(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenService_Config(t *testing.T) {
	_, err := NewTokenService(TokenConfig{Secret: "short"}, nil)
	assert.Error(t, err)

	svc, err := NewTokenService(TokenConfig{Secret: testSecret}, nil)
	require.NoError(t, err)
	_, _, err = svc.Issue(identity.Principal{})
	assert.True(t, shared.IsValidation(err))
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = BearerToken("bearer   xyz ")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Bearer", "Bearer ", "Basic abc", "abc"} {
		_, err := BearerToken(h)
		assert.ErrorIs(t, err, ErrMissingToken, h)
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "wrong horse"), shared.ErrInvalidCredentials)
	assert.Error(t, h.Compare("not-a-hash", "correct horse"))

	assert.Equal(t, DefaultCost, NewBcryptHasher(99).cost)
}
