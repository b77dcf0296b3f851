// Package auth issues and verifies access tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

var (
	// ErrInvalidToken is returned for malformed, forged or expired tokens.
	ErrInvalidToken = shared.NewDomainError("identity", "Authenticate", shared.ErrUnauthorized, "invalid or expired token")

	// ErrMissingToken is returned when no bearer token is present.
	ErrMissingToken = shared.NewDomainError("identity", "Authenticate", shared.ErrUnauthorized, "authentication required")
)

// TokenConfig configures token signing.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// Claims is the payload of an access token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

var _ port.TokenIssuer = (*TokenService)(nil)

// NewTokenService creates a token service. The secret must not be empty.
func NewTokenService(cfg TokenConfig, now func() time.Time) (*TokenService, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 bytes")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "partner-portal"
	}
	if now == nil {
		now = time.Now
	}
	return &TokenService{secret: []byte(cfg.Secret), ttl: cfg.TTL, issuer: cfg.Issuer, now: now}, nil
}

// Issue signs a token for p.
func (s *TokenService) Issue(p identity.Principal) (string, time.Time, error) {
	if !p.IsAuthenticated() {
		return "", time.Time{}, shared.Validation("identity", "IssueToken", "principal must have a user id and a valid role")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses a token and returns the principal it carries.
func (s *TokenService) Verify(token string) (identity.Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return identity.Principal{}, ErrInvalidToken
	}

	role, err := identity.ParseRole(claims.Role)
	if err != nil || claims.Subject == "" {
		return identity.Principal{}, ErrInvalidToken
	}
	return identity.Principal{UserID: claims.Subject, Role: role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
