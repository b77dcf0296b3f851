package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/internal/infrastructure/auth"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// TokenVerifier turns an access token into a principal.
type TokenVerifier interface {
	Verify(token string) (identity.Principal, error)
}

// ErrorWriter writes err as an HTTP error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticator resolves the bearer token of each request.
type Authenticator struct {
	tokens   TokenVerifier
	writeErr ErrorWriter
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(tokens TokenVerifier, writeErr ErrorWriter) *Authenticator {
	return &Authenticator{tokens: tokens, writeErr: writeErr}
}

// RequireAuth rejects requests without a valid token with 401 and stores the
// principal in the context otherwise.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		p, err := a.tokens.Verify(token)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), p)))
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HEADERS
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeaders are set on every API response. The API serves JSON only,
// so nothing may be framed or loaded from it.
var SecurityHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "no-referrer",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
}

// PublicCacheMiddleware lets shared caches keep GET responses of public
// boards for maxAge. Other methods are never cached.
func PublicCacheMiddleware(maxAge time.Duration) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(max(0, int(maxAge.Seconds())))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				w.Header().Set("Cache-Control", value)
			} else {
				w.Header().Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BODY LIMIT
// ══════════════════════════════════════════════════════════════════════════════

// ErrBodyTooLarge is passed to the ErrorWriter when a declared
// Content-Length is over the limit.
var ErrBodyTooLarge = shared.NewDomainError("http", "ReadBody", shared.ErrValueOutOfRange, "request body too large")

// BodyLimit rejects oversized requests up front and caps the body of the
// rest, so a lying Content-Length still stops at maxBytes.
func BodyLimit(maxBytes int64, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeErr(w, r, ErrBodyTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
