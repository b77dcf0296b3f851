package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPLimiter_FixedWindow(t *testing.T) {
	l := newIPLimiter(2, time.Minute)
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _ := l.take("10.0.0.1")
	require.True(t, ok)
	ok, _ = l.take("10.0.0.1")
	require.True(t, ok)

	now = now.Add(20 * time.Second)
	ok, wait := l.take("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, wait)

	// other clients have their own window
	ok, _ = l.take("10.0.0.2")
	assert.True(t, ok)

	now = now.Add(40 * time.Second)
	ok, _ = l.take("10.0.0.1")
	assert.True(t, ok)
}

func TestIPLimiter_SweepsExpiredClients(t *testing.T) {
	l := newIPLimiter(5, time.Minute)
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for _, ip := range []string{"a", "b", "c"} {
		l.take(ip)
	}
	now = now.Add(2 * time.Minute)
	l.take("d")

	assert.Len(t, l.clients, 1)
}

func TestIPLimiter_Middleware(t *testing.T) {
	l := newIPLimiter(1, time.Minute)
	h := l.middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ranks", nil)
		req.RemoteAddr = "192.0.2.7:51234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call().Code)

	rec := call()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x&all=yes&flag=TRUE", nil)

	assert.Equal(t, 25, queryInt(req, "limit", 10))
	assert.Equal(t, 10, queryInt(req, "bad", 10))
	assert.Equal(t, 10, queryInt(req, "missing", 10))
	assert.True(t, queryBool(req, "all"))
	assert.True(t, queryBool(req, "flag"))
	assert.False(t, queryBool(req, "missing"))
}
