package http

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ipLimiter counts requests per client IP in fixed windows. A client that
// used up its window gets 429 with Retry-After set to the rest of it.
type ipLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*bucket
	sweptAt time.Time
}

type bucket struct {
	start time.Time
	n     int
}

func newIPLimiter(limit int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*bucket),
	}
}

// take reports whether ip may proceed and, if not, how long until its
// window resets.
func (l *ipLimiter) take(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b := l.clients[ip]
	if b == nil || now.Sub(b.start) >= l.window {
		l.clients[ip] = &bucket{start: now, n: 1}
		return true, 0
	}
	if b.n >= l.limit {
		return false, b.start.Add(l.window).Sub(now)
	}
	b.n++
	return true, 0
}

// sweep drops expired buckets at most once per window.
func (l *ipLimiter) sweep(now time.Time) {
	if now.Sub(l.sweptAt) < l.window {
		return
	}
	for ip, b := range l.clients {
		if now.Sub(b.start) >= l.window {
			delete(l.clients, ip)
		}
	}
	l.sweptAt = now
}

// middleware expects chi's RealIP to have rewritten RemoteAddr.
func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ok, wait := l.take(ip)
		if !ok {
			secs := int(wait.Round(time.Second) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			writeJSONError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
