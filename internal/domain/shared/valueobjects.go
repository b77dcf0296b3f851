package shared

import (
	"strings"
	"time"
)

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Clock returns the current time. Handlers take one so tests can pin "now".
type Clock func() time.Time

// SystemClock is the production Clock, always UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// TimeRange is the half-open window [From, To). A zero bound is open on
// that side; the all_time leaderboard has no From.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (t TimeRange) IsUnbounded() bool { return t.From.IsZero() }

func (t TimeRange) Contains(at time.Time) bool {
	afterFrom := t.From.IsZero() || !at.Before(t.From)
	beforeTo := t.To.IsZero() || at.Before(t.To)
	return afterFrom && beforeTo
}

// Page sizes for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is a clamped limit/offset pair.
type Pagination struct {
	Limit  int
	Offset int
}

// NewPagination maps a non-positive limit to DefaultPageSize, caps it at
// MaxPageSize and floors offset at zero.
func NewPagination(limit, offset int) Pagination {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return Pagination{Limit: limit, Offset: max(offset, 0)}
}
