// Package circuitbreaker guards calls to optional or remote dependencies
// (object storage, the leaderboard cache). After a run of failures the
// breaker opens and rejects calls immediately; after a cool-down one trial call
// is let through and its outcome decides whether the breaker closes again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrCircuitOpen is returned without calling the guarded function.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned while the half-open trial slots are taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// StateChangeFunc is notified on every transition. It runs under the
// breaker lock and must not call back into the breaker.
type StateChangeFunc func(name string, from, to State)

// Settings tune a breaker. Zero fields take the defaults of Defaults.
type Settings struct {
	Name string

	// Failures is the number of consecutive failures that opens the breaker.
	Failures int

	// Successes is the number of consecutive half-open successes that closes it.
	Successes int

	// CoolDown is how long the breaker stays open before probing.
	CoolDown time.Duration

	// Trials is the number of concurrent calls admitted while half-open.
	Trials int

	// IsFailure filters which errors count. Nil counts every non-nil error.
	IsFailure func(error) bool

	OnStateChange StateChangeFunc

	// Now is the clock; tests replace it to move past the cool-down.
	Now func() time.Time
}

// Defaults returns Settings for a remote dependency.
func Defaults(name string) Settings {
	return Settings{
		Name:      name,
		Failures:  5,
		Successes: 2,
		CoolDown:  30 * time.Second,
		Trials:    1,
		Now:       time.Now,
	}
}

func (s Settings) withDefaults() Settings {
	d := Defaults(s.Name)
	if s.Failures <= 0 {
		s.Failures = d.Failures
	}
	if s.Successes <= 0 {
		s.Successes = d.Successes
	}
	if s.CoolDown <= 0 {
		s.CoolDown = d.CoolDown
	}
	if s.Trials <= 0 {
		s.Trials = d.Trials
	}
	if s.Now == nil {
		s.Now = d.Now
	}
	return s
}

// Stats are lifetime totals, exposed for logs and tests.
type Stats struct {
	Calls     int
	Failures  int
	Successes int
	Rejected  int
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	cfg Settings

	mu       sync.Mutex
	state    State
	openedAt time.Time
	failRun  int
	okRun    int
	inFlight int
	stats    Stats
}

// New builds a breaker from s.
func New(s Settings) *CircuitBreaker {
	return &CircuitBreaker{cfg: s.withDefaults()}
}

// Execute calls fn unless the breaker rejects it, then records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.record(trial, err)
	return err
}

func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.CoolDown {
		cb.transition(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		cb.stats.Rejected++
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.cfg.Trials {
			cb.stats.Rejected++
			return false, ErrTooManyRequests
		}
		cb.inFlight++
		return true, nil
	}
	return false, nil
}

// record releases a trial slot whatever the outcome, so a cancelled trial
// cannot leave the breaker stuck half-open.
func (cb *CircuitBreaker) record(trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Calls++
	if trial && cb.inFlight > 0 {
		cb.inFlight--
	}

	failed := err != nil
	if failed && cb.cfg.IsFailure != nil {
		failed = cb.cfg.IsFailure(err)
	}

	if !failed {
		cb.stats.Successes++
		cb.failRun = 0
		cb.okRun++
		if cb.state == StateHalfOpen && cb.okRun >= cb.cfg.Successes {
			cb.transition(StateClosed)
		}
		return
	}

	cb.stats.Failures++
	cb.okRun = 0
	cb.failRun++
	switch {
	case cb.state == StateHalfOpen:
		cb.trip()
	case cb.state == StateClosed && cb.failRun >= cb.cfg.Failures:
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.cfg.Now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.failRun, cb.okRun, cb.inFlight = 0, 0, 0
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// State reports the current position. An open breaker whose cool-down has
// elapsed still reads as open until the next call tries it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) IsOpen() bool { return cb.State() == StateOpen }

func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// StorageBreaker guards the proof object store. isFailure keeps caller
// errors (missing object, cancelled request) from opening it.
func StorageBreaker(isFailure func(error) bool, onChange StateChangeFunc) *CircuitBreaker {
	s := Defaults("object-storage")
	s.IsFailure = isFailure
	s.OnStateChange = onChange
	return New(s)
}

// CacheBreaker guards the leaderboard cache. Misses fall back to Postgres,
// so it trips early and tries again soon.
func CacheBreaker(onChange StateChangeFunc) *CircuitBreaker {
	s := Defaults("leaderboard-cache")
	s.Failures = 3
	s.Successes = 1
	s.CoolDown = 10 * time.Second
	s.OnStateChange = onChange
	return New(s)
}
