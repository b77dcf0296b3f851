// Package retry re-runs idempotent reads with exponential backoff and jitter.
// Writes with side effects must not go through it: a retried approval or
// submission could apply twice.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryableError marks an error as worth another attempt when the policy
// has no RetryIf of its own.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable marks err as transient. Nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err carries the Retryable mark.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Policy describes how often and how fast to retry.
type Policy struct {
	// Attempts counts the first call too.
	Attempts int

	// BaseDelay is the wait before the second attempt; each further wait doubles.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter spreads each wait by ±Jitter of its length (0..1).
	Jitter float64

	// RetryIf decides which errors are transient. Nil means IsRetryable.
	RetryIf func(error) bool

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ReadPolicy is the policy used by query handlers.
func ReadPolicy(retryIf func(error) bool) Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 50 * time.Millisecond,
		MaxDelay:  time.Second,
		Jitter:    0.1,
		RetryIf:   retryIf,
	}
}

// Retrier runs operations under one Policy.
type Retrier struct {
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
}

// New returns a Retrier for p. Attempts below 1 are treated as 1.
func New(p Policy) *Retrier {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.RetryIf == nil {
		p.RetryIf = IsRetryable
	}
	return &Retrier{policy: p, sleep: sleepCtx}
}

// ReadRetrier returns a Retrier with ReadPolicy.
func ReadRetrier(retryIf func(error) bool) *Retrier {
	return New(ReadPolicy(retryIf))
}

// Do runs op until it succeeds, returns a non-transient error, or the
// attempts run out. The last error is returned with any Retryable mark
// removed; a cancelled context stops the loop between attempts.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return unmark(last)
			}
			return err
		}

		last = op(ctx)
		if last == nil {
			return nil
		}
		if attempt >= r.policy.Attempts || !r.policy.RetryIf(last) {
			return unmark(last)
		}

		wait := r.backoff(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, last, wait)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return unmark(last)
		}
	}
}

// backoff is BaseDelay·2^(attempt-1), capped and jittered.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := r.policy.BaseDelay << (attempt - 1)
	if r.policy.MaxDelay > 0 && (d > r.policy.MaxDelay || d <= 0) {
		d = r.policy.MaxDelay
	}
	if j := r.policy.Jitter; j > 0 {
		d += time.Duration(float64(d) * j * (rand.Float64()*2 - 1))
	}
	return max(d, 0)
}

func unmark(err error) error {
	if re, ok := err.(*RetryableError); ok {
		return re.Err
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs op once under a Retrier built from p.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	return New(p).Do(ctx, op)
}

// Value runs a value-returning op through r.
func Value[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
