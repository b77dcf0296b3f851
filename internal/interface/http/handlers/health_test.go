package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompositeHealthChecker(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name    string
		setup   func(c *CompositeHealthChecker)
		status  string
		healthy bool
		ready   bool
		message string
	}{
		{
			name:    "no checks",
			setup:   func(*CompositeHealthChecker) {},
			status:  StatusOK,
			healthy: true,
			ready:   true,
			message: "no dependencies registered",
		},
		{
			name: "all up",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("postgres", ok, true)
				c.AddCheck("redis", ok, false)
			},
			status:  StatusOK,
			healthy: true,
			ready:   true,
		},
		{
			name: "optional down",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("postgres", ok, true)
				c.AddCheck("redis", down, false)
				c.AddCheck("object_storage", down, false)
			},
			status:  StatusDegraded,
			ready:   true,
			message: "unavailable: object_storage, redis",
		},
		{
			name: "critical down",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("postgres", down, true)
				c.AddCheck("redis", ok, false)
			},
			status:  StatusDown,
			message: "unavailable: postgres (critical)",
		},
		{
			name: "re-registering replaces",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("postgres", down, true)
				c.AddCheck("postgres", ok, true)
			},
			status:  StatusOK,
			healthy: true,
			ready:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompositeHealthChecker("v-test")
			tt.setup(c)

			got := c.Check(context.Background())
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.healthy, got.Healthy)
			assert.Equal(t, tt.ready, got.Ready)
			assert.Equal(t, tt.message, got.Message)
			assert.Equal(t, "v-test", got.Version)
		})
	}
}

func TestCompositeHealthChecker_CheckTimeoutAndPanic(t *testing.T) {
	c := NewCompositeHealthChecker("")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, false)
	c.AddCheck("broken", func(context.Context) error { panic("nil pool") }, true)

	got := c.Check(context.Background())

	assert.False(t, got.Ready)
	assert.Equal(t, context.DeadlineExceeded.Error(), got.Checks["slow"].Message)
	assert.Equal(t, "check panicked: nil pool", got.Checks["broken"].Message)
	assert.True(t, got.Checks["broken"].Critical)
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	errDown := errors.New("down")
	check := PingCheck(pingerFunc(func(context.Context) error { return errDown }))
	assert.ErrorIs(t, check(context.Background()), errDown)
}
