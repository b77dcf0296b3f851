package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// HealthChecker reports the state of the process and its dependencies.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc checks one dependency; a non-nil error marks it down.
type HealthCheckFunc func(ctx context.Context) error

// Overall health verdicts.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded" // a non-critical dependency is down
	StatusDown     = "down"     // a critical dependency is down
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"`

	// Healthy is false when any check failed.
	Healthy bool `json:"healthy"`

	// Ready is false when a critical check failed.
	Ready bool `json:"ready"`

	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type registeredCheck struct {
	name     string
	check    HealthCheckFunc
	critical bool
}

type checkOutcome struct {
	name string
	CheckResult
}

// CompositeHealthChecker runs every registered check concurrently, each
// under its own timeout.
type CompositeHealthChecker struct {
	mu         sync.RWMutex
	registered []registeredCheck
	started    time.Time
	version    string
	timeout    time.Duration
}

// NewCompositeHealthChecker creates a checker with a 3s per-check timeout.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		started: time.Now(),
		version: version,
		timeout: 3 * time.Second,
	}
}

// SetTimeout sets the per-check timeout.
func (c *CompositeHealthChecker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	c.timeout = timeout
	c.mu.Unlock()
}

// AddCheck registers a check. Registering a name twice replaces the earlier check.
// A failing critical check makes the service not ready.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := registeredCheck{name: name, check: check, critical: critical}
	if i := slices.IndexFunc(c.registered, func(x registeredCheck) bool { return x.name == name }); i >= 0 {
		c.registered[i] = p
		return
	}
	c.registered = append(c.registered, p)
}

// Check runs all checks and folds them into one status.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	registered := slices.Clone(c.registered)
	timeout := c.timeout
	c.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusOK,
		Healthy:   true,
		Ready:     true,
		Checks:    make(map[string]CheckResult, len(registered)),
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	if len(registered) == 0 {
		status.Message = "no dependencies registered"
		return status
	}

	results := make(chan checkOutcome, len(registered))
	for _, p := range registered {
		go func() {
			results <- runCheck(ctx, p, timeout)
		}()
	}

	var down []string
	for range registered {
		r := <-results
		status.Checks[r.name] = r.CheckResult
		if r.Healthy {
			continue
		}
		status.Healthy = false
		if r.Critical {
			status.Ready = false
			down = append(down, r.name+" (critical)")
		} else {
			down = append(down, r.name)
		}
	}

	if status.Healthy {
		return status
	}
	slices.Sort(down)
	status.Status = StatusDegraded
	if !status.Ready {
		status.Status = StatusDown
	}
	status.Message = "unavailable: " + strings.Join(down, ", ")
	return status
}

func runCheck(ctx context.Context, p registeredCheck, timeout time.Duration) (res checkOutcome) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res = checkOutcome{name: p.name, CheckResult: CheckResult{Critical: p.critical}}
	defer func() {
		if v := recover(); v != nil {
			res.Healthy = false
			res.Message = fmt.Sprintf("check panicked: %v", v)
		}
		res.Duration = time.Since(start).Round(time.Millisecond).String()
	}()

	if err := p.check(ctx); err != nil {
		res.Message = err.Error()
		return res
	}
	res.Healthy = true
	return res
}

// Pinger is implemented by the database connection, the cache and the
// proof store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger to a HealthCheckFunc.
func PingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}
