// Package messaging carries domain events from committed commands to their
// subscribers. InMemoryEventBus serves one process; RedisEventBus adds
// fan-out to the other replicas over Redis Pub/Sub.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")
	ErrNilHandler     = errors.New("event handler is nil")
	ErrNilEvent       = errors.New("event is nil")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("event handler panicked")
)

// InMemoryEventBusConfig configures NewInMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers off the publisher's goroutine. Publish then
	// returns before they finish; Close waits for them.
	AsyncMode bool

	// WorkerPoolSize bounds concurrently running async handlers.
	WorkerPoolSize int

	Logger *logger.Logger
}

// DefaultInMemoryEventBusConfig is synchronous with a pool of 10.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{WorkerPoolSize: 10}
}

// BusStats are lifetime counters of a bus.
type BusStats struct {
	Published int64
	Runs      int64
	Failures  int64
}

// InMemoryEventBus dispatches events to handlers of this process.
// Handler errors and panics are logged and counted, never returned to the
// publisher: its transaction has already committed.
type InMemoryEventBus struct {
	log *logger.Logger

	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	wildcard []shared.EventHandler
	closed   bool

	// slots is nil in sync mode.
	slots   chan struct{}
	running sync.WaitGroup

	published, runs, failures atomic.Int64
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	b := &InMemoryEventBus{
		log:    log.With(logger.Component("eventbus")),
		byType: make(map[shared.EventType][]shared.EventHandler),
	}
	if cfg.AsyncMode {
		b.slots = make(chan struct{}, max(cfg.WorkerPoolSize, 1))
	}
	return b
}

func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, h shared.EventHandler) error {
	return b.register(func() { b.byType[eventType] = append(b.byType[eventType], h) }, h)
}

func (b *InMemoryEventBus) SubscribeAll(h shared.EventHandler) error {
	return b.register(func() { b.wildcard = append(b.wildcard, h) }, h)
}

func (b *InMemoryEventBus) register(add func(), h shared.EventHandler) error {
	if h == nil {
		return ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// Publish hands event to the handlers of its type, then to the wildcard
// handlers, in subscription order.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	targets, err := b.targets(event.EventType())
	if err != nil {
		return err
	}
	b.published.Add(1)

	for _, h := range targets {
		if b.slots == nil {
			b.run(event, h)
			continue
		}
		go b.runPooled(event, h)
	}
	return nil
}

// targets also reserves the async runs, under the same lock Close takes.
func (b *InMemoryEventBus) targets(t shared.EventType) ([]shared.EventHandler, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrEventBusClosed
	}
	out := make([]shared.EventHandler, 0, len(b.byType[t])+len(b.wildcard))
	out = append(out, b.byType[t]...)
	out = append(out, b.wildcard...)
	if b.slots != nil {
		b.running.Add(len(out))
	}
	return out, nil
}

func (b *InMemoryEventBus) runPooled(event shared.Event, h shared.EventHandler) {
	defer b.running.Done()
	b.slots <- struct{}{}
	defer func() { <-b.slots }()
	b.run(event, h)
}

func (b *InMemoryEventBus) run(event shared.Event, h shared.EventHandler) {
	b.runs.Add(1)
	if err := invoke(event, h); err != nil {
		b.failures.Add(1)
		b.log.Error("event handler failed",
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
			logger.Err(err),
		)
	}
}

func invoke(event shared.Event, h shared.EventHandler) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, v)
		}
	}()
	return h(event)
}

// Stats returns the counters so far.
func (b *InMemoryEventBus) Stats() BusStats {
	return BusStats{
		Published: b.published.Load(),
		Runs:      b.runs.Load(),
		Failures:  b.failures.Load(),
	}
}

// Close rejects further use and waits until every async handler queued so
// far has run.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.running.Wait()
	b.log.Debug("event bus closed", logger.Any("stats", b.Stats()))
	return nil
}
