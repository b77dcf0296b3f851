package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

func syncBus() *InMemoryEventBus {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.Logger = logger.Nop()
	return NewInMemoryEventBus(cfg)
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventContributionRejected, func(shared.Event) error {
		typed++
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		all++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewContributionRejectedEvent("c-1", "p-1", "a-1", "dup")))
	require.NoError(t, bus.Publish(shared.NewLeaderboardInvalidatedEvent("test")))

	// sync mode: counters are final as soon as Publish returns
	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)

	assert.Equal(t, BusStats{Published: 2, Runs: 3}, bus.Stats())
}

func TestInMemoryEventBus_HandlerErrorsAndPanicsAreContained(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var after int
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("bad handler") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		after++
		return nil
	}))

	err := bus.Publish(shared.NewLeaderboardInvalidatedEvent("test"))

	require.NoError(t, err)
	assert.Equal(t, 1, after)
	assert.Equal(t, int64(2), bus.Stats().Failures)
}

func TestInMemoryEventBus_PublishFromHandler(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var invalidated int
	require.NoError(t, bus.Subscribe(shared.EventContributionApproved, func(shared.Event) error {
		return bus.Publish(shared.NewLeaderboardInvalidatedEvent("approved"))
	}))
	require.NoError(t, bus.Subscribe(shared.EventLeaderboardInvalidated, func(shared.Event) error {
		invalidated++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.ContributionApprovedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventContributionApproved, "c-1"),
	}))
	assert.Equal(t, 1, invalidated)
}

func TestInMemoryEventBus_Async(t *testing.T) {
	cfg := InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: logger.Nop()}
	bus := NewInMemoryEventBus(cfg)

	var n atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		n.Add(1)
		return nil
	}))
	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewLeaderboardInvalidatedEvent("test")))
	}

	require.NoError(t, bus.Close())
	assert.Equal(t, int32(10), n.Load())
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewLeaderboardInvalidatedEvent("x")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

// fakePubSub loops published messages back to every subscriber.
type fakePubSub struct {
	mu        sync.Mutex
	subs      []chan PubSubMessage
	published []string
}

func (f *fakePubSub) Publish(_ context.Context, channel, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, message)
	for _, s := range f.subs {
		s <- PubSubMessage{Channel: channel, Payload: message}
	}
	return nil
}

func (f *fakePubSub) Subscribe(context.Context, ...string) (<-chan PubSubMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan PubSubMessage, 16)
	f.subs = append(f.subs, ch)
	return ch, nil
}

func (f *fakePubSub) Close() error { return nil }

func (f *fakePubSub) inject(t *testing.T, env envelope) {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		s <- PubSubMessage{Payload: string(data)}
	}
}

func TestRedisEventBus_SkipsOwnMessagesAndReplaysRemote(t *testing.T) {
	ps := &fakePubSub{}
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         ps,
		InstanceID:     "api-1",
		Logger:         logger.Nop(),
		LocalBusConfig: DefaultInMemoryEventBusConfig(),
	})
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan shared.Event, 4)
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		received <- e
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRankUpgradedEvent("p-1", "bronze", "silver", 520)))
	local := <-received
	assert.Equal(t, shared.EventRankUpgraded, local.EventType())
	require.Len(t, ps.published, 1)

	ps.inject(t, envelope{
		Origin:      "worker-1",
		Type:        shared.EventRecognitionAwarded,
		AggregateID: "r-1",
		OccurredAt:  time.Now().UTC(),
		Payload:     map[string]any{"partner_id": "p-9"},
	})

	select {
	case e := <-received:
		remote, ok := e.(*RemoteEvent)
		require.True(t, ok)
		assert.Equal(t, shared.EventRecognitionAwarded, remote.EventType())
		assert.Equal(t, "worker-1", remote.Origin())
		assert.Equal(t, "p-9", remote.Payload()["partner_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("remote event not delivered")
	}

	// the loopback of our own publish must not be delivered twice
	select {
	case e := <-received:
		t.Fatalf("unexpected event %s", e.EventType())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedisEventBus_DropsMalformedMessages(t *testing.T) {
	ps := &fakePubSub{}
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: ps, Logger: logger.Nop()})
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan shared.Event, 2)
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		received <- e
		return nil
	}))

	ps.mu.Lock()
	for _, s := range ps.subs {
		s <- PubSubMessage{Payload: "not json"}
		s <- PubSubMessage{Payload: `{"instance_id":"x"}`}
		s <- PubSubMessage{Err: errors.New("connection reset")}
	}
	ps.mu.Unlock()
	ps.inject(t, envelope{Origin: "other", Type: shared.EventLeaderboardInvalidated})

	select {
	case e := <-received:
		assert.Equal(t, shared.EventLeaderboardInvalidated, e.EventType())
	case <-time.After(2 * time.Second):
		t.Fatal("valid event after malformed ones not delivered")
	}
	assert.Equal(t, int64(1), bus.Stats().Published)
}

func TestRedisEventBus_RequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}
