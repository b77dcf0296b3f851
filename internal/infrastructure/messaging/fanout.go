package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

// DefaultEventsChannel is the Pub/Sub channel used when none is configured.
const DefaultEventsChannel = "partner-portal:events"

// PubSubClient is the part of Redis the fan-out bus uses.
type PubSubClient interface {
	Publish(ctx context.Context, channel string, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan PubSubMessage, error)
	Close() error
}

// PubSubMessage is one delivery from a subscription; Err reports a broken
// subscription instead of a payload.
type PubSubMessage struct {
	Channel string
	Payload string
	Err     error
}

// RedisEventBusConfig configures NewRedisEventBus.
type RedisEventBusConfig struct {
	Client PubSubClient

	ChannelName string

	// InstanceID tags outgoing messages so the loopback copy is skipped.
	// A random UUID when empty.
	InstanceID string

	LocalBusConfig InMemoryEventBusConfig

	// PublishTimeout bounds each PUBLISH; 2s when zero.
	PublishTimeout time.Duration

	Logger *logger.Logger
}

// RedisEventBus delivers every event to local handlers and mirrors it on a
// Pub/Sub channel. Messages from other replicas reach local handlers as
// *RemoteEvent.
type RedisEventBus struct {
	local   *InMemoryEventBus
	client  PubSubClient
	channel string
	self    string
	timeout time.Duration
	log     *logger.Logger

	stop   context.CancelFunc
	loop   sync.WaitGroup
	closed sync.Once
}

var _ shared.EventBus = (*RedisEventBus)(nil)

// NewRedisEventBus subscribes to the channel before returning, so no
// message published after construction is missed.
func NewRedisEventBus(cfg RedisEventBusConfig) (*RedisEventBus, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis event bus: pubsub client is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	if cfg.LocalBusConfig.Logger == nil {
		cfg.LocalBusConfig.Logger = log
	}

	b := &RedisEventBus{
		local:   NewInMemoryEventBus(cfg.LocalBusConfig),
		client:  cfg.Client,
		channel: orDefault(cfg.ChannelName, DefaultEventsChannel),
		self:    orDefault(cfg.InstanceID, uuid.NewString()),
		timeout: cfg.PublishTimeout,
		log:     log.With(logger.Component("eventbus_fanout")),
	}
	if b.timeout <= 0 {
		b.timeout = 2 * time.Second
	}

	ctx, stop := context.WithCancel(context.Background())
	inbox, err := b.client.Subscribe(ctx, b.channel)
	if err != nil {
		stop()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.stop = stop
	b.loop.Add(1)
	go b.receive(ctx, inbox)
	return b, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (b *RedisEventBus) Subscribe(eventType shared.EventType, h shared.EventHandler) error {
	return b.local.Subscribe(eventType, h)
}

func (b *RedisEventBus) SubscribeAll(h shared.EventHandler) error {
	return b.local.SubscribeAll(h)
}

// Publish delivers locally first. A failed PUBLISH is logged and leaves
// the other replicas to catch up through cache TTLs.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if err := b.local.Publish(event); err != nil {
		return err
	}

	msg, err := encodeEnvelope(b.self, event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, msg); err != nil {
		b.log.Warn("event not fanned out",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
	return nil
}

func (b *RedisEventBus) receive(ctx context.Context, inbox <-chan PubSubMessage) {
	defer b.loop.Done()
	for {
		var msg PubSubMessage
		var ok bool
		select {
		case <-ctx.Done():
			return
		case msg, ok = <-inbox:
			if !ok {
				return
			}
		}

		if msg.Err != nil {
			b.log.Error("subscription error", logger.Err(msg.Err))
			continue
		}
		event, err := decodeEnvelope(msg.Payload)
		if err != nil {
			b.log.Warn("dropping malformed event", logger.Err(err))
			continue
		}
		if event.env.Origin == b.self {
			continue
		}
		if err := b.local.Publish(event); err != nil && !errors.Is(err, ErrEventBusClosed) {
			b.log.Error("remote event not delivered", logger.Err(err))
		}
	}
}

// Stats reports the local bus counters.
func (b *RedisEventBus) Stats() BusStats { return b.local.Stats() }

// Close stops receiving, releases the subscription and drains local handlers.
func (b *RedisEventBus) Close() error {
	b.closed.Do(func() {
		b.stop()
		if err := b.client.Close(); err != nil {
			b.log.Warn("closing pubsub client", logger.Err(err))
		}
		b.loop.Wait()
		_ = b.local.Close()
	})
	return nil
}

// envelope is the JSON message on the Pub/Sub channel.
type envelope struct {
	Origin      string           `json:"instance_id"`
	Type        shared.EventType `json:"event_type"`
	AggregateID string           `json:"aggregate_id"`
	OccurredAt  time.Time        `json:"occurred_at"`
	Payload     map[string]any   `json:"payload"`
}

func encodeEnvelope(origin string, e shared.Event) (string, error) {
	data, err := json.Marshal(envelope{
		Origin:      origin,
		Type:        e.EventType(),
		AggregateID: e.AggregateID(),
		OccurredAt:  e.OccurredAt(),
		Payload:     e.Payload(),
	})
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", e.EventType(), err)
	}
	return string(data), nil
}

func decodeEnvelope(raw string) (*RemoteEvent, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, errors.New("envelope without event_type")
	}
	return &RemoteEvent{env: env}, nil
}

// RemoteEvent is an event published by another replica.
type RemoteEvent struct {
	env envelope
}

func (e *RemoteEvent) EventType() shared.EventType { return e.env.Type }
func (e *RemoteEvent) AggregateID() string         { return e.env.AggregateID }
func (e *RemoteEvent) OccurredAt() time.Time       { return e.env.OccurredAt }
func (e *RemoteEvent) Payload() map[string]any     { return e.env.Payload }

// Origin is the instance id of the publisher.
func (e *RemoteEvent) Origin() string { return e.env.Origin }
