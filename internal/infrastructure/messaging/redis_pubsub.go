package messaging

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// GoRedisPubSub adapts a go-redis client to PubSubClient.
// Close releases the subscriptions it opened, not the client itself.
type GoRedisPubSub struct {
	client redis.UniversalClient

	mu   sync.Mutex
	subs []*redis.PubSub
}

var _ PubSubClient = (*GoRedisPubSub)(nil)

// NewGoRedisPubSub wraps client.
func NewGoRedisPubSub(client redis.UniversalClient) *GoRedisPubSub {
	return &GoRedisPubSub{client: client}
}

// Publish sends message to channel.
func (p *GoRedisPubSub) Publish(ctx context.Context, channel string, message string) error {
	return p.client.Publish(ctx, channel, message).Err()
}

// Subscribe waits for the subscription to be confirmed, then streams
// messages until ctx is done or the subscription is closed.
func (p *GoRedisPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan PubSubMessage, error) {
	ps := p.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	p.mu.Lock()
	p.subs = append(p.subs, ps)
	p.mu.Unlock()

	out := make(chan PubSubMessage)
	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- PubSubMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes every subscription opened through p.
func (p *GoRedisPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, ps := range p.subs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.subs = nil
	return firstErr
}
