package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher receives every delivered event in addition to the local sockets.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisMirror publishes events as envelopes on Redis pub/sub for downstream consumers.
type RedisMirror struct {
	client *redis.Client
}

func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

func (m *RedisMirror) Publish(ctx context.Context, event Event) error {
	// connection-scoped replies are private to one socket
	if IsPrivate(event) {
		return nil
	}
	data, err := Encode(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return m.client.Publish(ctx, MirrorChannel(event.SessionID), data).Err()
}

// Subscribe streams mirrored envelopes of the given channels until ctx is done.
func (m *RedisMirror) Subscribe(ctx context.Context, channels []string, handler func(channel string, env Envelope)) error {
	pubsub := m.client.Subscribe(ctx, channels...)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := Decode([]byte(msg.Payload))
			if err != nil {
				continue
			}
			handler(msg.Channel, env)
		}
	}
}

// IsPrivate reports whether event is addressed to single connections only.
func IsPrivate(event Event) bool {
	for _, a := range event.Audiences {
		if a.Kind != AudienceConnection {
			return false
		}
	}
	return len(event.Audiences) > 0
}
