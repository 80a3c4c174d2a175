package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus implements Bus on a Redis Pub/Sub channel
type RedisBus struct {
	client  *redis.Client
	channel string

	mu       sync.Mutex
	pubsubs  []*redis.PubSub
	isClosed bool
}

// NewRedisBus creates a bus publishing on channel
func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	return &RedisBus{client: client, channel: channel}
}

// Publish publishes an envelope to every instance, this one included
func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}
	return nil
}

// Subscribe streams the envelopes published on the channel until ctx is done
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	b.mu.Lock()
	if b.isClosed {
		b.mu.Unlock()
		return nil, fmt.Errorf("redis bus closed")
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	b.pubsubs = append(b.pubsubs, pubsub)
	b.mu.Unlock()

	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	log.Info().Str("channel", b.channel).Msg("subscribed to realtime channel")

	out := make(chan Envelope, 256)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Warn().Err(err).Str("channel", b.channel).Msg("failed to unmarshal envelope")
					continue
				}
				select {
				case out <- env:
				default:
					log.Warn().Str("channel", b.channel).Str("type", env.Message.Type).Msg("realtime subscriber full, skipping envelope")
				}
			}
		}
	}()
	return out, nil
}

// Close closes every subscription of the bus
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.isClosed = true
	var errs []error
	for _, ps := range b.pubsubs {
		if err := ps.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	b.pubsubs = nil
	if len(errs) > 0 {
		return fmt.Errorf("errors closing redis bus: %v", errs)
	}
	return nil
}
