package realtime

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	applog "food-share-server/logger"
)

// RedisBridge publishes events over Redis Pub/Sub and relays the channel
// into the local hub.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
}

func NewRedisBridge(rdb *redis.Client, channel string, hub *Hub) *RedisBridge {
	return &RedisBridge{rdb: rdb, channel: channel, hub: hub}
}

func (b *RedisBridge) Publish(ctx context.Context, ev Event) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish on %s: %w", b.channel, err)
	}
	return nil
}

// Run blocks until ctx is cancelled or the subscription fails.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	applog.Log.Infof("📡 Subscribed to notification events on redis channel %s", b.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis subscription on %s closed", b.channel)
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				applog.Log.WithError(err).Warn("❌ Dropping malformed notification event")
				continue
			}
			b.hub.Deliver(ev)
		}
	}
}
