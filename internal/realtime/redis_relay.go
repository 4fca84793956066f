package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"shopops/backend/internal/domain"
)

const DefaultChannel = "shopops:changes"

// RedisRelay shares change events between server instances over a Redis
// pub/sub channel. Events published here come back through Run, which hands
// them to the local hub, so every instance (including the writer) delivers
// each event exactly once. While Run is not subscribed, Publish delivers to
// the local hub directly so this instance's live feeds keep working.
type RedisRelay struct {
	client     *redis.Client
	channel    string
	hub        *Hub
	subscribed atomic.Bool
}

func NewRedisRelay(addr string, password string, db int, channel string, hub *Hub) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRelay{client: client, channel: channel, hub: hub}
}

func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}

func (r *RedisRelay) Publish(ctx context.Context, event domain.ChangeEvent) error {
	if !r.subscribed.Load() {
		r.hub.deliver(event)
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func (r *RedisRelay) Subscribe(filter Filter) *Subscription {
	return r.hub.Subscribe(filter)
}

// Run forwards channel messages to the local hub until ctx is cancelled.
// A dropped Redis connection is retried by the client library.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.subscribed.Store(true)
	defer r.subscribed.Store(false)
	log.Printf("[realtime] relaying change events on redis channel %q", r.channel)

	messages := pubsub.Channel(redis.WithChannelHealthCheckInterval(30 * time.Second))
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("[realtime] WARN: discarding malformed change event: %v", err)
				continue
			}
			r.hub.deliver(event)
		}
	}
}
