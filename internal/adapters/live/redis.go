package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus on Redis pub/sub so every server instance sees
// events published by any other.
type RedisBus struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus connects to the Redis server at url. Channels are named
// prefix + topic.
func NewRedisBus(url, prefix string) (*RedisBus, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisBusFromClient(client, prefix), nil
}

// NewRedisBusFromClient wraps an existing client. Close closes it.
func NewRedisBusFromClient(client *redis.Client, prefix string) *RedisBus {
	return &RedisBus{client: client, prefix: prefix, subs: make(map[*redis.PubSub]struct{})}
}

// Client returns the underlying client for sharing with other adapters.
func (r *RedisBus) Client() *redis.Client {
	return r.client
}

// Publish publishes event as JSON on the topic's channel.
func (r *RedisBus) Publish(ctx context.Context, topic string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, r.prefix+topic, data).Err()
}

// Subscribe waits for Redis to confirm the subscription before returning.
func (r *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, nil, ErrClosed
	}
	r.mu.Unlock()

	ps := r.client.Subscribe(ctx, r.prefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = ps.Close()
		return nil, nil, ErrClosed
	}
	r.subs[ps] = struct{}{}
	r.mu.Unlock()

	subCtx, stop := context.WithCancel(ctx)
	out := make(chan Event, SubscriberBuffer)
	go r.forward(subCtx, topic, ps, out)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			r.release(ps)
		})
	}
	return out, cancel, nil
}

func (r *RedisBus) forward(ctx context.Context, topic string, ps *redis.PubSub, out chan<- Event) {
	defer close(out)
	defer r.release(ps)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Warn("live_event", "event", "decode_failed", "topic", topic, "error", err)
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			default:
				// Subscriber is behind; it already has a re-read pending.
			}
		}
	}
}

func (r *RedisBus) release(ps *redis.PubSub) {
	r.mu.Lock()
	_, ok := r.subs[ps]
	delete(r.subs, ps)
	r.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

// Close closes all subscriptions and the Redis client.
func (r *RedisBus) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := r.subs
	r.subs = make(map[*redis.PubSub]struct{})
	r.mu.Unlock()

	for ps := range subs {
		_ = ps.Close()
	}
	return r.client.Close()
}
