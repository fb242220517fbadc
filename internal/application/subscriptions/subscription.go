// Package subscriptions pushes full state snapshots to callers whenever the
// state behind a live topic changes.
package subscriptions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vortex/internal/adapters/http/perf"
	"vortex/internal/adapters/live"
)

// Subscription is a running watcher. The zero value is not usable.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe stops the watcher. It never blocks, may be called more than
// once and is safe to call from inside the callback. A callback already
// running finishes; none runs after Done is closed.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Done is closed when the watcher has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// watch runs load once, then again after every event on topic, handing each
// result to callback from a single goroutine. Bursts of events collapse
// into one reload.
func watch[T any](ctx context.Context, bus live.Bus, topic, name string, collector *perf.Collector,
	load func(context.Context) (T, error), callback func(T)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	events, unsubscribe, err := bus.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return nil, err
	}
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer unsubscribe()
		slog.Debug("subscription_event", "event", "started", "name", name, "topic", topic)

		emit := func() {
			start := time.Now()
			v, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				slog.Warn("subscription_event", "event", "load_failed", "name", name, "topic", topic, "error", err)
				return
			}
			callback(v)
			collector.Record(perf.Sample{Kind: perf.KindPush, Name: name, DurationMs: perf.Since(start), At: start})
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("subscription_event", "event", "stopped", "name", name, "topic", topic)
				return
			case _, ok := <-events:
				if !ok {
					slog.Debug("subscription_event", "event", "bus_closed", "name", name, "topic", topic)
					return
				}
				drain(events)
				emit()
			}
		}
	}()
	return sub, nil
}

// drain discards events already queued; the next reload covers them.
func drain(events <-chan live.Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
