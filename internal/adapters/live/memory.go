package live

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus for single-instance deployments and tests.
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	ch   chan Event
	once sync.Once
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*memorySub]struct{})}
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (b *MemoryBus) Publish(_ context.Context, topic string, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for s := range b.subs[topic] {
		select {
		case s.ch <- event:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, ErrClosed
	}
	s := &memorySub{ch: make(chan Event, SubscriberBuffer)}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySub]struct{})
	}
	b.subs[topic][s] = struct{}{}

	stop := context.AfterFunc(ctx, func() { b.remove(topic, s) })
	cancel := func() {
		stop()
		b.remove(topic, s)
	}
	return s.ch, cancel, nil
}

func (b *MemoryBus) remove(topic string, s *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, topic)
		}
	}
	s.once.Do(func() { close(s.ch) })
}

// Subscribers reports how many subscriptions topic currently has.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// Close ends every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, set := range b.subs {
		for s := range set {
			s.once.Do(func() { close(s.ch) })
		}
		delete(b.subs, topic)
	}
	return nil
}
