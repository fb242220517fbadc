package live

import (
	"context"
	"errors"
)

// ErrClosed is returned when publishing to or subscribing on a closed bus.
var ErrClosed = errors.New("live: bus closed")

// SubscriberBuffer is the channel capacity handed to each subscriber.
// Events beyond it are dropped for that subscriber; a full buffer already
// guarantees a pending re-read.
const SubscriberBuffer = 64

// Bus fans events out to topic subscribers.
type Bus interface {
	// Publish delivers event to current subscribers of topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe registers for events on topic. The channel is closed once
	// cancel is called, ctx ends or the bus closes. cancel is idempotent.
	// POST: Events published after Subscribe returns are delivered
	Subscribe(ctx context.Context, topic string) (<-chan Event, func(), error)

	Close() error
}
