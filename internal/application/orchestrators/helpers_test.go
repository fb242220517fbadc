package orchestrators

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"vortex/internal/adapters/live"
	"vortex/internal/adapters/storage/conversation"
	"vortex/internal/adapters/storage/message"
	"vortex/internal/adapters/storage/outbox"
	"vortex/internal/adapters/storage/profile"
	"vortex/internal/adapters/storage/storagetest"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// clock returns successive instants one second apart.
func clock() func() time.Time {
	var mu sync.Mutex
	t := baseTime
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := t
		t = t.Add(time.Second)
		return now
	}
}

// sequentialIDs returns id-1, id-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type stores struct {
	conversations *conversation.SQLiteStore
	messages      *message.SQLiteStore
	profiles      *profile.SQLiteStore
	outbox        *outbox.SQLiteStore
}

func openStores(t *testing.T) stores {
	t.Helper()
	db := storagetest.Open(t)
	return stores{
		conversations: conversation.NewSQLiteStore(db),
		messages:      message.NewSQLiteStore(db),
		profiles:      profile.NewSQLiteStore(db),
		outbox:        outbox.NewSQLiteStore(db),
	}
}

func (s stores) sendDeps(bus live.Bus) SendMessageDeps {
	return SendMessageDeps{
		Conversations: s.conversations,
		Profiles:      s.profiles,
		Outbox:        s.outbox,
		Bus:           bus,
		GenerateID:    sequentialIDs(),
		Now:           clock(),
	}
}

// subscribe collects events from topic until the test ends.
func subscribe(t *testing.T, bus live.Bus, topic string) <-chan live.Event {
	t.Helper()
	ch, cancel, err := bus.Subscribe(context.Background(), topic)
	if err != nil {
		t.Fatalf("Subscribe %s: %v", topic, err)
	}
	t.Cleanup(cancel)
	return ch
}

func expectEvent(t *testing.T, ch <-chan live.Event, eventType string) live.Event {
	t.Helper()
	select {
	case ev := <-ch:
		if ev.Type != eventType {
			t.Errorf("event type = %q, want %q", ev.Type, eventType)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("no %s event", eventType)
		return live.Event{}
	}
}

func expectNoEvent(t *testing.T, ch <-chan live.Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Errorf("unexpected event %+v", ev)
	default:
	}
}
