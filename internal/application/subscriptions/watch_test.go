package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"vortex/internal/adapters/http/perf"
	"vortex/internal/adapters/live"
	convstore "vortex/internal/adapters/storage/conversation"
	msgstore "vortex/internal/adapters/storage/message"
	profilestore "vortex/internal/adapters/storage/profile"
	"vortex/internal/adapters/storage/storagetest"
	"vortex/internal/application/orchestrators"
	"vortex/internal/application/projections"
	"vortex/internal/domain/conversation"
	"vortex/internal/domain/message"
	"vortex/internal/domain/profile"
)

type env struct {
	deps     Deps
	bus      *live.MemoryBus
	convs    *convstore.SQLiteStore
	messages *msgstore.SQLiteStore
	profiles *profilestore.SQLiteStore
	mu       sync.Mutex
	now      time.Time
	n        int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := storagetest.Open(t)
	bus := live.NewMemoryBus()
	t.Cleanup(func() { bus.Close() })
	e := &env{
		bus:      bus,
		convs:    convstore.NewSQLiteStore(db),
		messages: msgstore.NewSQLiteStore(db),
		profiles: profilestore.NewSQLiteStore(db),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	e.deps = Deps{Bus: bus, Conversations: e.convs, Messages: e.messages, Profiles: e.profiles, Collector: perf.NewCollector(50)}
	return e
}

func (e *env) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(time.Second)
	return e.now
}

func (e *env) id() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.n++
	return fmt.Sprintf("id-%d", e.n)
}

func (e *env) send(t *testing.T, from, to, text string) {
	t.Helper()
	_, err := orchestrators.ExecuteSendMessage(context.Background(),
		orchestrators.SendMessageInput{SenderID: from, ReceiverID: to, Text: text},
		orchestrators.SendMessageDeps{Conversations: e.convs, Bus: e.bus, GenerateID: e.id, Now: e.clock})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
}

func next[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
		var zero T
		return zero
	}
}

func waitDone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
}

// nextMatching skips emissions until pred holds; coalescing may merge or split bursts.
func nextMatching[T any](t *testing.T, ch <-chan T, pred func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-ch:
			if pred(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching emission")
			var zero T
			return zero
		}
	}
}

func TestWatchMessages_InitialAndUpdates(t *testing.T) {
	e := newEnv(t)
	e.send(t, "u1", "u2", "first")

	got := make(chan []message.Message, 16)
	sub, err := WatchMessages(context.Background(), "u1_u2", e.deps, func(ms []message.Message) { got <- ms })
	if err != nil {
		t.Fatalf("WatchMessages: %v", err)
	}
	defer sub.Unsubscribe()

	initial := next(t, got)
	if len(initial) != 1 || initial[0].Text != "first" {
		t.Fatalf("initial = %+v", initial)
	}

	e.send(t, "u2", "u1", "second")
	update := nextMatching(t, got, func(ms []message.Message) bool { return len(ms) == 2 })
	if update[0].Text != "first" || update[1].Text != "second" {
		t.Errorf("update = %+v", update)
	}
	for i := 1; i < len(update); i++ {
		if update[i].CreatedAt.Before(update[i-1].CreatedAt) {
			t.Error("emission not ordered by CreatedAt")
		}
	}
}

func TestWatchMessages_EmptyConversationEmitsEmptyList(t *testing.T) {
	e := newEnv(t)
	got := make(chan []message.Message, 4)
	sub, err := WatchMessages(context.Background(), "u1_u2", e.deps, func(ms []message.Message) { got <- ms })
	if err != nil {
		t.Fatalf("WatchMessages: %v", err)
	}
	defer sub.Unsubscribe()
	if initial := next(t, got); len(initial) != 0 {
		t.Errorf("initial = %+v, want empty", initial)
	}

	e.send(t, "u1", "u2", "hello")
	nextMatching(t, got, func(ms []message.Message) bool { return len(ms) == 1 })
}

func TestWatchMessages_UnsubscribeStopsCallbacks(t *testing.T) {
	e := newEnv(t)
	var mu sync.Mutex
	calls := 0
	first := make(chan struct{}, 1)
	sub, err := WatchMessages(context.Background(), "u1_u2", e.deps, func([]message.Message) {
		mu.Lock()
		calls++
		mu.Unlock()
		select {
		case first <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("WatchMessages: %v", err)
	}
	next(t, first)

	sub.Unsubscribe()
	sub.Unsubscribe()
	waitDone(t, sub)
	if n := e.bus.Subscribers(live.ConversationTopic("u1_u2")); n != 0 {
		t.Errorf("bus subscribers = %d, want 0", n)
	}

	mu.Lock()
	before := calls
	mu.Unlock()
	e.send(t, "u1", "u2", "after")
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != before {
		t.Errorf("callback ran after Unsubscribe (%d -> %d)", before, calls)
	}
}

func TestWatchMessages_UnsubscribeFromCallback(t *testing.T) {
	e := newEnv(t)
	var sub *Subscription
	ready := make(chan struct{})
	sub, err := WatchMessages(context.Background(), "u1_u2", e.deps, func([]message.Message) {
		<-ready
		sub.Unsubscribe()
	})
	if err != nil {
		t.Fatalf("WatchMessages: %v", err)
	}
	close(ready)
	waitDone(t, sub)
}

func TestWatchMessages_ContextAndBusEndSubscription(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := WatchMessages(ctx, "u1_u2", e.deps, func([]message.Message) {})
	if err != nil {
		t.Fatalf("WatchMessages: %v", err)
	}
	cancel()
	waitDone(t, sub)

	sub2, err := WatchMessages(context.Background(), "u1_u2", e.deps, func([]message.Message) {})
	if err != nil {
		t.Fatalf("WatchMessages: %v", err)
	}
	e.bus.Close()
	waitDone(t, sub2)

	if _, err := WatchMessages(context.Background(), "u1_u2", e.deps, func([]message.Message) {}); !errors.Is(err, live.ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestWatchMessages_EmptyID(t *testing.T) {
	e := newEnv(t)
	if _, err := WatchMessages(context.Background(), "", e.deps, func([]message.Message) {}); !errors.Is(err, message.ErrEmptyConversationID) {
		t.Errorf("err = %v", err)
	}
}

func TestWatchUserConversations_ReemitsOnSendAndPresence(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.profiles.Save(ctx, profile.Profile{UserID: "u2", DisplayName: "Bob"})
	e.send(t, "u2", "u1", "hi")

	got := make(chan []projections.ConversationSummary, 16)
	sub, err := WatchUserConversations(ctx, "u1", e.deps, func(rows []projections.ConversationSummary) { got <- rows })
	if err != nil {
		t.Fatalf("WatchUserConversations: %v", err)
	}
	defer sub.Unsubscribe()

	initial := next(t, got)
	if len(initial) != 1 || initial[0].Other.DisplayName != "Bob" || initial[0].Unread != 1 {
		t.Fatalf("initial = %+v", initial)
	}

	e.send(t, "u3", "u1", "yo")
	rows := nextMatching(t, got, func(rows []projections.ConversationSummary) bool { return len(rows) == 2 })
	if rows[0].Conversation.ID != "u1_u3" {
		t.Errorf("most recent first: got %s", rows[0].Conversation.ID)
	}

	err = orchestrators.ExecuteSetPresence(ctx, orchestrators.SetPresenceInput{UserID: "u2", Online: true},
		orchestrators.ProfileDeps{Profiles: e.profiles, Conversations: e.convs, Bus: e.bus, Now: e.clock})
	if err != nil {
		t.Fatalf("ExecuteSetPresence: %v", err)
	}
	nextMatching(t, got, func(rows []projections.ConversationSummary) bool {
		for _, r := range rows {
			if r.Other.UserID == "u2" && r.Other.Online {
				return true
			}
		}
		return false
	})
}

func TestAuthorize(t *testing.T) {
	e := newEnv(t)
	e.send(t, "u1", "u2", "hi")
	if err := Authorize(context.Background(), e.deps, "u1_u2", "u3"); !errors.Is(err, conversation.ErrNotParticipant) {
		t.Errorf("err = %v, want ErrNotParticipant", err)
	}
	if err := Authorize(context.Background(), e.deps, "u1_u2", "u2"); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}
