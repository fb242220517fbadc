package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"vortex/internal/adapters/storage/storagetest"
	domain "vortex/internal/domain/conversation"
	"vortex/internal/domain/message"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMessage(id, from, to, text string, at time.Time) message.Message {
	return message.Message{
		ID:             id,
		Text:           text,
		SenderID:       from,
		ReceiverID:     to,
		ConversationID: domain.ID(from, to),
		CreatedAt:      at,
	}
}

func TestRecordMessage_CreatesConversationOnce(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	conv, created, err := store.RecordMessage(ctx, newMessage("m1", "u1", "u2", "hello", base))
	if err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	if !created {
		t.Error("first send should create the conversation")
	}
	if conv.ID != "u1_u2" {
		t.Errorf("ID = %q, want u1_u2", conv.ID)
	}
	if conv.LastMessage != "hello" || conv.LastMessageSenderID != "u1" {
		t.Errorf("summary = %q/%q, want hello/u1", conv.LastMessage, conv.LastMessageSenderID)
	}
	if !conv.LastMessageTime.Equal(base) {
		t.Errorf("LastMessageTime = %v, want %v", conv.LastMessageTime, base)
	}

	conv, created, err = store.RecordMessage(ctx, newMessage("m2", "u2", "u1", "hi back", base.Add(time.Second)))
	if err != nil {
		t.Fatalf("second RecordMessage: %v", err)
	}
	if created {
		t.Error("reply should not create a second conversation")
	}
	if conv.LastMessage != "hi back" || conv.LastMessageSenderID != "u2" {
		t.Errorf("summary = %q/%q, want hi back/u2", conv.LastMessage, conv.LastMessageSenderID)
	}

	var convCount, msgCount int
	db.QueryRow(`SELECT COUNT(*) FROM conversation`).Scan(&convCount)
	db.QueryRow(`SELECT COUNT(*) FROM message WHERE conversation_id = 'u1_u2'`).Scan(&msgCount)
	if convCount != 1 || msgCount != 2 {
		t.Errorf("conversations=%d messages=%d, want 1 and 2", convCount, msgCount)
	}
}

func TestRecordMessage_OlderMessageKeepsSummary(t *testing.T) {
	store := NewSQLiteStore(storagetest.Open(t))
	ctx := context.Background()

	if _, _, err := store.RecordMessage(ctx, newMessage("m2", "u1", "u2", "newer", base.Add(time.Minute))); err != nil {
		t.Fatalf("RecordMessage newer: %v", err)
	}
	conv, _, err := store.RecordMessage(ctx, newMessage("m1", "u2", "u1", "older", base))
	if err != nil {
		t.Fatalf("RecordMessage older: %v", err)
	}
	if conv.LastMessage != "newer" {
		t.Errorf("LastMessage = %q, want newer", conv.LastMessage)
	}
	if !conv.UpdatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("UpdatedAt = %v, want %v", conv.UpdatedAt, base.Add(time.Minute))
	}
}

func TestRecordMessage_RollsBackOnFailure(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	if _, _, err := store.RecordMessage(ctx, newMessage("dup", "u1", "u2", "first", base)); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	// Duplicate message ID in a new pair: the conversation insert must be undone.
	if _, _, err := store.RecordMessage(ctx, newMessage("dup", "u3", "u4", "second", base)); err == nil {
		t.Fatal("expected duplicate message ID to fail")
	}
	if _, err := store.GetByID(ctx, "u3_u4"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetByID(u3_u4) err = %v, want ErrNotFound", err)
	}
}

func TestRecordMessage_RejectsMismatchedConversation(t *testing.T) {
	store := NewSQLiteStore(storagetest.Open(t))
	m := newMessage("m1", "u1", "u2", "hi", base)
	m.ConversationID = "u1_u9"
	if _, _, err := store.RecordMessage(context.Background(), m); err == nil {
		t.Error("expected error for mismatched conversation ID")
	}
}

func TestRecordMessage_RejectsAmbiguousUserIDs(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	for _, m := range []message.Message{
		newMessage("m1", "a_b", "c", "private to c", base),
		newMessage("m2", "a", "b_c", "secret for b_c", base),
	} {
		if _, _, err := store.RecordMessage(ctx, m); !errors.Is(err, domain.ErrInvalidUserID) {
			t.Errorf("RecordMessage(%s -> %s) err = %v, want ErrInvalidUserID", m.SenderID, m.ReceiverID, err)
		}
	}
	var n int
	db.QueryRow(`SELECT COUNT(*) FROM message`).Scan(&n)
	if n != 0 {
		t.Errorf("messages = %d, want 0", n)
	}
}

func TestRecordMessage_RefusesConversationHeldByOtherPair(t *testing.T) {
	db := storagetest.Open(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	// A row whose ID no longer matches its participants.
	if _, err := db.Exec(`INSERT INTO conversation (id, participant_a, participant_b, created_at, updated_at)
		VALUES ('u1_u2', 'u1', 'u9', '2026-01-01T00:00:00.000000000Z', '2026-01-01T00:00:00.000000000Z')`); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	_, _, err := store.RecordMessage(ctx, newMessage("m1", "u1", "u2", "hello", base))
	if !errors.Is(err, domain.ErrParticipantClash) {
		t.Fatalf("err = %v, want ErrParticipantClash", err)
	}
	var n int
	db.QueryRow(`SELECT COUNT(*) FROM message WHERE conversation_id = 'u1_u2'`).Scan(&n)
	if n != 0 {
		t.Errorf("messages = %d, want 0 after refusal", n)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	store := NewSQLiteStore(storagetest.Open(t))
	if _, err := store.GetByID(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListByParticipant_OrderedByActivity(t *testing.T) {
	store := NewSQLiteStore(storagetest.Open(t))
	ctx := context.Background()

	sends := []message.Message{
		newMessage("m1", "u1", "u2", "a", base),
		newMessage("m2", "u3", "u1", "b", base.Add(time.Minute)),
		newMessage("m3", "u4", "u5", "c", base.Add(2*time.Minute)),
		newMessage("m4", "u2", "u1", "d", base.Add(3*time.Minute)),
	}
	for _, m := range sends {
		if _, _, err := store.RecordMessage(ctx, m); err != nil {
			t.Fatalf("RecordMessage %s: %v", m.ID, err)
		}
	}

	convs, err := store.ListByParticipant(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByParticipant: %v", err)
	}
	var ids []string
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	if len(ids) != 2 || ids[0] != "u1_u2" || ids[1] != "u1_u3" {
		t.Errorf("ids = %v, want [u1_u2 u1_u3]", ids)
	}

	none, err := store.ListByParticipant(ctx, "ghost")
	if err != nil || len(none) != 0 {
		t.Errorf("ghost: %v, %v; want empty", none, err)
	}
}
