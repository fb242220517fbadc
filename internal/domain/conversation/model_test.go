package conversation_test

import (
	"errors"
	"testing"
	"time"

	"vortex/internal/domain/conversation"
	"vortex/internal/domain/message"
)

// TestID_OrderIndependent checks ID(a,b) == ID(b,a).
func TestID_OrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"alice", "bob"},
		{"Zed", "adam"},
		{"user-10", "user-9"},
		{"", "x"},
	}
	for _, p := range pairs {
		if conversation.ID(p[0], p[1]) != conversation.ID(p[1], p[0]) {
			t.Errorf("ID(%q,%q) != ID(%q,%q)", p[0], p[1], p[1], p[0])
		}
	}
}

// TestID_Format checks the sorted, underscore-joined format.
func TestID_Format(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{"u1", "u2", "u1_u2"},
		{"u2", "u1", "u1_u2"},
		{"bob", "alice", "alice_bob"},
		{"u1", "u1", "u1_u1"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := conversation.ID(tt.a, tt.b); got != tt.want {
				t.Errorf("ID(%q,%q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestNew_SortsParticipants verifies participants are stored sorted.
func TestNew_SortsParticipants(t *testing.T) {
	now := time.Now()
	c := conversation.New("u2", "u1", now)
	if c.Participants != [2]string{"u1", "u2"} {
		t.Errorf("Participants = %v, want [u1 u2]", c.Participants)
	}
	if c.ID != "u1_u2" {
		t.Errorf("ID = %q, want u1_u2", c.ID)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

// TestConversation_Validate covers invalid conversations.
func TestConversation_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		c    conversation.Conversation
	}{
		{"missing participant", conversation.Conversation{ID: "_u1", Participants: [2]string{"", "u1"}, CreatedAt: now}},
		{"mismatched ID", conversation.Conversation{ID: "x", Participants: [2]string{"u1", "u2"}, CreatedAt: now}},
		{"zero created_at", conversation.Conversation{ID: "u1_u2", Participants: [2]string{"u1", "u2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// TestConversation_OtherParticipant checks the "other user" lookup.
func TestConversation_OtherParticipant(t *testing.T) {
	c := conversation.New("u1", "u2", time.Now())
	if got := c.OtherParticipant("u1"); got != "u2" {
		t.Errorf("OtherParticipant(u1) = %q, want u2", got)
	}
	if got := c.OtherParticipant("u2"); got != "u1" {
		t.Errorf("OtherParticipant(u2) = %q, want u1", got)
	}
	if !c.HasParticipant("u1") || c.HasParticipant("u3") {
		t.Error("HasParticipant mismatch")
	}

	self := conversation.New("u1", "u1", time.Now())
	if got := self.OtherParticipant("u1"); got != "u1" {
		t.Errorf("self OtherParticipant = %q, want u1", got)
	}
}

// TestConversation_ApplyMessage verifies the summary never regresses.
func TestConversation_ApplyMessage(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := conversation.New("u1", "u2", base)

	first := message.Message{Text: "A", SenderID: "u1", CreatedAt: base.Add(time.Second)}
	if !c.ApplyMessage(first) {
		t.Fatal("first message should apply")
	}
	if c.LastMessage != "A" || c.LastMessageSenderID != "u1" {
		t.Errorf("summary = %q/%q, want A/u1", c.LastMessage, c.LastMessageSenderID)
	}

	newer := message.Message{Text: "B", SenderID: "u2", CreatedAt: base.Add(2 * time.Second)}
	older := message.Message{Text: "stale", SenderID: "u1", CreatedAt: base}

	if !c.ApplyMessage(newer) {
		t.Error("newer message should apply")
	}
	if c.ApplyMessage(older) {
		t.Error("older message should not apply")
	}
	if c.LastMessage != "B" || c.LastMessageSenderID != "u2" {
		t.Errorf("summary = %q/%q, want B/u2", c.LastMessage, c.LastMessageSenderID)
	}
	if !c.UpdatedAt.Equal(newer.CreatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", c.UpdatedAt, newer.CreatedAt)
	}

	same := message.Message{Text: "C", SenderID: "u1", CreatedAt: newer.CreatedAt}
	if !c.ApplyMessage(same) {
		t.Error("equal timestamp should apply (last writer wins on ties)")
	}
}

func TestMayInclude(t *testing.T) {
	tests := []struct {
		id, user string
		want     bool
	}{
		{"u1_u2", "u1", true},
		{"u1_u2", "u2", true},
		{"u1_u2", "u3", false},
		{"u1_u2", "u", false},
		{"u1_u2", "", false},
		{"u10_u2", "u1", false},
		{"x_y_z", "x", false},
		{"x_y_z", "z", false},
		{"x_y_z", "x_y", false},
		{"u2_u1", "u1", false},
		{"u1", "u1", false},
		{"_u1", "u1", false},
	}
	for _, tt := range tests {
		if got := conversation.MayInclude(tt.id, tt.user); got != tt.want {
			t.Errorf("MayInclude(%q, %q) = %v, want %v", tt.id, tt.user, got, tt.want)
		}
	}
}

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"u1", false},
		{"alice-42", false},
		{"a_b", true},
		{"_", true},
	}
	for _, tt := range tests {
		err := conversation.ValidateUserID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateUserID(%q) = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, conversation.ErrInvalidUserID) {
			t.Errorf("ValidateUserID(%q) = %v, want ErrInvalidUserID", tt.id, err)
		}
	}
}

func TestID_SeparatorInUserIDsIsAmbiguous(t *testing.T) {
	// Both pairs collapse to the same ID, which is why such IDs are rejected.
	if conversation.ID("a_b", "c") != conversation.ID("a", "b_c") {
		t.Fatal("expected colliding IDs")
	}
	for _, pair := range [][2]string{{"a_b", "c"}, {"a", "b_c"}} {
		c := conversation.New(pair[0], pair[1], time.Now())
		if err := c.Validate(); !errors.Is(err, conversation.ErrInvalidUserID) {
			t.Errorf("Validate(%v) = %v, want ErrInvalidUserID", pair, err)
		}
	}
}
