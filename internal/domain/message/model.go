package message

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrEmptySenderID       = errors.New("sender ID is required")
	ErrEmptyReceiverID     = errors.New("receiver ID is required")
	ErrEmptyConversationID = errors.New("conversation ID is required")
	ErrNotFound            = errors.New("message not found")
)

// Message is a single chat message between two users.
// Created on send; only the read flag changes afterwards.
type Message struct {
	ID             string
	Text           string
	SenderID       string
	ReceiverID     string
	ConversationID string
	CreatedAt      time.Time
	Read           bool
	ReadAt         time.Time
}

// Validate checks if the Message has valid data.
// Text is not checked here: callers decide whether empty text is acceptable.
// PRE: Message struct is populated
// POST: Returns nil if valid, error otherwise
func (m *Message) Validate() error {
	if m.SenderID == "" {
		return ErrEmptySenderID
	}
	if m.ReceiverID == "" {
		return ErrEmptyReceiverID
	}
	if m.ConversationID == "" {
		return ErrEmptyConversationID
	}
	if m.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}

// IsAddressedTo reports whether userID is the receiver of the message.
func (m *Message) IsAddressedTo(userID string) bool {
	return m.ReceiverID == userID
}

// MarkRead moves the message from unread to read.
// PRE: Message exists
// POST: Read is true; ReadAt is set only on the first call
// INVARIANT: a read message never becomes unread again
func (m *Message) MarkRead(at time.Time) {
	if m.Read {
		return
	}
	m.Read = true
	m.ReadAt = at
}
