// Package live carries change notifications between writers and live
// subscriptions, in-process or across instances through Redis pub/sub.
package live

import (
	"encoding/json"
	"time"
)

// Event types.
const (
	EventMessageCreated      = "message.created"
	EventMessageRead         = "message.read"
	EventConversationUpdated = "conversation.updated"
	EventProfileUpdated      = "profile.updated"
)

// Event signals that state behind a topic changed. Subscribers re-read
// the state they watch; Payload is informational.
type Event struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	UserID         string          `json:"userId,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewEvent builds an event, encoding payload as JSON when non-nil.
func NewEvent(eventType, conversationID, userID string, payload any, at time.Time) (Event, error) {
	e := Event{Type: eventType, ConversationID: conversationID, UserID: userID, Timestamp: at}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		e.Payload = raw
	}
	return e, nil
}

// ConversationTopic is the topic of events about one conversation.
func ConversationTopic(conversationID string) string {
	return "conversation:" + conversationID
}

// UserTopic is the topic of events affecting one user's conversation list.
func UserTopic(userID string) string {
	return "user:" + userID
}
