package projections

import (
	"context"

	"vortex/internal/domain/conversation"
	"vortex/internal/domain/message"
	"vortex/internal/domain/profile"
)

// ConversationStore interface for conversation queries.
type ConversationStore interface {
	GetByID(ctx context.Context, id string) (conversation.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]conversation.Conversation, error)
}

// MessageStore interface for message queries.
type MessageStore interface {
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]message.Message, error)
	CountUnread(ctx context.Context, conversationID, receiverID string) (int, error)
}

// ProfileStore interface for profile point lookups.
type ProfileStore interface {
	GetByID(ctx context.Context, userID string) (profile.Profile, error)
}
