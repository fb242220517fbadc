package message

import (
	"context"
	"time"

	domain "vortex/internal/domain/message"
)

// Store reads messages and reconciles their read state. Messages are
// written together with their conversation summary by the conversation store.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	ListUnread(ctx context.Context, conversationID, receiverID string) ([]domain.Message, error)
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
	CountUnread(ctx context.Context, conversationID, receiverID string) (int, error)
}
