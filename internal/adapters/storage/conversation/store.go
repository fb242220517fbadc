package conversation

import (
	"context"

	domain "vortex/internal/domain/conversation"
	"vortex/internal/domain/message"
)

// Store persists conversations and the messages that drive their summaries.
type Store interface {
	// GetByID retrieves a conversation by its deterministic ID.
	// PRE: id is non-empty
	// POST: Returns the conversation or an error wrapping domain.ErrNotFound
	GetByID(ctx context.Context, id string) (domain.Conversation, error)

	// ListByParticipant returns every conversation userID takes part in.
	// POST: Ordered by updated_at descending (most recent activity first)
	ListByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error)

	// RecordMessage stores m and keeps the conversation summary current.
	// PRE: m has been validated and m.ConversationID == domain.ID(m.SenderID, m.ReceiverID)
	// POST: In one transaction the conversation exists, m is appended, and the
	//       summary reflects the newest message by timestamp. created reports
	//       whether this call created the conversation.
	RecordMessage(ctx context.Context, m message.Message) (conv domain.Conversation, created bool, err error)
}
