package projections

import (
	"context"
	"errors"
	"fmt"

	"vortex/internal/domain/conversation"
	"vortex/internal/domain/message"
)

// GetMessagesInput holds the query parameters.
type GetMessagesInput struct {
	ConversationID string
	ViewerID       string // when set, must be a participant
	Limit          int    // non-positive returns the whole history
}

// GetMessagesDeps holds dependencies for QueryGetMessages.
type GetMessagesDeps struct {
	Conversations ConversationStore
	Messages      MessageStore
}

// QueryGetMessages returns the messages of a conversation in send order.
// A conversation with no messages yet yields an empty list.
// PRE: ConversationID is non-empty
// POST: Ordered non-decreasing by CreatedAt
func QueryGetMessages(ctx context.Context, input GetMessagesInput, deps GetMessagesDeps) ([]message.Message, error) {
	if input.ConversationID == "" {
		return nil, message.ErrEmptyConversationID
	}
	if input.ViewerID != "" {
		if err := CheckAccess(ctx, deps.Conversations, input.ConversationID, input.ViewerID); err != nil {
			return nil, err
		}
	}
	msgs, err := deps.Messages.ListByConversation(ctx, input.ConversationID, input.Limit)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return msgs, nil
}

// CheckAccess returns conversation.ErrNotParticipant unless userID takes part
// in the conversation. Conversations that do not exist yet are judged by
// their ID.
func CheckAccess(ctx context.Context, convs ConversationStore, conversationID, userID string) error {
	c, err := convs.GetByID(ctx, conversationID)
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		if conversation.MayInclude(conversationID, userID) {
			return nil
		}
		return conversation.ErrNotParticipant
	case err != nil:
		return err
	case !c.HasParticipant(userID):
		return conversation.ErrNotParticipant
	}
	return nil
}
