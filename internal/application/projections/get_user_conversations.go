package projections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vortex/internal/domain/conversation"
	"vortex/internal/domain/profile"
)

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	Conversation conversation.Conversation
	Other        profile.Profile // the other participant, or a placeholder
	Unread       int             // messages addressed to the viewer not yet read
}

// GetUserConversationsInput holds the query parameters.
type GetUserConversationsInput struct {
	UserID string
}

// GetUserConversationsDeps holds dependencies for QueryGetUserConversations.
type GetUserConversationsDeps struct {
	Conversations ConversationStore
	Messages      MessageStore
	Profiles      ProfileStore
}

// QueryGetUserConversations builds the conversation list of a user with the
// other participant's profile joined in.
// PRE: UserID is non-empty
// POST: Ordered by most recent activity first; every row carries a profile
func QueryGetUserConversations(ctx context.Context, input GetUserConversationsInput, deps GetUserConversationsDeps) ([]ConversationSummary, error) {
	if input.UserID == "" {
		return nil, profile.ErrEmptyUserID
	}
	convs, err := deps.Conversations.ListByParticipant(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user conversations: %w", err)
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		otherID := c.OtherParticipant(input.UserID)
		other, err := deps.Profiles.GetByID(ctx, otherID)
		if err != nil {
			if !errors.Is(err, profile.ErrNotFound) {
				slog.Warn("projection_event", "event", "profile_lookup_failed", "user_id", otherID, "error", err)
			}
			other = profile.Placeholder(otherID)
		}
		unread, err := deps.Messages.CountUnread(ctx, c.ID, input.UserID)
		if err != nil {
			return nil, fmt.Errorf("count unread %s: %w", c.ID, err)
		}
		out = append(out, ConversationSummary{Conversation: c, Other: other, Unread: unread})
	}
	return out, nil
}
