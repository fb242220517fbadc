package subscriptions

import (
	"context"

	"vortex/internal/adapters/http/perf"
	"vortex/internal/adapters/live"
	"vortex/internal/application/projections"
	"vortex/internal/domain/message"
	"vortex/internal/domain/profile"
)

// Deps holds the collaborators of every watcher.
type Deps struct {
	Bus           live.Bus
	Conversations projections.ConversationStore
	Messages      projections.MessageStore
	Profiles      projections.ProfileStore
	Collector     *perf.Collector // optional
	Limit         int             // message history cap per emission; non-positive means all
}

// WatchMessages calls callback with the full ordered message list of the
// conversation now and after every change to it.
// PRE: conversationID is non-empty; access has been checked by the caller
// POST: The watcher runs until Unsubscribe, ctx ends or the bus closes
func WatchMessages(ctx context.Context, conversationID string, deps Deps, callback func([]message.Message)) (*Subscription, error) {
	if conversationID == "" {
		return nil, message.ErrEmptyConversationID
	}
	load := func(ctx context.Context) ([]message.Message, error) {
		return projections.QueryGetMessages(ctx, projections.GetMessagesInput{ConversationID: conversationID, Limit: deps.Limit},
			projections.GetMessagesDeps{Conversations: deps.Conversations, Messages: deps.Messages})
	}
	return watch(ctx, deps.Bus, live.ConversationTopic(conversationID), "watch_messages", deps.Collector, load, callback)
}

// WatchUserConversations calls callback with the user's conversation list,
// profiles joined, now and after every change affecting it.
// PRE: userID is non-empty
func WatchUserConversations(ctx context.Context, userID string, deps Deps, callback func([]projections.ConversationSummary)) (*Subscription, error) {
	if userID == "" {
		return nil, profile.ErrEmptyUserID
	}
	load := func(ctx context.Context) ([]projections.ConversationSummary, error) {
		return projections.QueryGetUserConversations(ctx, projections.GetUserConversationsInput{UserID: userID},
			projections.GetUserConversationsDeps{Conversations: deps.Conversations, Messages: deps.Messages, Profiles: deps.Profiles})
	}
	return watch(ctx, deps.Bus, live.UserTopic(userID), "watch_conversations", deps.Collector, load, callback)
}

// Authorize returns conversation.ErrNotParticipant if userID may not watch conversationID.
func Authorize(ctx context.Context, deps Deps, conversationID, userID string) error {
	return projections.CheckAccess(ctx, deps.Conversations, conversationID, userID)
}
