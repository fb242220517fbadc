package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vortex/internal/adapters/live"
	"vortex/internal/domain/message"
)

// DefaultMarkReadConcurrency bounds concurrent per-message updates.
const DefaultMarkReadConcurrency = 8

// UnreadMessageStore lists and flips unread messages.
type UnreadMessageStore interface {
	ListUnread(ctx context.Context, conversationID, receiverID string) ([]message.Message, error)
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
}

// MarkMessagesAsReadInput carries input for the mark-as-read orchestrator.
type MarkMessagesAsReadInput struct {
	ConversationID string
	UserID         string // the reader; only messages addressed to them change
}

// MarkMessagesAsReadDeps holds dependencies for MarkMessagesAsRead.
type MarkMessagesAsReadDeps struct {
	Messages    UnreadMessageStore
	Bus         live.Bus // optional
	Now         func() time.Time
	Concurrency int // non-positive uses DefaultMarkReadConcurrency
}

// MarkReadResult counts the outcome of one reconciliation.
type MarkReadResult struct {
	Marked int `json:"marked"`
	Failed int `json:"failed"`
}

// MessageReadPayload is the payload of a message.read event.
type MessageReadPayload struct {
	ReaderID string `json:"readerId"`
	Marked   int    `json:"marked"`
}

// ExecuteMarkMessagesAsRead flips every unread message in the conversation
// addressed to UserID. Updates run concurrently and all of them settle
// before it returns.
// PRE: ConversationID and UserID are non-empty
// POST: Result counts successes and failures; err joins every failure
// INVARIANT: messages sent by UserID are never touched
func ExecuteMarkMessagesAsRead(ctx context.Context, input MarkMessagesAsReadInput, deps MarkMessagesAsReadDeps) (MarkReadResult, error) {
	if input.ConversationID == "" {
		return MarkReadResult{}, message.ErrEmptyConversationID
	}
	if input.UserID == "" {
		return MarkReadResult{}, message.ErrEmptyReceiverID
	}

	unread, err := deps.Messages.ListUnread(ctx, input.ConversationID, input.UserID)
	if err != nil {
		return MarkReadResult{}, fmt.Errorf("list unread: %w", err)
	}
	if len(unread) == 0 {
		return MarkReadResult{}, nil
	}

	limit := deps.Concurrency
	if limit <= 0 {
		limit = DefaultMarkReadConcurrency
	}
	at := deps.Now().UTC()

	var (
		mu     sync.Mutex
		result MarkReadResult
		errs   []error
	)
	var g errgroup.Group
	g.SetLimit(limit)
	for _, m := range unread {
		g.Go(func() error {
			changed, err := deps.Messages.MarkRead(ctx, m.ID, at)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				errs = append(errs, fmt.Errorf("message %s: %w", m.ID, err))
			case changed:
				result.Marked++
			}
			return nil
		})
	}
	g.Wait()

	joined := errors.Join(errs...)
	if joined != nil {
		slog.Warn("message_event", "event", "mark_read_partial", "conversation_id", input.ConversationID,
			"reader_id", input.UserID, "marked", result.Marked, "failed", result.Failed, "error", joined)
	} else {
		slog.Info("message_event", "event", "marked_read", "conversation_id", input.ConversationID,
			"reader_id", input.UserID, "marked", result.Marked)
	}

	if result.Marked > 0 && deps.Bus != nil {
		ev, encErr := live.NewEvent(live.EventMessageRead, input.ConversationID, input.UserID,
			MessageReadPayload{ReaderID: input.UserID, Marked: result.Marked}, at)
		if encErr == nil {
			publish(ctx, deps.Bus, live.ConversationTopic(input.ConversationID), ev)
			ev.Type = live.EventConversationUpdated
			publish(ctx, deps.Bus, live.UserTopic(input.UserID), ev)
		}
	}
	return result, joined
}
