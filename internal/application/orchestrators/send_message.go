package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vortex/internal/adapters/live"
	"vortex/internal/domain/conversation"
	"vortex/internal/domain/message"
	"vortex/internal/domain/outbox"
	"vortex/internal/domain/profile"
)

// ConversationRecorder persists a message together with its conversation summary.
type ConversationRecorder interface {
	RecordMessage(ctx context.Context, m message.Message) (conversation.Conversation, bool, error)
}

// ProfileReader looks up display profiles.
type ProfileReader interface {
	GetByID(ctx context.Context, userID string) (profile.Profile, error)
}

// OutboxWriter enqueues deferred side effects.
type OutboxWriter interface {
	Save(ctx context.Context, e outbox.Entry) error
}

// SendMessageInput carries input for the send message orchestrator.
type SendMessageInput struct {
	SenderID   string
	ReceiverID string
	Text       string
}

// SendMessageDeps holds dependencies for SendMessage.
// Profiles, Outbox and Bus are optional.
type SendMessageDeps struct {
	Conversations ConversationRecorder
	Profiles      ProfileReader
	Outbox        OutboxWriter
	Bus           live.Bus
	GenerateID    func() string
	Now           func() time.Time
}

// SendMessageResult is the stored message and the conversation after it.
type SendMessageResult struct {
	Message      message.Message
	Conversation conversation.Conversation
	Created      bool // the conversation did not exist before this send
}

// MessageCreatedPayload is the payload of a message.created event.
type MessageCreatedPayload struct {
	MessageID string `json:"messageId"`
	SenderID  string `json:"senderId"`
}

// ExecuteSendMessage stores a message from SenderID to ReceiverID.
// Text is stored as given; callers reject empty text or self-messaging if
// they need to.
// PRE: SenderID and ReceiverID are non-empty and free of conversation.Separator
// POST: The conversation exists, the message is appended unread and the
//       summary reflects the newest message; subscribers are notified
func ExecuteSendMessage(ctx context.Context, input SendMessageInput, deps SendMessageDeps) (SendMessageResult, error) {
	m := message.Message{
		ID:             deps.GenerateID(),
		Text:           input.Text,
		SenderID:       input.SenderID,
		ReceiverID:     input.ReceiverID,
		ConversationID: conversation.ID(input.SenderID, input.ReceiverID),
		CreatedAt:      deps.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return SendMessageResult{}, err
	}
	for _, id := range []string{m.SenderID, m.ReceiverID} {
		if err := conversation.ValidateUserID(id); err != nil {
			return SendMessageResult{}, fmt.Errorf("%w: %q", err, id)
		}
	}

	conv, created, err := deps.Conversations.RecordMessage(ctx, m)
	if err != nil {
		return SendMessageResult{}, fmt.Errorf("send message: %w", err)
	}
	slog.Info("message_event", "event", "message_sent", "message_id", m.ID, "conversation_id", conv.ID,
		"sender_id", m.SenderID, "conversation_created", created)

	publishSend(ctx, deps.Bus, m, conv)
	notifyOffline(ctx, deps, m)

	return SendMessageResult{Message: m, Conversation: conv, Created: created}, nil
}

func publishSend(ctx context.Context, bus live.Bus, m message.Message, conv conversation.Conversation) {
	if bus == nil {
		return
	}
	ev, err := live.NewEvent(live.EventMessageCreated, conv.ID, m.SenderID,
		MessageCreatedPayload{MessageID: m.ID, SenderID: m.SenderID}, m.CreatedAt)
	if err != nil {
		slog.Error("live_event", "event", "encode_failed", "error", err)
		return
	}
	publish(ctx, bus, live.ConversationTopic(conv.ID), ev)

	ev.Type = live.EventConversationUpdated
	for _, userID := range uniqueParticipants(conv) {
		publish(ctx, bus, live.UserTopic(userID), ev)
	}
}

// publish logs instead of failing: the write it announces is already durable.
func publish(ctx context.Context, bus live.Bus, topic string, ev live.Event) {
	if err := bus.Publish(ctx, topic, ev); err != nil {
		slog.Warn("live_event", "event", "publish_failed", "topic", topic, "type", ev.Type, "error", err)
	}
}

func uniqueParticipants(c conversation.Conversation) []string {
	if c.Participants[0] == c.Participants[1] {
		return c.Participants[:1]
	}
	return c.Participants[:]
}

// notifyOffline enqueues an e-mail when the receiver is offline and has an
// address on file. Failures are logged; the message is already stored.
func notifyOffline(ctx context.Context, deps SendMessageDeps, m message.Message) {
	if deps.Profiles == nil || deps.Outbox == nil || m.SenderID == m.ReceiverID {
		return
	}
	receiver, err := deps.Profiles.GetByID(ctx, m.ReceiverID)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			slog.Warn("notification_event", "event", "receiver_lookup_failed", "user_id", m.ReceiverID, "error", err)
		}
		return
	}
	if !receiver.CanBeNotified() {
		return
	}
	sender, err := deps.Profiles.GetByID(ctx, m.SenderID)
	if err != nil {
		sender = profile.Placeholder(m.SenderID)
	}

	entry, err := outbox.NewMessageEmail(deps.GenerateID(), outbox.MessageEmailPayload{
		To:             receiver.Email,
		RecipientName:  receiver.DisplayName,
		SenderName:     sender.DisplayName,
		ConversationID: m.ConversationID,
		MessageID:      m.ID,
		Text:           m.Text,
		SentAt:         m.CreatedAt,
	}, m.CreatedAt)
	if err != nil {
		slog.Error("notification_event", "event", "entry_invalid", "message_id", m.ID, "error", err)
		return
	}
	if err := deps.Outbox.Save(ctx, entry); err != nil {
		slog.Error("notification_event", "event", "enqueue_failed", "message_id", m.ID, "error", err)
		return
	}
	slog.Info("notification_event", "event", "email_enqueued", "entry_id", entry.ID, "message_id", m.ID)
}
