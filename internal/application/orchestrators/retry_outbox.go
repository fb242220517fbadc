package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	domainOutbox "vortex/internal/domain/outbox"
)

// OutboxAdminStore is the outbox store surface admin actions need.
type OutboxAdminStore interface {
	GetByID(ctx context.Context, id string) (domainOutbox.Entry, error)
	Save(ctx context.Context, e domainOutbox.Entry) error
}

// OutboxAdminInput identifies the entry an admin acts on.
type OutboxAdminInput struct {
	EntryID string
}

// ExecuteRequeueOutboxEntry gives a failed notification a fresh set of
// attempts; the scheduler picks it up on its next pass.
// PRE: EntryID is non-empty
// POST: Entry is pending with zero attempts
func ExecuteRequeueOutboxEntry(ctx context.Context, input OutboxAdminInput, store OutboxAdminStore) (domainOutbox.Entry, error) {
	entry, err := store.GetByID(ctx, input.EntryID)
	if err != nil {
		return domainOutbox.Entry{}, fmt.Errorf("get outbox entry: %w", err)
	}
	if err := entry.Requeue(); err != nil {
		return domainOutbox.Entry{}, err
	}
	if err := store.Save(ctx, entry); err != nil {
		return domainOutbox.Entry{}, err
	}
	slog.Info("outbox_event", "event", "entry_requeued", "entry_id", entry.ID)
	return entry, nil
}

// ExecuteAbandonOutboxEntry stops any further delivery attempts.
// PRE: EntryID is non-empty
// POST: Entry status set to abandoned
func ExecuteAbandonOutboxEntry(ctx context.Context, input OutboxAdminInput, store OutboxAdminStore) (domainOutbox.Entry, error) {
	entry, err := store.GetByID(ctx, input.EntryID)
	if err != nil {
		return domainOutbox.Entry{}, fmt.Errorf("get outbox entry: %w", err)
	}
	entry.MarkAbandoned()
	if err := store.Save(ctx, entry); err != nil {
		return domainOutbox.Entry{}, err
	}
	slog.Info("outbox_event", "event", "entry_abandoned", "entry_id", entry.ID)
	return entry, nil
}
