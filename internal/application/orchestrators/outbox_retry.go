package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"vortex/internal/adapters/email"
	domainOutbox "vortex/internal/domain/outbox"
)

// OutboxRetryStore is the outbox store surface the retry loop needs.
type OutboxRetryStore interface {
	Save(ctx context.Context, e domainOutbox.Entry) error
	ListPending(ctx context.Context, limit int) ([]domainOutbox.Entry, error)
}

// OutboxRetryDeps provides the dependencies for retrying outbox entries.
type OutboxRetryDeps struct {
	OutboxStore OutboxRetryStore
	Sender      email.Sender
	Now         func() time.Time
	From        string
	BaseDelay   time.Duration // default 1m
	MaxDelay    time.Duration // default 1h
	BatchSize   int           // default 100
	MaxAttempts int           // overrides each entry's limit when positive
}

// OutboxRetryResult summarises one pass.
type OutboxRetryResult struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int // still backing off
}

// mdRenderer escapes raw HTML in message text (WithUnsafe is not set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// ExecuteOutboxRetry delivers due outbox entries with exponential backoff.
// PRE: Deps are valid and store is connected
// POST: Every due entry was attempted once and saved with its new state
func ExecuteOutboxRetry(ctx context.Context, deps OutboxRetryDeps) (OutboxRetryResult, error) {
	baseDelay, maxDelay, batch := deps.BaseDelay, deps.MaxDelay, deps.BatchSize
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	if maxDelay <= 0 {
		maxDelay = time.Hour
	}
	if batch <= 0 {
		batch = 100
	}

	entries, err := deps.OutboxStore.ListPending(ctx, batch)
	if err != nil {
		return OutboxRetryResult{}, fmt.Errorf("failed to list pending outbox entries: %w", err)
	}

	var res OutboxRetryResult
	now := deps.Now()
	for _, entry := range entries {
		if deps.MaxAttempts > 0 {
			entry.MaxAttempts = deps.MaxAttempts
		}
		if !entry.CanRetry() {
			entry.MarkFailed(errors.New("max attempts reached"))
			res.Failed++
			saveEntry(ctx, deps.OutboxStore, entry)
			continue
		}
		if next := entry.NextAttemptAt(baseDelay, maxDelay); now.Before(next) {
			slog.Debug("outbox_event", "event", "retry_backoff", "entry_id", entry.ID, "next_attempt", next)
			res.Skipped++
			continue
		}

		res.Processed++
		entry.MarkAttempt(now)

		var execErr error
		switch entry.ActionType {
		case domainOutbox.ActionMessageEmail:
			execErr = deliverMessageEmail(ctx, deps, entry)
		default:
			execErr = fmt.Errorf("unknown action type: %s", entry.ActionType)
		}

		if execErr != nil {
			entry.MarkFailed(execErr)
			res.Failed++
			slog.Error("outbox_event", "event", "retry_failed", "entry_id", entry.ID, "action", entry.ActionType,
				"attempt", entry.Attempts, "status", entry.Status, "error", execErr)
		} else {
			entry.MarkSuccess()
			res.Succeeded++
			slog.Info("outbox_event", "event", "retry_succeeded", "entry_id", entry.ID, "action", entry.ActionType, "attempt", entry.Attempts)
		}
		saveEntry(ctx, deps.OutboxStore, entry)
	}

	if len(entries) > 0 {
		slog.Info("outbox_event", "event", "retry_pass_complete", "processed", res.Processed,
			"succeeded", res.Succeeded, "failed", res.Failed, "skipped", res.Skipped)
	}
	return res, nil
}

func saveEntry(ctx context.Context, store OutboxRetryStore, entry domainOutbox.Entry) {
	if err := store.Save(ctx, entry); err != nil {
		slog.Error("outbox_event", "event", "save_failed", "entry_id", entry.ID, "error", err)
	}
}

func deliverMessageEmail(ctx context.Context, deps OutboxRetryDeps, entry domainOutbox.Entry) error {
	payload, err := entry.DecodeMessageEmail()
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	req, err := RenderMessageEmail(payload)
	if err != nil {
		return err
	}
	req.From = deps.From
	req.RefID = entry.ID
	_, err = deps.Sender.Send(ctx, req)
	return err
}

// RenderMessageEmail builds the notification e-mail for an offline receiver.
// Message text is rendered as markdown with raw HTML escaped.
func RenderMessageEmail(p domainOutbox.MessageEmailPayload) (email.SendRequest, error) {
	var body bytes.Buffer
	if err := mdRenderer.Convert([]byte(p.Text), &body); err != nil {
		return email.SendRequest{}, fmt.Errorf("render message: %w", err)
	}
	sender := html.EscapeString(p.SenderName)
	htmlBody := fmt.Sprintf("<p>Hi %s,</p>\n<p><strong>%s</strong> sent you a message:</p>\n<blockquote>%s</blockquote>\n",
		html.EscapeString(p.RecipientName), sender, body.String())

	return email.SendRequest{
		To:      []string{p.To},
		Subject: fmt.Sprintf("New message from %s", p.SenderName),
		HTML:    htmlBody,
		Text:    fmt.Sprintf("%s sent you a message:\n\n%s\n", p.SenderName, p.Text),
	}, nil
}

// OutboxRetryConfig holds configuration for the retry scheduler.
type OutboxRetryConfig struct {
	Interval time.Duration
	Enabled  bool
}

// DefaultOutboxRetryConfig returns the scheduler defaults.
func DefaultOutboxRetryConfig() OutboxRetryConfig {
	return OutboxRetryConfig{Interval: time.Minute, Enabled: true}
}

// StartOutboxRetryScheduler starts a background goroutine that periodically retries outbox entries.
// PRE: Context is valid, deps are initialized
// POST: Goroutine started; the returned function stops it and waits for it to exit
func StartOutboxRetryScheduler(ctx context.Context, deps OutboxRetryDeps, cfg OutboxRetryConfig) func() {
	if !cfg.Enabled || cfg.Interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := ExecuteOutboxRetry(ctx, deps); err != nil {
					slog.Error("outbox_event", "event", "scheduler_error", "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
