package email

import (
	"context"
	"log/slog"
	"time"
)

// NoopSender logs e-mails instead of delivering them. Used when no
// provider key is configured.
type NoopSender struct{}

var _ Sender = NoopSender{}

// Send logs the request and reports success.
func (NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	slog.Info("email_event", "event", "noop_send", "to_count", len(req.To), "subject", req.Subject, "ref_id", req.RefID)
	return SendResult{MessageID: "noop-" + req.RefID, SentAt: time.Now()}, nil
}
