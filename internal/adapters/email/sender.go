// Package email delivers notification e-mails through an external provider.
package email

import (
	"context"
	"time"
)

// SendRequest is one notification e-mail.
type SendRequest struct {
	To      []string
	From    string // empty uses the sender's default
	ReplyTo string
	Subject string
	HTML    string
	Text    string // plain-text alternative
	RefID   string // provider-side reference, set to the outbox entry ID
}

// SendResult is the provider's acknowledgement.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender sends e-mails.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
