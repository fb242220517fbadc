package outbox

import (
	"encoding/json"
	"errors"
	"time"
)

// Status constants for the entry lifecycle.
const (
	StatusPending   = "pending"
	StatusRetrying  = "retrying"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// ActionMessageEmail notifies an offline receiver about a new message.
const ActionMessageEmail = "message_email"

// DefaultMaxAttempts applies when an entry is saved without a limit.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyActionType  = errors.New("action type is required")
	ErrEmptyPayload     = errors.New("payload is required")
	ErrNotFound         = errors.New("outbox entry not found")
	ErrAlreadyDelivered = errors.New("outbox entry was already delivered")
)

// Entry is a deferred side effect that is retried until it succeeds
// or runs out of attempts.
type Entry struct {
	ID              string
	ActionType      string
	Payload         string // JSON
	Status          string
	Attempts        int
	MaxAttempts     int
	LastAttemptedAt time.Time
	CreatedAt       time.Time
	ErrorMessage    string
}

// MessageEmailPayload is the Payload of an ActionMessageEmail entry.
type MessageEmailPayload struct {
	To             string    `json:"to"`
	RecipientName  string    `json:"recipientName"`
	SenderName     string    `json:"senderName"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	Text           string    `json:"text"`
	SentAt         time.Time `json:"sentAt"`
}

// NewMessageEmail builds a pending notification entry.
// PRE: payload.To is non-empty
// POST: Entry is pending with the default attempt limit
func NewMessageEmail(id string, payload MessageEmailPayload, now time.Time) (Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		ID:          id,
		ActionType:  ActionMessageEmail,
		Payload:     string(raw),
		Status:      StatusPending,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   now,
	}
	return e, e.Validate()
}

// DecodeMessageEmail parses the payload of an ActionMessageEmail entry.
func (e *Entry) DecodeMessageEmail() (MessageEmailPayload, error) {
	var p MessageEmailPayload
	if e.ActionType != ActionMessageEmail {
		return p, errors.New("entry is not a message e-mail")
	}
	err := json.Unmarshal([]byte(e.Payload), &p)
	return p, err
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid; a zero MaxAttempts is defaulted
func (e *Entry) Validate() error {
	if e.ActionType == "" {
		return ErrEmptyActionType
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

// CanRetry reports whether another attempt is allowed.
func (e *Entry) CanRetry() bool {
	switch e.Status {
	case StatusPending, StatusRetrying:
		return e.Attempts < e.MaxAttempts
	}
	return false
}

// IsTerminal reports whether the entry will never be attempted again.
func (e *Entry) IsTerminal() bool {
	return e.Status == StatusDone || e.Status == StatusAbandoned || e.Status == StatusFailed
}

// MarkAttempt records the start of an attempt.
// POST: Attempts incremented, LastAttemptedAt = at, status retrying
func (e *Entry) MarkAttempt(at time.Time) {
	e.Attempts++
	e.LastAttemptedAt = at
	e.Status = StatusRetrying
}

// MarkSuccess completes the entry.
func (e *Entry) MarkSuccess() {
	e.Status = StatusDone
	e.ErrorMessage = ""
}

// MarkFailed records err; the entry fails for good once attempts run out.
func (e *Entry) MarkFailed(err error) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// MarkAbandoned stops any further attempts.
func (e *Entry) MarkAbandoned() {
	e.Status = StatusAbandoned
}

// NextAttemptAt returns when the entry becomes due again:
// LastAttemptedAt + base*2^(attempts-1), capped at maxDelay.
func (e *Entry) NextAttemptAt(base, maxDelay time.Duration) time.Time {
	if e.LastAttemptedAt.IsZero() || e.Attempts == 0 {
		return e.CreatedAt
	}
	delay := base
	for i := 1; i < e.Attempts && delay < maxDelay; i++ {
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return e.LastAttemptedAt.Add(delay)
}

// Requeue gives a failed or abandoned entry a fresh set of attempts.
// POST: Status pending, Attempts 0, error cleared
// INVARIANT: a delivered entry is never requeued
func (e *Entry) Requeue() error {
	if e.Status == StatusDone {
		return ErrAlreadyDelivered
	}
	e.Status = StatusPending
	e.Attempts = 0
	e.LastAttemptedAt = time.Time{}
	e.ErrorMessage = ""
	return nil
}
