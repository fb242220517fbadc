package conversation

import (
	"errors"
	"sort"
	"strings"
	"time"

	"vortex/internal/domain/message"
)

// Separator joins the two sorted participant IDs into a conversation ID.
const Separator = "_"

// Domain errors
var (
	ErrNotFound         = errors.New("conversation not found")
	ErrNotParticipant   = errors.New("user is not a participant of this conversation")
	ErrEmptyParticipant = errors.New("both participants are required")
	ErrInvalidUserID    = errors.New("user ID must not contain " + Separator)
	ErrParticipantClash = errors.New("conversation ID belongs to a different pair")
)

// Conversation is a two-party thread with a denormalized summary of its
// most recent message.
type Conversation struct {
	ID                  string
	Participants        [2]string // sorted
	LastMessage         string
	LastMessageTime     time.Time
	LastMessageSenderID string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ID derives the conversation identifier for a pair of users.
// The result is the same regardless of argument order.
// Equal identifiers yield a degenerate ID ("a_a"); callers that must
// forbid self-conversations check before calling.
func ID(a, b string) string {
	p := sortedPair(a, b)
	return p[0] + Separator + p[1]
}

// ValidateUserID rejects IDs that would make conversation IDs ambiguous.
func ValidateUserID(userID string) error {
	if strings.Contains(userID, Separator) {
		return ErrInvalidUserID
	}
	return nil
}

// MayInclude reports whether id could be the ID of a conversation that
// userID takes part in. Used to authorize access to conversations that
// have no messages yet.
// POST: true only if id splits into exactly two sorted IDs and one is userID
func MayInclude(id, userID string) bool {
	if userID == "" || ValidateUserID(userID) != nil {
		return false
	}
	a, b, ok := strings.Cut(id, Separator)
	if !ok || a == "" || b == "" || strings.Contains(b, Separator) || a > b {
		return false
	}
	return a == userID || b == userID
}

func sortedPair(a, b string) [2]string {
	p := []string{a, b}
	sort.Strings(p)
	return [2]string{p[0], p[1]}
}

// New creates a conversation between a and b with no summary yet.
// PRE: a and b are non-empty
// POST: Participants are sorted; ID matches ID(a, b)
func New(a, b string, now time.Time) Conversation {
	return Conversation{
		ID:           ID(a, b),
		Participants: sortedPair(a, b),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks if the Conversation has valid data.
// PRE: Conversation struct is populated
// POST: Returns nil if valid, error otherwise
func (c *Conversation) Validate() error {
	if c.Participants[0] == "" || c.Participants[1] == "" {
		return ErrEmptyParticipant
	}
	for _, p := range c.Participants {
		if err := ValidateUserID(p); err != nil {
			return err
		}
	}
	if c.ID != ID(c.Participants[0], c.Participants[1]) {
		return errors.New("conversation ID does not match participants")
	}
	if c.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	return nil
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// OtherParticipant returns whichever participant is not userID.
// For a degenerate self-conversation it returns userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// ApplyMessage updates the summary projection from m.
// A message older than the current summary is ignored, so interleaved
// sends cannot move the summary backwards.
// PRE: m belongs to this conversation
// POST: Returns true if the summary now reflects m
func (c *Conversation) ApplyMessage(m message.Message) bool {
	if !c.LastMessageTime.IsZero() && m.CreatedAt.Before(c.LastMessageTime) {
		return false
	}
	c.LastMessage = m.Text
	c.LastMessageTime = m.CreatedAt
	c.LastMessageSenderID = m.SenderID
	c.UpdatedAt = m.CreatedAt
	return true
}
