package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"vortex/internal/adapters/http/middleware"
	"vortex/internal/application/projections"
	"vortex/internal/domain/conversation"
	"vortex/internal/domain/message"
	"vortex/internal/domain/outbox"
	"vortex/internal/domain/profile"
)

// maxMessageLimit caps the ?limit= query parameter.
const maxMessageLimit = 1000

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http_event", "event", "encode_failed", "error", err)
	}
}

// writeError maps domain errors to status codes; anything unknown is a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrNotParticipant):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, conversation.ErrNotFound),
		errors.Is(err, message.ErrNotFound),
		errors.Is(err, profile.ErrNotFound),
		errors.Is(err, outbox.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, message.ErrEmptySenderID),
		errors.Is(err, message.ErrEmptyReceiverID),
		errors.Is(err, message.ErrEmptyConversationID),
		errors.Is(err, conversation.ErrEmptyParticipant),
		errors.Is(err, conversation.ErrInvalidUserID),
		errors.Is(err, profile.ErrEmptyUserID),
		errors.Is(err, profile.ErrEmptyDisplayName),
		errors.Is(err, profile.ErrInvalidEmail):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, outbox.ErrAlreadyDelivered):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		internalError(w, err)
	}
}

// callerID returns the identified caller. Identity middleware guarantees
// it is set on /api/ and /ws/ routes.
func callerID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// parseLimit reads ?limit=, falling back to def for missing or invalid values.
func parseLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxMessageLimit)
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.admins[callerID(r)] {
			http.Error(w, "admin required", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAdminPerf handles GET /api/admin/perf?minutes=
func (s *Server) handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		http.Error(w, "perf collection disabled", http.StatusNotFound)
		return
	}
	minutes, err := strconv.Atoi(r.URL.Query().Get("minutes"))
	if err != nil || minutes <= 0 {
		minutes = 15
	}
	since := s.now().Add(-time.Duration(minutes) * time.Minute)
	writeJSON(w, http.StatusOK, s.collector.Snapshot(since, 10))
}

// --- JSON views ---

type messageView struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	ReceiverID     string     `json:"receiverId"`
	Text           string     `json:"text"`
	CreatedAt      time.Time  `json:"createdAt"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

type conversationView struct {
	ID                  string     `json:"id"`
	Participants        []string   `json:"participants"`
	LastMessage         string     `json:"lastMessage"`
	LastMessageTime     *time.Time `json:"lastMessageTime,omitempty"`
	LastMessageSenderID string     `json:"lastMessageSenderId"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// profileView omits the e-mail address: it is shown to other users.
type profileView struct {
	UserID      string     `json:"userId"`
	DisplayName string     `json:"displayName"`
	AvatarURL   string     `json:"avatarUrl"`
	Online      bool       `json:"online"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
}

type ownProfileView struct {
	profileView
	Email string `json:"email"`
}

type conversationSummaryView struct {
	Conversation conversationView `json:"conversation"`
	OtherUser    profileView      `json:"otherUser"`
	UnreadCount  int              `json:"unreadCount"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toMessageView(m message.Message) messageView {
	return messageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
		Read:           m.Read,
		ReadAt:         optionalTime(m.ReadAt),
	}
}

func toMessageViews(msgs []message.Message) []messageView {
	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageView(m))
	}
	return out
}

func toConversationView(c conversation.Conversation) conversationView {
	return conversationView{
		ID:                  c.ID,
		Participants:        []string{c.Participants[0], c.Participants[1]},
		LastMessage:         c.LastMessage,
		LastMessageTime:     optionalTime(c.LastMessageTime),
		LastMessageSenderID: c.LastMessageSenderID,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func toProfileView(p profile.Profile) profileView {
	return profileView{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Online:      p.Online,
		LastSeenAt:  optionalTime(p.LastSeenAt),
	}
}

func toSummaryViews(rows []projections.ConversationSummary) []conversationSummaryView {
	out := make([]conversationSummaryView, 0, len(rows))
	for _, row := range rows {
		out = append(out, conversationSummaryView{
			Conversation: toConversationView(row.Conversation),
			OtherUser:    toProfileView(row.Other),
			UnreadCount:  row.Unread,
		})
	}
	return out
}
