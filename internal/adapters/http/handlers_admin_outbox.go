package web

import (
	"net/http"
	"strconv"
	"time"

	"vortex/internal/application/orchestrators"
	"vortex/internal/domain/outbox"
)

type outboxEntryView struct {
	ID              string     `json:"id"`
	ActionType      string     `json:"actionType"`
	Status          string     `json:"status"`
	Attempts        int        `json:"attempts"`
	MaxAttempts     int        `json:"maxAttempts"`
	LastAttemptedAt *time.Time `json:"lastAttemptedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
}

// Payloads carry e-mail addresses and message text, so they are not listed.
func toOutboxEntryView(e outbox.Entry) outboxEntryView {
	return outboxEntryView{
		ID:              e.ID,
		ActionType:      e.ActionType,
		Status:          e.Status,
		Attempts:        e.Attempts,
		MaxAttempts:     e.MaxAttempts,
		LastAttemptedAt: optionalTime(e.LastAttemptedAt),
		CreatedAt:       e.CreatedAt,
		ErrorMessage:    e.ErrorMessage,
	}
}

// handleAdminOutboxList handles GET /api/admin/outbox?status=failed|pending&limit=
func (s *Server) handleAdminOutboxList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 100 {
		limit = n
	}

	var (
		entries []outbox.Entry
		err     error
	)
	switch r.URL.Query().Get("status") {
	case "", outbox.StatusFailed:
		entries, err = s.stores.Outbox.ListFailed(r.Context(), limit)
	case outbox.StatusPending:
		entries, err = s.stores.Outbox.ListPending(r.Context(), limit)
	default:
		http.Error(w, "status must be failed or pending", http.StatusBadRequest)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}

	out := make([]outboxEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, toOutboxEntryView(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAdminOutboxRetry handles POST /api/admin/outbox/{id}/retry
func (s *Server) handleAdminOutboxRetry(w http.ResponseWriter, r *http.Request) {
	e, err := orchestrators.ExecuteRequeueOutboxEntry(r.Context(),
		orchestrators.OutboxAdminInput{EntryID: r.PathValue("id")}, s.stores.Outbox)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutboxEntryView(e))
}

// handleAdminOutboxAbandon handles POST /api/admin/outbox/{id}/abandon
func (s *Server) handleAdminOutboxAbandon(w http.ResponseWriter, r *http.Request) {
	e, err := orchestrators.ExecuteAbandonOutboxEntry(r.Context(),
		orchestrators.OutboxAdminInput{EntryID: r.PathValue("id")}, s.stores.Outbox)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutboxEntryView(e))
}
