package web

import (
	"errors"
	"net/http"
	"strings"

	"vortex/internal/application/orchestrators"
	"vortex/internal/application/projections"
)

// Caller-side guards on sending.
var (
	errEmptyText   = errors.New("text is required")
	errSelfMessage = errors.New("cannot send a message to yourself")
)

// handleSendMessage handles POST /api/messages
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ReceiverID string `json:"receiverId"`
		Text       string `json:"text"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	sender := callerID(r)
	switch {
	case strings.TrimSpace(input.ReceiverID) == "":
		http.Error(w, "receiverId is required", http.StatusBadRequest)
		return
	case strings.TrimSpace(input.Text) == "":
		http.Error(w, errEmptyText.Error(), http.StatusBadRequest)
		return
	case input.ReceiverID == sender:
		http.Error(w, errSelfMessage.Error(), http.StatusBadRequest)
		return
	}

	res, err := orchestrators.ExecuteSendMessage(r.Context(), orchestrators.SendMessageInput{
		SenderID:   sender,
		ReceiverID: input.ReceiverID,
		Text:       input.Text,
	}, orchestrators.SendMessageDeps{
		Conversations: s.stores.Conversations,
		Profiles:      s.stores.Profiles,
		Outbox:        s.stores.Outbox,
		Bus:           s.bus,
		GenerateID:    s.generateID,
		Now:           s.now,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message             messageView      `json:"message"`
		Conversation        conversationView `json:"conversation"`
		ConversationCreated bool             `json:"conversationCreated"`
	}{toMessageView(res.Message), toConversationView(res.Conversation), res.Created})
}

// handleListConversations handles GET /api/conversations
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	rows, err := projections.QueryGetUserConversations(r.Context(), projections.GetUserConversationsInput{
		UserID: callerID(r),
	}, projections.GetUserConversationsDeps{
		Conversations: s.stores.Conversations,
		Messages:      s.stores.Messages,
		Profiles:      s.stores.Profiles,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryViews(rows))
}

// handleGetMessages handles GET /api/conversations/{id}/messages?limit=
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := projections.QueryGetMessages(r.Context(), projections.GetMessagesInput{
		ConversationID: r.PathValue("id"),
		ViewerID:       callerID(r),
		Limit:          parseLimit(r, s.opts.PageSize),
	}, projections.GetMessagesDeps{
		Conversations: s.stores.Conversations,
		Messages:      s.stores.Messages,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageViews(msgs))
}

// handleMarkRead handles POST /api/conversations/{id}/read
// A partial failure still answers 200 with the failed count.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convID := r.PathValue("id")
	reader := callerID(r)
	if err := projections.CheckAccess(ctx, s.stores.Conversations, convID, reader); err != nil {
		writeError(w, err)
		return
	}

	res, err := orchestrators.ExecuteMarkMessagesAsRead(ctx, orchestrators.MarkMessagesAsReadInput{
		ConversationID: convID,
		UserID:         reader,
	}, orchestrators.MarkMessagesAsReadDeps{
		Messages:    s.stores.Messages,
		Bus:         s.bus,
		Now:         s.now,
		Concurrency: s.opts.MarkReadConcurrency,
	})
	if err != nil && res.Failed == 0 {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
