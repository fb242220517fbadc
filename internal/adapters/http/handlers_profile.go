package web

import (
	"net/http"

	"vortex/internal/application/orchestrators"
)

func (s *Server) profileDeps() orchestrators.ProfileDeps {
	return orchestrators.ProfileDeps{
		Profiles:      s.stores.Profiles,
		Conversations: s.stores.Conversations,
		Bus:           s.bus,
		Now:           s.now,
	}
}

// handleGetProfile handles GET /api/profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.stores.Profiles.GetByID(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ownProfileView{profileView: toProfileView(p), Email: p.Email})
}

// handleSaveProfile handles PUT /api/profile
func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var input struct {
		DisplayName string `json:"displayName"`
		AvatarURL   string `json:"avatarUrl"`
		Email       string `json:"email"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	p, err := orchestrators.ExecuteSaveProfile(r.Context(), orchestrators.SaveProfileInput{
		UserID:      callerID(r),
		DisplayName: input.DisplayName,
		AvatarURL:   input.AvatarURL,
		Email:       input.Email,
	}, s.profileDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ownProfileView{profileView: toProfileView(p), Email: p.Email})
}

// handleSetPresence handles POST /api/presence
func (s *Server) handleSetPresence(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Online bool `json:"online"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := orchestrators.ExecuteSetPresence(r.Context(), orchestrators.SetPresenceInput{
		UserID: callerID(r),
		Online: input.Online,
	}, s.profileDeps()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
