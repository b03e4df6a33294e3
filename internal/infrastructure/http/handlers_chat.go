package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finassist/finassist-go/internal/domain/entities"
)

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondValidation(w, r, "invalid request body: %v", err)
		return
	}
	result, err := s.query.Query(r.Context(), userFrom(r.Context()).ID, req.Query, req.SessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type sessionView struct {
	SessionID    string `json:"session_id"`
	CreatedAt    string `json:"created_at"`
	LastActivity string `json:"last_activity"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.SessionsByUser(r.Context(), userFrom(r.Context()).ID, 50)
	if err != nil {
		respondError(w, r, err)
		return
	}
	views := make([]sessionView, len(sessions))
	for i, sess := range sessions {
		views[i] = sessionView{
			SessionID:    sess.ID,
			CreatedAt:    sess.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			LastActivity: sess.LastActivity.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": views})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	sess, err := s.sessions.Session(r.Context(), sessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if sess == nil {
		respondError(w, r, entities.NewError(entities.KindNotFound, "session %s not found", sessionID))
		return
	}
	if sess.UserID != userFrom(r.Context()).ID {
		respondError(w, r, entities.NewError(entities.KindAuthorization, "session belongs to another user"))
		return
	}
	if err := s.sessions.DeleteSession(r.Context(), sessionID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
