package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finassist/finassist-go/internal/domain/ports"
)

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ports.UserFilter{
		Search:   q.Get("search"),
		Page:     intQuery(q.Get("page"), 1),
		PageSize: intQuery(q.Get("page_size"), 20),
	}
	if raw := q.Get("is_active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	users, total, err := s.adminUser.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"users":     users,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

func (s *Server) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	user, sessions, err := s.adminUser.Get(r.Context(), chi.URLParam(r, "id"))
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
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":            user,
		"recent_sessions": views,
	})
}

type userStatusRequest struct {
	Active bool `json:"is_active"`
}

func (s *Server) handleAdminUserStatus(w http.ResponseWriter, r *http.Request) {
	var req userStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondValidation(w, r, "invalid request body: %v", err)
		return
	}
	user, err := s.adminUser.SetActive(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"), req.Active, clientAddr(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleAdminPromoteUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.adminUser.Promote(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"), clientAddr(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleAdminResetPassword(w http.ResponseWriter, r *http.Request) {
	temp, err := s.adminUser.ResetPassword(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"), clientAddr(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	// The temporary password is shown exactly once.
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"temporary_password": temp,
		"must_reset":         true,
	})
}

// handleAdminUserActivity lists actions performed ON the user, not actions
// the user performed as an admin.
func (s *Server) handleAdminUserActivity(w http.ResponseWriter, r *http.Request) {
	filter := activityFilterFrom(r)
	filter.ResourceType = "user"
	filter.ResourceID = chi.URLParam(r, "id")
	s.respondActivity(w, r, filter)
}

func (s *Server) handleAdminActivity(w http.ResponseWriter, r *http.Request) {
	s.respondActivity(w, r, activityFilterFrom(r))
}

func (s *Server) respondActivity(w http.ResponseWriter, r *http.Request, filter ports.ActivityFilter) {
	entries, total, err := s.audit.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activity":  entries,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

func activityFilterFrom(r *http.Request) ports.ActivityFilter {
	q := r.URL.Query()
	filter := ports.ActivityFilter{
		Action:   q.Get("action_type"),
		Page:     intQuery(q.Get("page"), 1),
		PageSize: intQuery(q.Get("page_size"), 50),
	}
	if raw := q.Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = t
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = t
		}
	}
	return filter
}

func (s *Server) handleAdminListDocuments(w http.ResponseWriter, r *http.Request) {
	filter := documentFilterFrom(r)
	docs, total, err := s.adminDocs.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": documentViews(docs),
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

func (s *Server) handleAdminDeleteDocument(w http.ResponseWriter, r *http.Request) {
	removed, err := s.adminDocs.Delete(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"), clientAddr(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"chunks_deleted": removed,
	})
}

func (s *Server) handleAdminDocumentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.adminDocs.Stats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.monitor.Health(r.Context()))
}

func (s *Server) handleAdminMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.monitor.Metrics())
}

func (s *Server) handleAdminStorage(w http.ResponseWriter, r *http.Request) {
	info, err := s.monitor.Storage(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleAdminUsage(w http.ResponseWriter, r *http.Request) {
	report, err := s.monitor.Usage(r.Context(), intQuery(r.URL.Query().Get("hours"), 24))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleAdminErrorLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	samples, err := s.monitor.Errors(r.Context(), intQuery(q.Get("hours"), 24), intQuery(q.Get("limit"), 100))
	if err != nil {
		respondError(w, r, err)
		return
	}
	type errorView struct {
		Endpoint  string    `json:"endpoint"`
		Method    string    `json:"method"`
		Status    int       `json:"status"`
		Error     string    `json:"error"`
		Timestamp time.Time `json:"timestamp"`
	}
	views := make([]errorView, len(samples))
	for i, sm := range samples {
		views[i] = errorView{
			Endpoint:  sm.Endpoint,
			Method:    sm.Method,
			Status:    sm.Status,
			Error:     sm.ErrorMsg,
			Timestamp: sm.Timestamp,
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"errors": views})
}

func (s *Server) handleAdminAnalyticsUsers(w http.ResponseWriter, r *http.Request) {
	report, err := s.analytics.Users(r.Context(), intQuery(r.URL.Query().Get("days"), 30))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleAdminAnalyticsSessions(w http.ResponseWriter, r *http.Request) {
	report, err := s.analytics.Sessions(r.Context(), intQuery(r.URL.Query().Get("days"), 30))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleAdminAnalyticsDocuments(w http.ResponseWriter, r *http.Request) {
	report, err := s.analytics.Documents(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleAdminListConfig(w http.ResponseWriter, r *http.Request) {
	settings, err := s.adminCfg.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"settings": settings})
}

func (s *Server) handleAdminGetConfig(w http.ResponseWriter, r *http.Request) {
	setting, err := s.adminCfg.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, setting)
}

type configUpdateRequest struct {
	Value interface{} `json:"value"`
}

func (s *Server) handleAdminUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req configUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondValidation(w, r, "invalid request body: %v", err)
		return
	}
	setting, err := s.adminCfg.Update(r.Context(), userFrom(r.Context()), chi.URLParam(r, "name"), req.Value, clientAddr(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, setting)
}

func (s *Server) handleAdminResetConfig(w http.ResponseWriter, r *http.Request) {
	setting, err := s.adminCfg.Reset(r.Context(), userFrom(r.Context()), chi.URLParam(r, "name"), clientAddr(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, setting)
}
