package http

import "net/http"

// handleHealth is the public liveness probe. Degraded dependencies turn it
// into a 503 so load balancers rotate the instance out.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.monitor.Health(r.Context())
	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, h)
}
