package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
)

// errorEnvelope is the uniform error body: {error, message, details?, timestamp}.
type errorEnvelope struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// statusFor maps error kinds to HTTP statuses in exactly one place.
func statusFor(kind entities.ErrorKind) int {
	switch kind {
	case entities.KindValidation:
		return http.StatusUnprocessableEntity
	case entities.KindAuthentication:
		return http.StatusUnauthorized
	case entities.KindAuthorization:
		return http.StatusForbidden
	case entities.KindNotFound:
		return http.StatusNotFound
	case entities.KindConflict:
		return http.StatusBadRequest
	case entities.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case entities.KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondError writes the error envelope, echoing the request id so the
// response can be matched to its log line.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := entities.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal details stay in the log.
		message = "an internal error occurred"
	}

	env := errorEnvelope{
		Error:     string(kind),
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if reqID := requestIDFrom(r.Context()); reqID != "" {
		env.Details = map[string]interface{}{"request_id": reqID}
	}
	respondJSON(w, status, env)
}

// respondValidation writes a 422 for malformed request bodies.
func respondValidation(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	respondError(w, r, entities.NewError(entities.KindValidation, format, args...))
}
