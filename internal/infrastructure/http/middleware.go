package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/finassist/finassist-go/internal/domain/entities"
)

type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyUser      contextKey = "user"
)

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func userFrom(ctx context.Context) *entities.User {
	if u, ok := ctx.Value(ctxKeyUser).(*entities.User); ok {
		return u
	}
	return nil
}

// requestID assigns every request a uuid, honoring one supplied by an
// upstream proxy.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

// statusWriter captures the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finassist_http_requests_total",
		Help: "HTTP requests by route, method, and status.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finassist_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// observe logs each request and feeds both Prometheus and the persistent
// metrics store the admin monitor reads from.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		route := routePattern(r)

		httpRequests.WithLabelValues(route, r.Method, statusClass(sw.status)).Inc()
		httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		evt := s.log.Info()
		if sw.status >= 500 {
			evt = s.log.Error()
		} else if sw.status >= 400 {
			evt = s.log.Warn()
		}
		evt.Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("elapsed", elapsed).
			Msg("request")

		sample := &entities.MetricSample{
			Endpoint:  route,
			Method:    r.Method,
			Status:    sw.status,
			ElapsedMS: elapsed.Milliseconds(),
			Timestamp: start,
		}
		if u := userFrom(r.Context()); u != nil {
			sample.UserID = u.ID
		}
		if sw.status >= 400 {
			sample.ErrorMsg = http.StatusText(sw.status)
		}
		// Sample recording is best-effort; a metrics hiccup must not fail
		// the request that already succeeded.
		if err := s.metrics.RecordSample(r.Context(), sample); err != nil {
			s.log.Warn().Err(err).Msg("recording metric sample failed")
		}
	})
}

// cors answers preflight requests and stamps the configured origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the bearer token into a user and stores it on the
// context. Handlers behind this middleware can rely on userFrom.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondError(w, r, entities.NewError(entities.KindAuthentication, "missing bearer token"))
			return
		}
		user, err := s.auth.Verify(r.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyUser, user)))
	})
}

// requireAdmin sits behind authenticate and gates the admin surface.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := userFrom(r.Context())
		if u == nil || !u.Admin {
			respondError(w, r, entities.NewError(entities.KindAuthorization, "admin privileges required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requirePasswordChanged blocks accounts flagged must_reset from
// everything except the password-change endpoint.
func requirePasswordChanged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := userFrom(r.Context()); u != nil && u.MustReset {
			respondError(w, r, entities.NewError(entities.KindAuthorization,
				"password change required before this account can be used"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func routePattern(r *http.Request) string {
	// Collapse ids so metrics do not explode in cardinality.
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func looksLikeID(s string) bool {
	if strings.HasPrefix(s, "doc_") {
		return true
	}
	if len(s) == 36 && strings.Count(s, "-") == 4 {
		return true
	}
	return false
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
