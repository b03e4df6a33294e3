// Package http provides the REST API surface. It is the outermost layer:
// handlers parse and validate input, call the domain services, and translate
// errors into the response taxonomy.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/finassist/finassist-go/internal/admin"
	"github.com/finassist/finassist-go/internal/audit"
	"github.com/finassist/finassist-go/internal/auth"
	"github.com/finassist/finassist-go/internal/domain/ports"
	"github.com/finassist/finassist-go/internal/domain/usecases"
	"github.com/finassist/finassist-go/internal/settings"
)

// Server hosts the REST API.
type Server struct {
	addr           string
	allowedOrigins string
	debug          bool

	auth      *auth.Service
	query     *usecases.QueryUseCase
	ingest    *usecases.IngestUseCase
	docs      ports.DocumentStore
	index     ports.VectorIndex
	sessions  ports.SessionStore
	metrics   ports.MetricsStore
	settings  *settings.Manager
	audit     *audit.Logger
	adminUser *admin.UserService
	adminDocs *admin.DocumentService
	monitor   *admin.MonitorService
	analytics *admin.AnalyticsService
	adminCfg  *admin.ConfigService

	log zerolog.Logger
}

// Options bundles the server dependencies.
type Options struct {
	Addr           string
	AllowedOrigins string
	Debug          bool

	Auth      *auth.Service
	Query     *usecases.QueryUseCase
	Ingest    *usecases.IngestUseCase
	Docs      ports.DocumentStore
	Index     ports.VectorIndex
	Sessions  ports.SessionStore
	Metrics   ports.MetricsStore
	Settings  *settings.Manager
	Audit     *audit.Logger
	AdminUser *admin.UserService
	AdminDocs *admin.DocumentService
	Monitor   *admin.MonitorService
	Analytics *admin.AnalyticsService
	AdminCfg  *admin.ConfigService

	Log zerolog.Logger
}

// NewServer creates the API server.
func NewServer(opts Options) *Server {
	return &Server{
		addr:           opts.Addr,
		allowedOrigins: opts.AllowedOrigins,
		debug:          opts.Debug,
		auth:           opts.Auth,
		query:          opts.Query,
		ingest:         opts.Ingest,
		docs:           opts.Docs,
		index:          opts.Index,
		sessions:       opts.Sessions,
		metrics:        opts.Metrics,
		settings:       opts.Settings,
		audit:          opts.Audit,
		adminUser:      opts.AdminUser,
		adminDocs:      opts.AdminDocs,
		monitor:        opts.Monitor,
		analytics:      opts.Analytics,
		adminCfg:       opts.AdminCfg,
		log:            opts.Log.With().Str("component", "http").Logger(),
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.observe)
	r.Use(s.cors)

	r.Route("/api/v1", func(r chi.Router) {
		// Public surface.
		r.Get("/health", s.handleHealth)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/forgot-password", s.handleForgotPassword)
		r.Post("/auth/reset-password", s.handleResetPassword)

		// The document corpus is shared; listing it needs no account.
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/stats", s.handleDocumentStats)

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/change-password", s.handleChangePassword)

			// Accounts flagged must_reset stop here until the password
			// change is done.
			r.Group(func(r chi.Router) {
				r.Use(requirePasswordChanged)

				r.Post("/chat", s.handleChat)
				r.Get("/sessions", s.handleListSessions)
				r.Delete("/sessions/{id}", s.handleDeleteSession)

				r.Post("/documents/upload", s.handleUpload)
				r.Delete("/documents/{id}", s.handleDeleteDocument)

				// Admin surface.
				r.Route("/admin", func(r chi.Router) {
					r.Use(requireAdmin)

					r.Get("/users", s.handleAdminListUsers)
					r.Get("/users/{id}", s.handleAdminGetUser)
					r.Put("/users/{id}/status", s.handleAdminUserStatus)
					r.Put("/users/{id}/promote", s.handleAdminPromoteUser)
					r.Post("/users/{id}/reset-password", s.handleAdminResetPassword)
					r.Get("/users/{id}/activity", s.handleAdminUserActivity)

					r.Get("/documents", s.handleAdminListDocuments)
					r.Delete("/documents/{id}", s.handleAdminDeleteDocument)
					r.Get("/documents/stats", s.handleAdminDocumentStats)

					r.Get("/system/health", s.handleAdminHealth)
					r.Get("/system/metrics", s.handleAdminMetrics)
					r.Get("/system/storage", s.handleAdminStorage)
					r.Get("/system/api-usage", s.handleAdminUsage)
					r.Get("/system/logs", s.handleAdminErrorLogs)
					r.Get("/activity", s.handleAdminActivity)

					r.Get("/analytics/users", s.handleAdminAnalyticsUsers)
					r.Get("/analytics/sessions", s.handleAdminAnalyticsSessions)
					r.Get("/analytics/documents", s.handleAdminAnalyticsDocuments)

					r.Get("/config", s.handleAdminListConfig)
					r.Get("/config/{name}", s.handleAdminGetConfig)
					r.Put("/config/{name}", s.handleAdminUpdateConfig)
					r.Post("/config/{name}/reset", s.handleAdminResetConfig)
				})
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves until the context is cancelled, then drains connections.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
