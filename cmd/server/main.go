// Command server runs the financial assistant API: JWT-authenticated chat
// over a retrieval-augmented Gemini pipeline, document ingestion, and an
// audited admin control plane.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/finassist/finassist-go/internal/adapters/embedding"
	"github.com/finassist/finassist-go/internal/adapters/extractor"
	"github.com/finassist/finassist-go/internal/adapters/filewatcher"
	"github.com/finassist/finassist-go/internal/adapters/llm"
	"github.com/finassist/finassist-go/internal/adapters/splitter"
	"github.com/finassist/finassist-go/internal/adapters/store"
	"github.com/finassist/finassist-go/internal/adapters/vectordb"
	"github.com/finassist/finassist-go/internal/admin"
	"github.com/finassist/finassist-go/internal/audit"
	"github.com/finassist/finassist-go/internal/auth"
	"github.com/finassist/finassist-go/internal/config"
	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
	"github.com/finassist/finassist-go/internal/domain/usecases"
	httpapi "github.com/finassist/finassist-go/internal/infrastructure/http"
	"github.com/finassist/finassist-go/internal/settings"
)

// sessionTTL is how long an idle conversation lives before eviction.
const sessionTTL = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("loading configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if cfg.Debug {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	index, err := vectordb.NewSQLiteIndex(cfg.DataDir)
	if err != nil {
		return err
	}
	defer index.Close()

	mgr, err := settings.NewManager(ctx, db, log)
	if err != nil {
		return err
	}
	snap := mgr.Current

	embedder := embedding.NewGeminiAdapter(cfg.GeminiBaseURL, cfg.GoogleAPIKey, func() string {
		return snap().EmbeddingModel
	})
	chat := llm.NewGeminiAdapter(cfg.GeminiBaseURL, cfg.GoogleAPIKey)

	ingest := usecases.NewIngestUseCase(extractor.New(), embedder, index, db, snap,
		func(size, overlap int) ports.Splitter { return splitter.NewRecursive(size, overlap) }, log)
	query := usecases.NewQueryUseCase(embedder, index, chat, db, snap, log)

	authSvc := auth.NewService(db, snap, cfg.JWTSecret, cfg.BcryptCost, log)
	auditLog := audit.NewLogger(db, log)

	srv := httpapi.NewServer(httpapi.Options{
		Addr:           cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		Debug:          cfg.Debug,
		Auth:           authSvc,
		Query:          query,
		Ingest:         ingest,
		Docs:           db,
		Index:          index,
		Sessions:       db,
		Metrics:        db,
		Settings:       mgr,
		Audit:          auditLog,
		AdminUser:      admin.NewUserService(db, db, authSvc, auditLog, log),
		AdminDocs:      admin.NewDocumentService(db, index, ingest, auditLog, log),
		Monitor:        admin.NewMonitorService(db.DB(), index, db, cfg.DataDir),
		Analytics:      admin.NewAnalyticsService(db, db, db, index),
		AdminCfg:       admin.NewConfigService(mgr, auditLog),
		Log:            log,
	})

	go evictSessions(ctx, db, log)

	if cfg.WatchDir != "" {
		df, err := filewatcher.NewDropFolder(ingest,
			&entities.User{ID: "system", Username: "system"}, log)
		if err != nil {
			return err
		}
		defer df.Stop()
		go func() {
			if err := df.Watch(ctx, cfg.WatchDir); err != nil && err != context.Canceled {
				log.Error().Err(err).Str("dir", cfg.WatchDir).Msg("drop folder watcher stopped")
			}
		}()
	}

	return srv.Start(ctx)
}

// evictSessions sweeps idle conversations once an hour.
func evictSessions(ctx context.Context, sessions ports.SessionStore, log zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.EvictInactive(ctx, time.Now().Add(-sessionTTL))
			if err != nil {
				log.Warn().Err(err).Msg("evicting idle sessions")
				continue
			}
			if n > 0 {
				log.Info().Int("evicted", n).Msg("idle sessions removed")
			}
		}
	}
}
