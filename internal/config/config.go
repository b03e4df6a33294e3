// Package config loads the static, process-lifetime configuration from the
// environment. Dynamic, admin-tunable values live in internal/settings.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is everything fixed at process start.
type Config struct {
	ListenAddr     string
	GoogleAPIKey   string
	GeminiBaseURL  string
	JWTSecret      string
	DataDir        string
	WatchDir       string
	LogLevel       string
	Debug          bool
	BcryptCost     int
	AllowedOrigins string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":8000"),
		GoogleAPIKey:   os.Getenv("GOOGLE_API_KEY"),
		GeminiBaseURL:  getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		DataDir:        getEnv("DATA_DIR", "./data"),
		WatchDir:       os.Getenv("WATCH_DIR"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Debug:          getEnvBool("DEBUG", false),
		BcryptCost:     getEnvInt("BCRYPT_COST", 12),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
	}

	if cfg.GoogleAPIKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
