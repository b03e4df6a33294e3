// Package settings holds the live-reloadable runtime configuration.
// Settings live in the record store; a process-wide snapshot cell gives
// every request a consistent view without hitting the store. Writers swap
// the snapshot after a validated update, so in-flight requests keep the
// values they started with.
package settings

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
	"github.com/rs/zerolog"
)

// Snapshot is one immutable view of all tunable values.
type Snapshot struct {
	ChunkSize            int
	ChunkOverlap         int
	TopK                 int
	SimilarityThreshold  float64
	MaxConversationTurns int
	MaxFileSizeMB        int
	Temperature          float64
	MaxTokens            int
	ChatModel            string
	EmbeddingModel       string
	TokenExpireMinutes   int
}

// MaxFileSizeBytes converts the MB knob to bytes (decimal megabytes).
func (s Snapshot) MaxFileSizeBytes() int64 {
	return int64(s.MaxFileSizeMB) * 1_000_000
}

// Manager loads, validates, and serves settings.
type Manager struct {
	store ports.ConfigStore
	log   zerolog.Logger
	cell  atomic.Pointer[Snapshot]
}

// NewManager seeds missing settings and loads the initial snapshot.
func NewManager(ctx context.Context, store ports.ConfigStore, log zerolog.Logger) (*Manager, error) {
	m := &Manager{store: store, log: log.With().Str("component", "settings").Logger()}
	for _, s := range Defaults() {
		if err := store.SeedSetting(ctx, s); err != nil {
			return nil, fmt.Errorf("seeding setting %s: %w", s.Name, err)
		}
	}
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the active snapshot. Never nil after NewManager.
func (m *Manager) Current() Snapshot {
	return *m.cell.Load()
}

// Reload rebuilds the snapshot from the store and swaps it in.
func (m *Manager) Reload(ctx context.Context) error {
	all, err := m.store.AllSettings(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	snap := snapshotFromDefaults()
	for _, s := range all {
		applySetting(&snap, s)
	}
	m.cell.Store(&snap)
	m.log.Debug().Int("settings", len(all)).Msg("settings snapshot reloaded")
	return nil
}

// Get returns one setting's stored envelope.
func (m *Manager) Get(ctx context.Context, name string) (*entities.ConfigSetting, error) {
	s, err := m.store.Setting(ctx, name)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, entities.NewError(entities.KindNotFound, "setting %q not found", name)
	}
	return s, nil
}

// List returns every setting envelope.
func (m *Manager) List(ctx context.Context) ([]entities.ConfigSetting, error) {
	return m.store.AllSettings(ctx)
}

// Update validates value against the setting's type and range, persists it,
// and refreshes the snapshot. Returns the previous value.
func (m *Manager) Update(ctx context.Context, name string, value interface{}, updatedBy string) (old interface{}, err error) {
	cur, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	coerced, err := CoerceValue(cur, value)
	if err != nil {
		return nil, err
	}
	if err := m.store.SaveSetting(ctx, name, coerced, updatedBy); err != nil {
		return nil, fmt.Errorf("saving setting %s: %w", name, err)
	}
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return cur.Value, nil
}

// ResetToDefault restores a setting's seeded default.
func (m *Manager) ResetToDefault(ctx context.Context, name, updatedBy string) (old interface{}, err error) {
	cur, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.Update(ctx, name, cur.DefaultValue, updatedBy)
}

// CoerceValue checks value against the setting's declared type and range,
// returning the normalized value (int64, float64, string, or bool).
func CoerceValue(s *entities.ConfigSetting, value interface{}) (interface{}, error) {
	switch s.DataType {
	case "int":
		n, ok := asInt64(value)
		if !ok {
			return nil, entities.NewError(entities.KindValidation, "setting %q requires an integer", s.Name)
		}
		if s.MinValue != nil && float64(n) < *s.MinValue {
			return nil, entities.NewError(entities.KindValidation, "setting %q must be at least %v", s.Name, *s.MinValue)
		}
		if s.MaxValue != nil && float64(n) > *s.MaxValue {
			return nil, entities.NewError(entities.KindValidation, "setting %q must be at most %v", s.Name, *s.MaxValue)
		}
		return n, nil
	case "float":
		f, ok := asFloat64(value)
		if !ok {
			return nil, entities.NewError(entities.KindValidation, "setting %q requires a number", s.Name)
		}
		if s.MinValue != nil && f < *s.MinValue {
			return nil, entities.NewError(entities.KindValidation, "setting %q must be at least %v", s.Name, *s.MinValue)
		}
		if s.MaxValue != nil && f > *s.MaxValue {
			return nil, entities.NewError(entities.KindValidation, "setting %q must be at most %v", s.Name, *s.MaxValue)
		}
		return f, nil
	case "string":
		str, ok := value.(string)
		if !ok {
			return nil, entities.NewError(entities.KindValidation, "setting %q requires a string", s.Name)
		}
		if s.MinValue != nil && float64(len(str)) < *s.MinValue {
			return nil, entities.NewError(entities.KindValidation, "setting %q must be at least %v characters", s.Name, *s.MinValue)
		}
		if s.MaxValue != nil && float64(len(str)) > *s.MaxValue {
			return nil, entities.NewError(entities.KindValidation, "setting %q must be at most %v characters", s.Name, *s.MaxValue)
		}
		return str, nil
	case "bool":
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch v {
			case "true", "1", "yes":
				return true, nil
			case "false", "0", "no":
				return false, nil
			}
		}
		return nil, entities.NewError(entities.KindValidation, "setting %q requires a boolean", s.Name)
	default:
		return nil, entities.NewError(entities.KindInternal, "setting %q has unknown data type %q", s.Name, s.DataType)
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		// JSON numbers arrive as float64; accept only whole values.
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func snapshotFromDefaults() Snapshot {
	snap := Snapshot{}
	for _, s := range Defaults() {
		applySetting(&snap, s)
	}
	return snap
}

func applySetting(snap *Snapshot, s entities.ConfigSetting) {
	switch s.Name {
	case "chunk_size":
		snap.ChunkSize = toInt(s.Value, snap.ChunkSize)
	case "chunk_overlap":
		snap.ChunkOverlap = toInt(s.Value, snap.ChunkOverlap)
	case "top_k_chunks":
		snap.TopK = toInt(s.Value, snap.TopK)
	case "similarity_threshold":
		if f, ok := asFloat64(s.Value); ok {
			snap.SimilarityThreshold = f
		}
	case "max_conversation_turns":
		snap.MaxConversationTurns = toInt(s.Value, snap.MaxConversationTurns)
	case "max_file_size_mb":
		snap.MaxFileSizeMB = toInt(s.Value, snap.MaxFileSizeMB)
	case "gemini_temperature":
		if f, ok := asFloat64(s.Value); ok {
			snap.Temperature = f
		}
	case "gemini_max_tokens":
		snap.MaxTokens = toInt(s.Value, snap.MaxTokens)
	case "gemini_chat_model":
		if str, ok := s.Value.(string); ok {
			snap.ChatModel = str
		}
	case "gemini_embedding_model":
		if str, ok := s.Value.(string); ok {
			snap.EmbeddingModel = str
		}
	case "jwt_access_token_expire_minutes":
		snap.TokenExpireMinutes = toInt(s.Value, snap.TokenExpireMinutes)
	}
}

func toInt(v interface{}, fallback int) int {
	if n, ok := asInt64(v); ok {
		return int(n)
	}
	return fallback
}

func ptr(f float64) *float64 { return &f }

// Defaults is the seed set written on first start. Values match the
// deployment the service grew up with; admins tune them afterwards.
func Defaults() []entities.ConfigSetting {
	return []entities.ConfigSetting{
		{Name: "chunk_size", Value: int64(800), DefaultValue: int64(800), DataType: "int", MinValue: ptr(100), MaxValue: ptr(2000), Category: "rag",
			Description: "Size of text chunks in characters for document processing"},
		{Name: "chunk_overlap", Value: int64(100), DefaultValue: int64(100), DataType: "int", MinValue: ptr(0), MaxValue: ptr(500), Category: "rag",
			Description: "Overlap between chunks in characters to maintain context"},
		{Name: "top_k_chunks", Value: int64(5), DefaultValue: int64(5), DataType: "int", MinValue: ptr(1), MaxValue: ptr(20), Category: "rag",
			Description: "Number of most relevant chunks to retrieve for context"},
		{Name: "similarity_threshold", Value: 0.7, DefaultValue: 0.7, DataType: "float", MinValue: ptr(0), MaxValue: ptr(1), Category: "rag",
			Description: "Minimum cosine similarity for a chunk to count as relevant"},
		{Name: "max_conversation_turns", Value: int64(20), DefaultValue: int64(20), DataType: "int", MinValue: ptr(1), MaxValue: ptr(100), Category: "rag",
			Description: "Maximum conversation turns to keep in history"},
		{Name: "max_file_size_mb", Value: int64(10), DefaultValue: int64(10), DataType: "int", MinValue: ptr(1), MaxValue: ptr(100), Category: "document",
			Description: "Maximum file size for document uploads in megabytes"},
		{Name: "gemini_temperature", Value: 0.7, DefaultValue: 0.7, DataType: "float", MinValue: ptr(0), MaxValue: ptr(2), Category: "llm",
			Description: "Temperature for LLM generation (0.0-2.0)"},
		{Name: "gemini_max_tokens", Value: int64(500), DefaultValue: int64(500), DataType: "int", MinValue: ptr(1), MaxValue: ptr(8192), Category: "llm",
			Description: "Maximum tokens for LLM response generation"},
		{Name: "gemini_chat_model", Value: "models/gemini-2.5-flash", DefaultValue: "models/gemini-2.5-flash", DataType: "string", MinValue: ptr(1), MaxValue: ptr(100), Category: "llm",
			Description: "Chat model name used for response generation"},
		{Name: "gemini_embedding_model", Value: "models/text-embedding-004", DefaultValue: "models/text-embedding-004", DataType: "string", MinValue: ptr(1), MaxValue: ptr(100), Category: "llm",
			Description: "Embedding model name used for document vectorization"},
		{Name: "jwt_access_token_expire_minutes", Value: int64(30), DefaultValue: int64(30), DataType: "int", MinValue: ptr(1), MaxValue: ptr(1440), Category: "api",
			Description: "Access token expiration time in minutes"},
	}
}
