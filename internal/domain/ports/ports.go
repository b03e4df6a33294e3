// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions, not concrete implementations;
// adapters implement them.
package ports

import (
	"context"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for a single query text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, batching where the
	// provider allows. Result order matches input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerationOptions tunes one chat-completion call.
type GenerationOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// LLMService completes a prompt into a bounded answer string.
type LLMService interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
}

// VectorIndex stores chunks and answers cosine-similarity queries.
type VectorIndex interface {
	// Upsert adds a chunk batch as one logical write.
	Upsert(ctx context.Context, chunks []entities.Chunk) error

	// Search returns at most k hits with score >= minScore, ordered by
	// descending score, ties broken by chunk id.
	Search(ctx context.Context, vector []float32, k int, minScore float64) ([]entities.SearchHit, error)

	// DeleteByDocument removes every chunk of a document and reports how
	// many were removed.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// Stats summarizes index contents.
	Stats(ctx context.Context) (entities.IndexStats, error)

	// IsEmpty reports whether the index holds any chunks. The answer may be
	// cached for up to 30 seconds; writers invalidate the cache.
	IsEmpty(ctx context.Context) bool
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *entities.User) error
	UserByID(ctx context.Context, id string) (*entities.User, error)
	UserByUsername(ctx context.Context, username string) (*entities.User, error)
	UserByEmail(ctx context.Context, email string) (*entities.User, error)
	UserByResetToken(ctx context.Context, token string) (*entities.User, error)
	UpdateUser(ctx context.Context, u *entities.User) error
	ListUsers(ctx context.Context, filter UserFilter) ([]entities.User, int, error)
}

// UserFilter narrows and pages a user listing.
type UserFilter struct {
	Search   string // substring match on username or email
	Active   *bool
	Page     int
	PageSize int
}

// SessionStore owns sessions and their messages.
type SessionStore interface {
	CreateSession(ctx context.Context, userID string) (string, error)
	Session(ctx context.Context, sessionID string) (*entities.Session, error)
	// AppendPair writes a user message at ts and an assistant message at a
	// strictly later timestamp, serialized per session.
	AppendPair(ctx context.Context, sessionID, userText, assistantText string, ts time.Time) error
	// History returns the most recent limit messages, oldest first.
	History(ctx context.Context, sessionID string, limit int) ([]entities.Message, error)
	Touch(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
	// EvictInactive deletes sessions (and their messages) whose last
	// activity is older than the cutoff, returning the count removed.
	EvictInactive(ctx context.Context, cutoff time.Time) (int, error)
	SessionsByUser(ctx context.Context, userID string, limit int) ([]entities.Session, error)
	CountSessions(ctx context.Context, since time.Time) (int, error)
	CountMessages(ctx context.Context, since time.Time) (int, error)
}

// DocumentStore persists document records alongside the vector index.
type DocumentStore interface {
	CreateDocument(ctx context.Context, d *entities.DocumentRecord) error
	Document(ctx context.Context, id string) (*entities.DocumentRecord, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]entities.DocumentRecord, int, error)
}

// DocumentFilter narrows and pages a document listing.
type DocumentFilter struct {
	UploaderID string
	FileType   string
	Page       int
	PageSize   int
}

// ConfigStore persists typed dynamic settings.
type ConfigStore interface {
	AllSettings(ctx context.Context) ([]entities.ConfigSetting, error)
	Setting(ctx context.Context, name string) (*entities.ConfigSetting, error)
	// SaveSetting persists a validated value; callers validate first.
	SaveSetting(ctx context.Context, name string, value interface{}, updatedBy string) error
	// SeedSetting inserts a setting if absent, leaving existing values alone.
	SeedSetting(ctx context.Context, s entities.ConfigSetting) error
}

// ActivityStore appends and queries the admin audit trail.
type ActivityStore interface {
	AppendActivity(ctx context.Context, e *entities.ActivityEntry) error
	ListActivity(ctx context.Context, filter ActivityFilter) ([]entities.ActivityEntry, int, error)
}

// ActivityFilter narrows and pages an activity listing. AdminID selects
// actions performed by an admin; ResourceType/ResourceID select actions
// performed on a resource.
type ActivityFilter struct {
	AdminID      string
	Action       string
	ResourceType string
	ResourceID   string
	From         time.Time
	To           time.Time
	Page         int
	PageSize     int
}

// MetricsStore appends and aggregates API request samples.
type MetricsStore interface {
	RecordSample(ctx context.Context, s *entities.MetricSample) error
	// UsageSince aggregates samples recorded after the cutoff.
	UsageSince(ctx context.Context, cutoff time.Time) (UsageReport, error)
	// ErrorsSince lists samples with an error message after the cutoff.
	ErrorsSince(ctx context.Context, cutoff time.Time, limit int) ([]entities.MetricSample, error)
}

// EndpointUsage aggregates one endpoint's samples.
type EndpointUsage struct {
	Endpoint     string  `json:"endpoint"`
	Requests     int     `json:"requests"`
	Errors       int     `json:"errors"`
	AvgElapsedMS float64 `json:"avg_response_ms"`
}

// UsageReport is the api-usage aggregation.
type UsageReport struct {
	TotalRequests int             `json:"total_requests"`
	TotalErrors   int             `json:"total_errors"`
	ByEndpoint    []EndpointUsage `json:"by_endpoint"`
}

// Extractor turns an uploaded file into plain text.
type Extractor interface {
	// Extract returns the text content of data interpreted as fileType
	// (pdf, docx, txt).
	Extract(data []byte, fileType string) (string, error)
	SupportedTypes() []string
}

// Splitter cuts text into overlapping windows.
type Splitter interface {
	Split(text string) ([]string, error)
}
