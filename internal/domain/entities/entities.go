// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import "time"

// User is a registered account. The password hash never leaves the domain;
// PublicView strips it (and the reset token) for transport.
type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	FullName       string
	Active         bool
	Admin          bool
	MustReset      bool
	ResetToken     string
	ResetTokenAt   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLoginAt    time.Time
}

// PublicUser is the transport-safe projection of a User.
type PublicUser struct {
	ID          string     `json:"user_id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name,omitempty"`
	Active      bool       `json:"is_active"`
	Admin       bool       `json:"is_admin"`
	MustReset   bool       `json:"must_reset"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login,omitempty"`
}

// PublicView returns the user without credential material.
func (u *User) PublicView() PublicUser {
	pv := PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Active:    u.Active,
		Admin:     u.Admin,
		MustReset: u.MustReset,
		CreatedAt: u.CreatedAt,
	}
	if !u.LastLoginAt.IsZero() {
		t := u.LastLoginAt
		pv.LastLoginAt = &t
	}
	return pv
}

// Session is an owned conversation thread.
type Session struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	LastActivity time.Time
}

// Message is one conversation turn. Append-only.
type Message struct {
	ID        int64
	SessionID string
	Role      string // "user" or "assistant"
	Content   string
	Timestamp time.Time
}

// DocumentRecord describes an ingested document; it lives as long as its chunks.
type DocumentRecord struct {
	ID               string
	Filename         string
	UploaderID       string
	UploaderUsername string
	UploadedAt       time.Time
	FileType         string
	ChunkCount       int
	SizeBytes        int64
}

// Chunk is a bounded window of document text plus its embedding.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Embedding  []float32
	Metadata   ChunkMetadata
}

// ChunkMetadata travels with every chunk into the vector index so that
// admin queries can resolve uploader linkage without a join.
type ChunkMetadata struct {
	DocumentID       string    `json:"document_id"`
	ChunkIndex       int       `json:"chunk_index"`
	Filename         string    `json:"filename"`
	UploadedAt       time.Time `json:"upload_date"`
	FileType         string    `json:"file_type"`
	SizeBytes        int64     `json:"file_size_bytes"`
	UploaderID       string    `json:"uploader_user_id"`
	UploaderUsername string    `json:"uploader_username"`
}

// SearchHit is one similarity-search result. Score is normalized to [0,1].
type SearchHit struct {
	ChunkID  string
	Text     string
	Metadata ChunkMetadata
	Score    float64
}

// IndexStats summarizes the vector index contents.
type IndexStats struct {
	TotalChunks     int            `json:"total_chunks"`
	TotalDocuments  int            `json:"total_documents"`
	ChunksByType    map[string]int `json:"chunks_by_file_type"`
	RecentUploads   map[string]int `json:"uploads_last_7_days"` // day (2006-01-02) -> document count
}

// Source is a citation attached to a chat answer. ChunkText is truncated
// to 200 characters for transport; Score is preserved unrounded.
type Source struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkText  string  `json:"chunk_text"`
	Score      float64 `json:"relevance_score"`
}

// ChatResult is the outcome of one RAG query.
type ChatResult struct {
	Answer    string   `json:"response"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
}

// IngestResult is the outcome of one document ingestion.
type IngestResult struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunks_created"`
	UploadedAt time.Time `json:"upload_date"`
}

// ConfigSetting is a dynamically tunable setting with a typed value.
// Value and DefaultValue hold one of int64, float64, string, bool,
// matching DataType.
type ConfigSetting struct {
	Name         string      `json:"setting_name"`
	Value        interface{} `json:"value"`
	DefaultValue interface{} `json:"default_value"`
	DataType     string      `json:"data_type"` // int, float, string, bool
	MinValue     *float64    `json:"min_value,omitempty"`
	MaxValue     *float64    `json:"max_value,omitempty"`
	Category     string      `json:"category"`
	Description  string      `json:"description"`
	UpdatedAt    *time.Time  `json:"updated_at,omitempty"`
	UpdatedBy    string      `json:"updated_by,omitempty"`
}

// ActivityEntry is one record of the append-only admin audit trail.
type ActivityEntry struct {
	ID            int64                  `json:"id"`
	AdminID       string                 `json:"admin_id"`
	AdminUsername string                 `json:"admin_username"`
	Action        string                 `json:"action_type"`
	ResourceType  string                 `json:"resource_type"`
	ResourceID    string                 `json:"resource_id"`
	Details       map[string]interface{} `json:"details"`
	ClientAddr    string                 `json:"ip_address,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Result        string                 `json:"result"` // success or failure
}

// MetricSample is one API request measurement. Append-only.
type MetricSample struct {
	Endpoint  string
	Method    string
	Status    int
	ElapsedMS int64
	Timestamp time.Time
	UserID    string
	ErrorMsg  string
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Activity results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)
