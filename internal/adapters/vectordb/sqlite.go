// Package vectordb provides vector index adapters.
// The SQLite index keeps embeddings as JSON blobs and answers similarity
// queries with a brute-force cosine scan, which is adequate for the corpus
// sizes this service targets.
package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const emptyCacheTTL = 30 * time.Second

// SQLiteIndex implements ports.VectorIndex with SQLite-based persistence.
type SQLiteIndex struct {
	mu sync.RWMutex
	db *sql.DB

	// is-empty answer cached to keep the hot chat path off the database.
	emptyMu      sync.Mutex
	emptyCached  bool
	emptyValue   bool
	emptyChecked time.Time
}

// NewSQLiteIndex creates (or opens) the persistent vector index under dataPath.
func NewSQLiteIndex(dataPath string) (*SQLiteIndex, error) {
	if dataPath == "" {
		dataPath = "./data"
	}
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "vectors.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Upsert writes a chunk batch as one transaction. Either every chunk lands
// or none do.
func (s *SQLiteIndex) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, document_id, chunk_index, content, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		metaJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.DocumentID, chunk.Index, chunk.Text,
			embeddingJSON, string(metaJSON)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.invalidateEmptyCache()
	return nil
}

// Search scans every stored chunk and returns at most k hits scoring at
// least minScore, best first. Equal scores are ordered by chunk id so
// repeated queries return a stable ranking.
func (s *SQLiteIndex) Search(ctx context.Context, vector []float32, k int, minScore float64) ([]entities.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, embedding, metadata FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var hits []entities.SearchHit
	for rows.Next() {
		var hit entities.SearchHit
		var embeddingJSON []byte
		var metaJSON string
		if err := rows.Scan(&hit.ChunkID, &hit.Text, &embeddingJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var embedding []float32
		if err := json.Unmarshal(embeddingJSON, &embedding); err != nil {
			continue // skip corrupted embeddings
		}
		if err := json.Unmarshal([]byte(metaJSON), &hit.Metadata); err != nil {
			continue
		}

		hit.Score = cosineSimilarity(vector, embedding)
		if hit.Score < minScore {
			continue
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteByDocument removes every chunk of a document.
func (s *SQLiteIndex) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.invalidateEmptyCache()
	}
	return int(n), nil
}

// Stats summarizes the index: chunk and document totals, per-file-type chunk
// counts, and a document-count histogram over the trailing seven days.
func (s *SQLiteIndex) Stats(ctx context.Context) (entities.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := entities.IndexStats{
		ChunksByType:  map[string]int{},
		RecentUploads: map[string]int{},
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT document_id) FROM chunks").
		Scan(&stats.TotalChunks, &stats.TotalDocuments); err != nil {
		return stats, fmt.Errorf("counting chunks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT metadata FROM chunks")
	if err != nil {
		return stats, fmt.Errorf("querying metadata: %w", err)
	}
	defer rows.Close()

	cutoff := time.Now().AddDate(0, 0, -7)
	seenDocs := map[string]bool{}
	for rows.Next() {
		var metaJSON string
		if err := rows.Scan(&metaJSON); err != nil {
			return stats, fmt.Errorf("scanning metadata: %w", err)
		}
		var meta entities.ChunkMetadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			continue
		}
		stats.ChunksByType[meta.FileType]++
		if !seenDocs[meta.DocumentID] && meta.UploadedAt.After(cutoff) {
			seenDocs[meta.DocumentID] = true
			stats.RecentUploads[meta.UploadedAt.Format("2006-01-02")]++
		}
	}
	return stats, rows.Err()
}

// IsEmpty reports whether the index holds any chunks, caching the answer
// for up to 30 seconds. Upsert and DeleteByDocument invalidate the cache.
func (s *SQLiteIndex) IsEmpty(ctx context.Context) bool {
	s.emptyMu.Lock()
	defer s.emptyMu.Unlock()

	if s.emptyCached && time.Since(s.emptyChecked) < emptyCacheTTL {
		return s.emptyValue
	}

	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM chunks)").Scan(&n); err != nil {
		// Treat a failed probe as non-empty so queries still attempt retrieval.
		return false
	}
	s.emptyValue = n == 0
	s.emptyCached = true
	s.emptyChecked = time.Now()
	return s.emptyValue
}

func (s *SQLiteIndex) invalidateEmptyCache() {
	s.emptyMu.Lock()
	s.emptyCached = false
	s.emptyMu.Unlock()
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
