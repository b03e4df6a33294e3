package vectordb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
)

// MemoryIndex is an in-memory vector index used by tests and as a fallback
// when persistence is not wanted.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks map[string]entities.Chunk   // chunkID -> chunk
	docs   map[string][]string         // docID -> []chunkID
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		chunks: make(map[string]entities.Chunk),
		docs:   make(map[string][]string),
	}
}

// Upsert adds a chunk batch.
func (s *MemoryIndex) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if _, exists := s.chunks[chunk.ID]; !exists {
			s.docs[chunk.DocumentID] = append(s.docs[chunk.DocumentID], chunk.ID)
		}
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// Search scores every chunk and returns the top k above minScore, ties
// broken by chunk id.
func (s *MemoryIndex) Search(ctx context.Context, vector []float32, k int, minScore float64) ([]entities.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []entities.SearchHit
	for _, chunk := range s.chunks {
		score := cosineSimilarity(vector, chunk.Embedding)
		if score < minScore {
			continue
		}
		hits = append(hits, entities.SearchHit{
			ChunkID:  chunk.ID,
			Text:     chunk.Text,
			Metadata: chunk.Metadata,
			Score:    score,
		})
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
func (s *MemoryIndex) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.docs[documentID]
	for _, id := range ids {
		delete(s.chunks, id)
	}
	delete(s.docs, documentID)
	return len(ids), nil
}

// Stats summarizes index contents.
func (s *MemoryIndex) Stats(ctx context.Context) (entities.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := entities.IndexStats{
		TotalChunks:   len(s.chunks),
		ChunksByType:  map[string]int{},
		RecentUploads: map[string]int{},
	}
	cutoff := time.Now().AddDate(0, 0, -7)
	seenDocs := map[string]bool{}
	for _, chunk := range s.chunks {
		stats.ChunksByType[chunk.Metadata.FileType]++
		if !seenDocs[chunk.DocumentID] {
			seenDocs[chunk.DocumentID] = true
			stats.TotalDocuments++
			if chunk.Metadata.UploadedAt.After(cutoff) {
				stats.RecentUploads[chunk.Metadata.UploadedAt.Format("2006-01-02")]++
			}
		}
	}
	return stats, nil
}

// IsEmpty reports whether the index holds any chunks.
func (s *MemoryIndex) IsEmpty(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks) == 0
}
