package usecases

import (
	"context"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
	"github.com/finassist/finassist-go/internal/settings"
)

func testSnapshot() settings.Snapshot {
	return settings.Snapshot{
		ChunkSize:            100,
		ChunkOverlap:         0,
		TopK:                 5,
		SimilarityThreshold:  0.7,
		MaxConversationTurns: 20,
		MaxFileSizeMB:        10,
		Temperature:          0.7,
		MaxTokens:            500,
		ChatModel:            "models/test-chat",
		EmbeddingModel:       "models/test-embed",
	}
}

func snapshotFn(snap settings.Snapshot) func() settings.Snapshot {
	return func() settings.Snapshot { return snap }
}

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
	batchFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return []float32{1, 0}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.batchFn != nil {
		return m.batchFn(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type mockIndex struct {
	empty      bool
	hits       []entities.SearchHit
	searchErr  error
	upsertErr  error
	upserted   [][]entities.Chunk
	deletedIDs []string
	deleteN    int
	deleteErr  error
}

func (m *mockIndex) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, chunks)
	return nil
}

func (m *mockIndex) Search(ctx context.Context, vector []float32, k int, minScore float64) ([]entities.SearchHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	hits := m.hits
	if len(hits) > k {
		hits = hits[:k]
	}
	var out []entities.SearchHit
	for _, h := range hits {
		if h.Score >= minScore {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockIndex) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	m.deletedIDs = append(m.deletedIDs, documentID)
	return m.deleteN, m.deleteErr
}

func (m *mockIndex) Stats(ctx context.Context) (entities.IndexStats, error) {
	return entities.IndexStats{}, nil
}

func (m *mockIndex) IsEmpty(ctx context.Context) bool { return m.empty }

type mockLLM struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts ports.GenerationOptions) (string, error) {
	i := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return "answer", nil
}

type mockSessions struct {
	sessions map[string]*entities.Session
	history  []entities.Message
	pairs    [][2]string
	created  int
}

func newMockSessions() *mockSessions {
	return &mockSessions{sessions: map[string]*entities.Session{}}
}

func (m *mockSessions) CreateSession(ctx context.Context, userID string) (string, error) {
	m.created++
	id := "session-" + userID
	m.sessions[id] = &entities.Session{ID: id, UserID: userID}
	return id, nil
}

func (m *mockSessions) Session(ctx context.Context, sessionID string) (*entities.Session, error) {
	return m.sessions[sessionID], nil
}

func (m *mockSessions) AppendPair(ctx context.Context, sessionID, userText, assistantText string, ts time.Time) error {
	m.pairs = append(m.pairs, [2]string{userText, assistantText})
	return nil
}

func (m *mockSessions) History(ctx context.Context, sessionID string, limit int) ([]entities.Message, error) {
	if limit < len(m.history) {
		return m.history[len(m.history)-limit:], nil
	}
	return m.history, nil
}

func (m *mockSessions) Touch(ctx context.Context, sessionID string) error  { return nil }
func (m *mockSessions) DeleteSession(ctx context.Context, id string) error { return nil }
func (m *mockSessions) EvictInactive(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}
func (m *mockSessions) SessionsByUser(ctx context.Context, userID string, limit int) ([]entities.Session, error) {
	return nil, nil
}
func (m *mockSessions) CountSessions(ctx context.Context, since time.Time) (int, error) {
	return len(m.sessions), nil
}
func (m *mockSessions) CountMessages(ctx context.Context, since time.Time) (int, error) {
	return 2 * len(m.pairs), nil
}

type mockExtractor struct {
	text string
	err  error
}

func (m *mockExtractor) Extract(data []byte, fileType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.text != "" {
		return m.text, nil
	}
	return string(data), nil
}

func (m *mockExtractor) SupportedTypes() []string { return []string{"pdf", "docx", "txt"} }

type mockDocs struct {
	records   []*entities.DocumentRecord
	createErr error
	deleted   []string
}

func (m *mockDocs) CreateDocument(ctx context.Context, d *entities.DocumentRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.records = append(m.records, d)
	return nil
}

func (m *mockDocs) Document(ctx context.Context, id string) (*entities.DocumentRecord, error) {
	for _, d := range m.records {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

func (m *mockDocs) DeleteDocument(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockDocs) ListDocuments(ctx context.Context, f ports.DocumentFilter) ([]entities.DocumentRecord, int, error) {
	out := make([]entities.DocumentRecord, len(m.records))
	for i, d := range m.records {
		out[i] = *d
	}
	return out, len(out), nil
}

// windowSplitter cuts text into fixed windows without overlap; good enough
// to exercise the pipeline deterministically.
type windowSplitter struct{ size int }

func (w windowSplitter) Split(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	var chunks []string
	runes := []rune(text)
	for start := 0; start < len(runes); start += w.size {
		end := start + w.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

func windowSplitterFactory(size, overlap int) ports.Splitter {
	return windowSplitter{size: size}
}
