package usecases

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finassist/finassist-go/internal/domain/entities"
)

func newQueryEngine(idx *mockIndex, llm *mockLLM, sessions *mockSessions, emb *mockEmbedder) *QueryUseCase {
	uc := NewQueryUseCase(emb, idx, llm, sessions, snapshotFn(testSnapshot()), zerolog.Nop())
	uc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return uc
}

func hit(docID, chunkID, filename, text string, score float64) entities.SearchHit {
	return entities.SearchHit{
		ChunkID: chunkID,
		Text:    text,
		Score:   score,
		Metadata: entities.ChunkMetadata{
			DocumentID: docID,
			Filename:   filename,
		},
	}
}

func TestQueryHappyPath(t *testing.T) {
	idx := &mockIndex{hits: []entities.SearchHit{
		hit("doc_1", "doc_1_chunk_0", "report.pdf", "Revenue grew 12% in Q3.", 0.92),
		hit("doc_2", "doc_2_chunk_3", "notes.txt", "Margins held steady.", 0.81),
	}}
	llm := &mockLLM{responses: []string{"Revenue grew 12%, margins steady."}}
	sessions := newMockSessions()

	uc := newQueryEngine(idx, llm, sessions, &mockEmbedder{})
	res, err := uc.Query(context.Background(), "u1", "How did Q3 go?", "")
	require.NoError(t, err)

	assert.Equal(t, "Revenue grew 12%, margins steady.", res.Answer)
	assert.Equal(t, "session-u1", res.SessionID)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, "doc_1", res.Sources[0].DocumentID)
	assert.Equal(t, 0.92, res.Sources[0].Score)
	require.Len(t, sessions.pairs, 1)
	assert.Equal(t, "How did Q3 go?", sessions.pairs[0][0])

	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "=== RELEVANT FINANCIAL DOCUMENTS ===")
	assert.Contains(t, prompt, "[Document 1: report.pdf]")
	assert.Contains(t, prompt, "=== CURRENT QUESTION ===")
	assert.NotContains(t, prompt, "=== CONVERSATION HISTORY ===", "empty history must be omitted")
}

func TestQueryIncludesHistory(t *testing.T) {
	idx := &mockIndex{hits: []entities.SearchHit{hit("doc_1", "doc_1_chunk_0", "a.pdf", "text", 0.9)}}
	llm := &mockLLM{}
	sessions := newMockSessions()
	sessions.history = []entities.Message{
		{Role: entities.RoleUser, Content: "What is EBITDA?"},
		{Role: entities.RoleAssistant, Content: "Earnings before interest..."},
	}

	uc := newQueryEngine(idx, llm, sessions, &mockEmbedder{})
	_, err := uc.Query(context.Background(), "u1", "And net income?", "")
	require.NoError(t, err)

	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "=== CONVERSATION HISTORY ===")
	assert.Contains(t, prompt, "USER: What is EBITDA?")
	assert.Contains(t, prompt, "ASSISTANT: Earnings before interest...")
	// History precedes the current question.
	assert.Less(t, strings.Index(prompt, "=== CONVERSATION HISTORY ==="),
		strings.Index(prompt, "=== CURRENT QUESTION ==="))
}

func TestQueryValidatesLength(t *testing.T) {
	uc := newQueryEngine(&mockIndex{}, &mockLLM{}, newMockSessions(), &mockEmbedder{})

	_, err := uc.Query(context.Background(), "u1", "   ", "")
	require.Error(t, err)
	assert.True(t, entities.IsKind(err, entities.KindValidation))

	_, err = uc.Query(context.Background(), "u1", strings.Repeat("x", 2001), "")
	require.Error(t, err)
	assert.True(t, entities.IsKind(err, entities.KindValidation))
}

func TestQueryRejectsForeignSession(t *testing.T) {
	sessions := newMockSessions()
	other, err := sessions.CreateSession(context.Background(), "other-user")
	require.NoError(t, err)

	uc := newQueryEngine(&mockIndex{empty: true}, &mockLLM{}, sessions, &mockEmbedder{})
	_, err = uc.Query(context.Background(), "u1", "hello", other)
	require.Error(t, err)
	assert.True(t, entities.IsKind(err, entities.KindAuthorization))
}

func TestQueryRecreatesMissingSession(t *testing.T) {
	sessions := newMockSessions()
	llm := &mockLLM{responses: []string{"general answer"}}

	uc := newQueryEngine(&mockIndex{empty: true}, llm, sessions, &mockEmbedder{})
	res, err := uc.Query(context.Background(), "u1", "what is a bond", "gone-session")
	require.NoError(t, err)
	assert.Equal(t, "session-u1", res.SessionID)
	assert.Equal(t, 1, sessions.created)
}

func TestQueryEmptyIndexSkipsEmbedding(t *testing.T) {
	embedCalls := 0
	emb := &mockEmbedder{embedFn: func(ctx context.Context, text string) ([]float32, error) {
		embedCalls++
		return []float32{1}, nil
	}}
	llm := &mockLLM{responses: []string{"From general knowledge: a bond is..."}}
	sessions := newMockSessions()

	uc := newQueryEngine(&mockIndex{empty: true}, llm, sessions, emb)
	res, err := uc.Query(context.Background(), "u1", "what is a bond", "")
	require.NoError(t, err)

	assert.Equal(t, 0, embedCalls, "empty index must elide the embedding call")
	assert.Empty(t, res.Sources)
	assert.NotNil(t, res.Sources, "sources must be [] not null")
	require.Len(t, sessions.pairs, 1)
	assert.Contains(t, llm.prompts[0], "determine if the question is related to finance")
}

func TestQueryEmbedFailureFallsBackToNoContext(t *testing.T) {
	emb := &mockEmbedder{embedFn: func(ctx context.Context, text string) ([]float32, error) {
		return nil, entities.NewError(entities.KindUpstream, "embed down")
	}}
	llm := &mockLLM{responses: []string{"fallback answer"}}

	uc := newQueryEngine(&mockIndex{hits: []entities.SearchHit{hit("d", "c", "f", "t", 0.9)}}, llm, newMockSessions(), emb)
	res, err := uc.Query(context.Background(), "u1", "question", "")
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", res.Answer)
	assert.Empty(t, res.Sources)
}

func TestQueryBelowThresholdGoesNoContext(t *testing.T) {
	idx := &mockIndex{hits: []entities.SearchHit{hit("doc_1", "c", "f.pdf", "text", 0.4)}}
	llm := &mockLLM{responses: []string{"no-context answer"}}

	uc := newQueryEngine(idx, llm, newMockSessions(), &mockEmbedder{})
	res, err := uc.Query(context.Background(), "u1", "question", "")
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	assert.Equal(t, "no-context answer", res.Answer)
}

func TestQueryNoContextGenerationFailureReturnsCannedAnswer(t *testing.T) {
	llm := &mockLLM{errs: []error{entities.NewError(entities.KindUpstream, "llm down")}}
	sessions := newMockSessions()

	uc := newQueryEngine(&mockIndex{empty: true}, llm, sessions, &mockEmbedder{})
	res, err := uc.Query(context.Background(), "u1", "what's the weather", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Answer, "I'm a financial assistant"))
	require.Len(t, sessions.pairs, 1, "fallback answer is still persisted")
}

func TestGenerateRetriesTransientErrors(t *testing.T) {
	idx := &mockIndex{hits: []entities.SearchHit{hit("d", "c", "f", "t", 0.9)}}
	llm := &mockLLM{
		errs: []error{
			entities.NewError(entities.KindUpstream, "503"),
			entities.NewError(entities.KindUpstream, "503"),
		},
		responses: []string{"", "", "third time lucky"},
	}

	var backoffs []time.Duration
	uc := newQueryEngine(idx, llm, newMockSessions(), &mockEmbedder{})
	uc.sleep = func(ctx context.Context, d time.Duration) error {
		backoffs = append(backoffs, d)
		return nil
	}

	res, err := uc.Query(context.Background(), "u1", "question", "")
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", res.Answer)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, backoffs)
}

func TestGenerateExhaustsRetries(t *testing.T) {
	idx := &mockIndex{hits: []entities.SearchHit{hit("d", "c", "f", "t", 0.9)}}
	upstream := entities.NewError(entities.KindUpstream, "503")
	llm := &mockLLM{errs: []error{upstream, upstream, upstream}}

	uc := newQueryEngine(idx, llm, newMockSessions(), &mockEmbedder{})
	_, err := uc.Query(context.Background(), "u1", "question", "")
	require.Error(t, err)
	assert.True(t, entities.IsKind(err, entities.KindUpstream))
	assert.Equal(t, 3, llm.calls)
}

func TestGenerateDoesNotRetryNonTransient(t *testing.T) {
	idx := &mockIndex{hits: []entities.SearchHit{hit("d", "c", "f", "t", 0.9)}}
	llm := &mockLLM{errs: []error{entities.NewError(entities.KindInternal, "bad request")}}

	uc := newQueryEngine(idx, llm, newMockSessions(), &mockEmbedder{})
	_, err := uc.Query(context.Background(), "u1", "question", "")
	require.Error(t, err)
	assert.Equal(t, 1, llm.calls)
}

func TestSourcesDedupedByDocument(t *testing.T) {
	long := strings.Repeat("a", 300)
	idx := &mockIndex{hits: []entities.SearchHit{
		hit("doc_1", "doc_1_chunk_0", "r.pdf", long, 0.95),
		hit("doc_1", "doc_1_chunk_4", "r.pdf", "later chunk", 0.90),
		hit("doc_2", "doc_2_chunk_0", "n.txt", "short", 0.85),
	}}
	llm := &mockLLM{}

	uc := newQueryEngine(idx, llm, newMockSessions(), &mockEmbedder{})
	res, err := uc.Query(context.Background(), "u1", "question", "")
	require.NoError(t, err)

	require.Len(t, res.Sources, 2)
	assert.Equal(t, "doc_1", res.Sources[0].DocumentID)
	assert.Len(t, []rune(res.Sources[0].ChunkText), 203, "200 runes plus ellipsis")
	assert.Equal(t, "short", res.Sources[1].ChunkText)
	assert.Equal(t, 0.85, res.Sources[1].Score)
}

func TestTopKOneYieldsSingleSource(t *testing.T) {
	snap := testSnapshot()
	snap.TopK = 1
	idx := &mockIndex{hits: []entities.SearchHit{
		hit("doc_1", "a", "f1", "best", 0.95),
		hit("doc_2", "b", "f2", "second", 0.90),
	}}
	llm := &mockLLM{}
	uc := NewQueryUseCase(&mockEmbedder{}, idx, llm, newMockSessions(), snapshotFn(snap), zerolog.Nop())

	res, err := uc.Query(context.Background(), "u1", "question", "")
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "doc_1", res.Sources[0].DocumentID)
}
