package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
	"github.com/finassist/finassist-go/internal/settings"
)

const (
	maxQueryLen      = 2000
	maxGenRetries    = 2
	sourcePreviewLen = 200
)

const systemInstructions = `You are a helpful financial assistant. Your role is to provide accurate,
context-aware answers to financial questions based on the provided documents.

Guidelines:
- Answer questions based ONLY on the provided context from financial documents
- If the context doesn't contain enough information to answer the question, clearly state that
- Be concise and professional in your responses
- Cite specific information from the documents when relevant
- If asked about topics not covered in the documents, politely indicate the limitation`

// fallbackAnswer is returned when even the no-context generation call fails.
const fallbackAnswer = "I'm a financial assistant specialized in finance-related topics. " +
	"I can only answer questions related to finance, accounting, investments, " +
	"economics, banking, and other financial matters. Please ask me a question " +
	"related to finance, or upload financial documents for more specific assistance."

// QueryUseCase runs the retrieval-augmented answer pipeline: similarity
// retrieval with thresholding, prompt assembly with bounded history, and
// bounded-retry generation. When no useful retrieval is available it falls
// back to a single combined classify-and-answer call.
type QueryUseCase struct {
	embedder ports.EmbeddingService
	index    ports.VectorIndex
	llm      ports.LLMService
	sessions ports.SessionStore
	snapshot func() settings.Snapshot
	log      zerolog.Logger

	// sleep is replaceable so tests do not wait out the backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(
	embedder ports.EmbeddingService,
	index ports.VectorIndex,
	llm ports.LLMService,
	sessions ports.SessionStore,
	snapshot func() settings.Snapshot,
	log zerolog.Logger,
) *QueryUseCase {
	return &QueryUseCase{
		embedder: embedder,
		index:    index,
		llm:      llm,
		sessions: sessions,
		snapshot: snapshot,
		log:      log.With().Str("component", "rag").Logger(),
		sleep:    sleepCtx,
	}
}

// Query answers one user question, creating or reusing a session.
func (uc *QueryUseCase) Query(ctx context.Context, userID, query, sessionID string) (*entities.ChatResult, error) {
	query = strings.TrimSpace(query)
	if n := utf8.RuneCountInString(query); n == 0 || n > maxQueryLen {
		return nil, entities.NewError(entities.KindValidation,
			"query must be between 1 and %d characters", maxQueryLen)
	}

	snap := uc.snapshot()
	sessionID, err := uc.ensureSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	history, err := uc.sessions.History(ctx, sessionID, 2*snap.MaxConversationTurns)
	if err != nil {
		uc.log.Warn().Err(err).Str("session_id", sessionID).Msg("loading history failed; continuing without it")
		history = nil
	}

	hits := uc.retrieve(ctx, query, snap)
	if len(hits) == 0 {
		return uc.handleNoContext(ctx, sessionID, query, snap)
	}

	prompt := buildPrompt(query, hits, history)
	answer, err := uc.generateWithRetry(ctx, prompt, snap)
	if err != nil {
		return nil, err
	}

	if err := uc.sessions.AppendPair(ctx, sessionID, query, answer, time.Now()); err != nil {
		return nil, entities.WrapError(entities.KindInternal, err, "persisting conversation")
	}

	return &entities.ChatResult{
		Answer:    answer,
		Sources:   projectSources(hits),
		SessionID: sessionID,
	}, nil
}

// ensureSession creates a session when none is given or the given one no
// longer exists. A session owned by a different user is rejected.
func (uc *QueryUseCase) ensureSession(ctx context.Context, userID, sessionID string) (string, error) {
	if sessionID != "" {
		sess, err := uc.sessions.Session(ctx, sessionID)
		if err != nil {
			return "", entities.WrapError(entities.KindInternal, err, "loading session")
		}
		if sess != nil {
			if sess.UserID != userID {
				return "", entities.NewError(entities.KindAuthorization, "session belongs to another user")
			}
			return sessionID, nil
		}
		uc.log.Warn().Str("session_id", sessionID).Msg("session not found, creating a new one")
	}
	id, err := uc.sessions.CreateSession(ctx, userID)
	if err != nil {
		return "", entities.WrapError(entities.KindInternal, err, "creating session")
	}
	return id, nil
}

// retrieve returns the thresholded top-k hits for the query, or nil when
// the index is empty or retrieval degrades. Retrieval failures never fail
// the query; they route it to the no-context path.
func (uc *QueryUseCase) retrieve(ctx context.Context, query string, snap settings.Snapshot) []entities.SearchHit {
	if uc.index.IsEmpty(ctx) {
		uc.log.Debug().Msg("index is empty, skipping retrieval")
		return nil
	}

	vector, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		uc.log.Warn().Err(err).Msg("query embedding failed; falling back to no-context answer")
		return nil
	}

	hits, err := uc.index.Search(ctx, vector, snap.TopK, snap.SimilarityThreshold)
	if err != nil {
		uc.log.Warn().Err(err).Msg("similarity search failed; falling back to no-context answer")
		return nil
	}
	return hits
}

// handleNoContext issues one combined classify-and-answer call. The model
// decides whether the question is in the financial domain; the code does
// not. Failures degrade to a canned refusal rather than an error.
func (uc *QueryUseCase) handleNoContext(ctx context.Context, sessionID, query string, snap settings.Snapshot) (*entities.ChatResult, error) {
	prompt := fmt.Sprintf(`You are a financial assistant. Analyze the following question and respond accordingly:

1. First, determine if the question is related to finance, accounting, economics, investments, banking, or financial topics.
2. If it IS finance-related: Provide a helpful, accurate answer using your general knowledge. Keep it concise and professional. If specific data would help, mention that uploading documents would provide more accurate answers.
3. If it is NOT finance-related: Politely explain that you only handle finance-related questions and ask the user to ask about finance topics.

Question: %s

Your response:`, query)

	answer, err := uc.llm.Generate(ctx, prompt, generationOpts(snap))
	if err != nil {
		uc.log.Error().Err(err).Msg("no-context generation failed, returning canned answer")
		answer = fallbackAnswer
	}

	if err := uc.sessions.AppendPair(ctx, sessionID, query, answer, time.Now()); err != nil {
		return nil, entities.WrapError(entities.KindInternal, err, "persisting conversation")
	}
	return &entities.ChatResult{
		Answer:    answer,
		Sources:   []entities.Source{},
		SessionID: sessionID,
	}, nil
}

// generateWithRetry retries transient provider failures up to twice with
// 1s then 2s backoff. Non-transient failures surface immediately.
func (uc *QueryUseCase) generateWithRetry(ctx context.Context, prompt string, snap settings.Snapshot) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxGenRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			uc.log.Warn().Err(lastErr).Dur("backoff", backoff).Int("attempt", attempt).Msg("retrying generation")
			if err := uc.sleep(ctx, backoff); err != nil {
				return "", err
			}
		}
		answer, err := uc.llm.Generate(ctx, prompt, generationOpts(snap))
		if err == nil {
			return answer, nil
		}
		if !entities.IsKind(err, entities.KindUpstream) {
			return "", err
		}
		lastErr = err
	}
	return "", entities.WrapError(entities.KindUpstream, lastErr,
		"generation failed after %d attempts", maxGenRetries+1)
}

// buildPrompt assembles four labeled regions in fixed order: system
// instructions, retrieved documents, conversation history, current
// question. Empty history is omitted rather than emitted as an empty
// section.
func buildPrompt(query string, hits []entities.SearchHit, history []entities.Message) string {
	var sb strings.Builder
	sb.WriteString(systemInstructions)

	sb.WriteString("\n\n=== RELEVANT FINANCIAL DOCUMENTS ===\n")
	for i, hit := range hits {
		filename := hit.Metadata.Filename
		if filename == "" {
			filename = "Unknown"
		}
		fmt.Fprintf(&sb, "\n[Document %d: %s]\n%s\n", i+1, filename, hit.Text)
	}

	if len(history) > 0 {
		sb.WriteString("\n\n=== CONVERSATION HISTORY ===\n")
		for _, msg := range history {
			fmt.Fprintf(&sb, "\n%s: %s\n", strings.ToUpper(msg.Role), msg.Content)
		}
	}

	fmt.Fprintf(&sb, "\n\n=== CURRENT QUESTION ===\n%s\n\nPlease provide a helpful answer based on the context above.", query)
	return sb.String()
}

// projectSources emits one source per document that appears in the prompt,
// first hit wins, chunk text truncated for transport.
func projectSources(hits []entities.SearchHit) []entities.Source {
	sources := make([]entities.Source, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, hit := range hits {
		docID := hit.Metadata.DocumentID
		if seen[docID] {
			continue
		}
		seen[docID] = true
		sources = append(sources, entities.Source{
			DocumentID: docID,
			Filename:   hit.Metadata.Filename,
			ChunkText:  truncateRunes(hit.Text, sourcePreviewLen),
			Score:      hit.Score,
		})
	}
	return sources
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func generationOpts(snap settings.Snapshot) ports.GenerationOptions {
	return ports.GenerationOptions{
		Model:       snap.ChatModel,
		Temperature: snap.Temperature,
		MaxTokens:   snap.MaxTokens,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
