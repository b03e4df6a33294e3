// Package embedding provides the Gemini embedding adapter.
// It implements ports.EmbeddingService; the domain layer never sees
// Gemini request or response shapes.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
)

// batchLimit is the maximum number of contents the batch endpoint accepts
// in one request.
const batchLimit = 100

// GeminiAdapter implements ports.EmbeddingService against the Gemini REST API.
type GeminiAdapter struct {
	baseURL string
	apiKey  string
	modelFn func() string
	client  *http.Client
}

// NewGeminiAdapter creates the adapter. modelFn resolves the embedding model
// per call so admin config changes apply without a restart.
func NewGeminiAdapter(baseURL, apiKey string, modelFn func() string) *GeminiAdapter {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GeminiAdapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		modelFn: modelFn,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type embedRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed generates a query embedding for a single text.
func (a *GeminiAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	model := a.modelFn()
	reqBody := embedRequest{
		Model:    model,
		Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType: "RETRIEVAL_QUERY",
	}

	var resp embedResponse
	if err := a.post(ctx, model+":embedContent", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, entities.NewError(entities.KindUpstream, "embedding service returned an empty vector")
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch generates document embeddings for multiple texts, splitting
// into API-sized batches. Result order matches input order.
func (a *GeminiAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	model := a.modelFn()
	embeddings := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += batchLimit {
		end := start + batchLimit
		if end > len(texts) {
			end = len(texts)
		}

		reqBody := batchEmbedRequest{}
		for _, text := range texts[start:end] {
			reqBody.Requests = append(reqBody.Requests, embedRequest{
				Model:    model,
				Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
				TaskType: "RETRIEVAL_DOCUMENT",
			})
		}

		var resp batchEmbedResponse
		if err := a.post(ctx, model+":batchEmbedContents", reqBody, &resp); err != nil {
			return nil, fmt.Errorf("embedding batch at offset %d: %w", start, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, entities.NewError(entities.KindUpstream,
				"embedding service returned %d vectors for %d texts", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			embeddings = append(embeddings, e.Values)
		}
	}
	return embeddings, nil
}

func (a *GeminiAdapter) post(ctx context.Context, path string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		a.baseURL+"/"+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return entities.WrapError(entities.KindUpstream, err, "calling embedding service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, resp.Body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// classifyStatus maps an upstream failure to a domain error kind. Throttling
// and server-side failures are Upstream (callers may retry); client-side
// failures point at our request or credentials and are Internal.
func classifyStatus(status int, body io.Reader) error {
	snippet, _ := io.ReadAll(io.LimitReader(body, 512))
	if status == http.StatusTooManyRequests || status >= 500 {
		return entities.NewError(entities.KindUpstream,
			"embedding service returned status %d: %s", status, snippet)
	}
	return entities.NewError(entities.KindInternal,
		"embedding service rejected request with status %d: %s", status, snippet)
}
