// Package llm provides the Gemini chat-completion adapter.
// It implements ports.LLMService.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
)

// GeminiAdapter implements ports.LLMService against the Gemini REST API.
type GeminiAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGeminiAdapter creates the adapter. The model is chosen per call via
// GenerationOptions so admin config changes apply without a restart.
func NewGeminiAdapter(baseURL, apiKey string) *GeminiAdapter {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GeminiAdapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type generateRequest struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type requestContent struct {
	Role  string        `json:"role,omitempty"`
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// Generate completes a prompt into a single answer string.
func (a *GeminiAdapter) Generate(ctx context.Context, prompt string, opts ports.GenerationOptions) (string, error) {
	reqBody := generateRequest{
		Contents: []requestContent{
			{Role: "user", Parts: []requestPart{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		a.baseURL+"/"+opts.Model+":generateContent", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", entities.WrapError(entities.KindUpstream, err, "calling chat service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, resp.Body)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(genResp.Candidates) == 0 {
		return "", entities.NewError(entities.KindUpstream, "chat service returned no candidates")
	}

	var sb strings.Builder
	for _, part := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", entities.NewError(entities.KindUpstream, "chat service returned an empty answer")
	}
	return answer, nil
}

// classifyStatus maps an upstream failure to a domain error kind. Throttling
// and server-side failures are Upstream (callers may retry); client-side
// failures point at our request or credentials and are Internal.
func classifyStatus(status int, body io.Reader) error {
	snippet, _ := io.ReadAll(io.LimitReader(body, 512))
	if status == http.StatusTooManyRequests || status >= 500 {
		return entities.NewError(entities.KindUpstream,
			"chat service returned status %d: %s", status, snippet)
	}
	return entities.NewError(entities.KindInternal,
		"chat service rejected request with status %d: %s", status, snippet)
}
