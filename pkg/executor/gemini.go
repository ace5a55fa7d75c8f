package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiExecutor sends the invocation prompt to the Gemini API.
type GeminiExecutor struct {
	name   string
	model  string
	client *genai.Client
}

// NewGemini creates a GeminiExecutor. An empty baseURL uses the public API.
func NewGemini(ctx context.Context, name, baseURL, apiKey, model string, timeout time.Duration) (*GeminiExecutor, error) {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client for %s: %w", name, err)
	}
	return &GeminiExecutor{name: name, model: model, client: client}, nil
}

// Execute sends inv.Prompt as a single user turn.
func (e *GeminiExecutor) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: inv.Prompt}},
	}}
	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("%s generate content failed: %w", e.name, err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%s returned no candidates", e.name)
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			text.WriteString(part.Text)
		}
	}
	meta := map[string]any{
		"executor":      e.name,
		"model":         e.model,
		"finish_reason": string(candidate.FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		meta["usage"] = map[string]any{
			"prompt_tokens":     int(u.PromptTokenCount),
			"completion_tokens": int(u.CandidatesTokenCount),
			"total_tokens":      int(u.TotalTokenCount),
		}
	}
	return &Result{Content: text.String(), Metadata: meta}, nil
}
