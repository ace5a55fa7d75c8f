package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ChatExecutor sends the invocation prompt to an OpenAI-compatible chat
// completions API (OpenAI, Groq, Ollama's /v1 API).
type ChatExecutor struct {
	name    string
	baseURL string
	model   string
	client  openai.Client
}

// NewChat creates a ChatExecutor. With an empty apiKey the client falls
// back to OPENAI_API_KEY, or sends no key at all.
func NewChat(name, baseURL, apiKey, model string, timeout time.Duration) *ChatExecutor {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	endpoint := baseURL
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	opts := []option.RequestOption{
		option.WithBaseURL(endpoint),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		// The dispatcher owns timeouts; a retried call would outlive them.
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &ChatExecutor{
		name:    name,
		baseURL: baseURL,
		model:   model,
		client:  openai.NewClient(opts...),
	}
}

// Execute sends inv.Prompt as a single user message.
func (e *ChatExecutor) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	completion, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(inv.Prompt)},
	})
	if err != nil {
		return nil, fmt.Errorf("%s chat completion failed: %w", e.name, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", e.name)
	}

	model := completion.Model
	if model == "" {
		model = e.model
	}
	choice := completion.Choices[0]
	return &Result{
		Content: choice.Message.Content,
		Metadata: map[string]any{
			"executor":      e.name,
			"model":         model,
			"finish_reason": choice.FinishReason,
			"usage": map[string]any{
				"prompt_tokens":     int(completion.Usage.PromptTokens),
				"completion_tokens": int(completion.Usage.CompletionTokens),
				"total_tokens":      int(completion.Usage.TotalTokens),
			},
		},
	}, nil
}
