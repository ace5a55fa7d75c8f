package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicExecutor sends the invocation prompt to the Anthropic Messages API.
type AnthropicExecutor struct {
	name      string
	model     string
	maxTokens int64
	client    anthropic.Client
}

// NewAnthropic creates an AnthropicExecutor. An empty baseURL uses the
// public API.
func NewAnthropic(name, baseURL, apiKey, model string, timeout time.Duration) *AnthropicExecutor {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicExecutor{
		name:      name,
		model:     model,
		maxTokens: defaultAnthropicMaxTokens,
		client:    anthropic.NewClient(opts...),
	}
}

// Execute sends inv.Prompt as a single user message and joins the text
// blocks of the reply.
func (e *AnthropicExecutor) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	message, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(inv.Prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s message failed: %w", e.name, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	model := string(message.Model)
	if model == "" {
		model = e.model
	}
	return &Result{
		Content: text.String(),
		Metadata: map[string]any{
			"executor":    e.name,
			"model":       model,
			"stop_reason": string(message.StopReason),
			"usage": map[string]any{
				"input_tokens":  int(message.Usage.InputTokens),
				"output_tokens": int(message.Usage.OutputTokens),
			},
		},
	}, nil
}
