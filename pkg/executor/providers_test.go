package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/actionhub/pkg/config"
)

func TestAnthropicExecutor(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "sent "}, {"type": "text", "text": "ok"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	ex := NewAnthropic("anthropic", srv.URL, "sk-ant", "claude-test", time.Second)
	res, err := ex.Execute(context.Background(), Invocation{Prompt: "Action: Send Email"})
	require.NoError(t, err)

	assert.Equal(t, "claude-test", body["model"])
	assert.EqualValues(t, defaultAnthropicMaxTokens, body["max_tokens"])
	assert.Equal(t, "sent ok", res.Content)
	assert.Equal(t, "end_turn", res.Metadata["stop_reason"])
}

func TestAnthropicExecutorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropic("anthropic", srv.URL, "nope", "m", time.Second).Execute(context.Background(), Invocation{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "anthropic message failed"))
}

func TestGeminiExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "summary"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 1, "totalTokenCount": 8}
		}`))
	}))
	defer srv.Close()

	ex, err := NewGemini(context.Background(), "gemini", srv.URL, "g-key", "gemini-test", time.Second)
	require.NoError(t, err)
	res, err := ex.Execute(context.Background(), Invocation{Prompt: "Action: Summarize"})
	require.NoError(t, err)

	assert.Equal(t, "summary", res.Content)
	assert.Equal(t, "STOP", res.Metadata["finish_reason"])
	usage := res.Metadata["usage"].(map[string]any)
	assert.Equal(t, 8, usage["total_tokens"])
}

func TestFromConfigHostedProviders(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-ant")
	router, err := FromConfig(config.GatewayConfig{
		DefaultExecutor: "claude",
		Executors: map[string]config.ExecutorConfig{
			"claude": {Type: TypeAnthropic, APIKeyEnv: "TEST_ANTHROPIC_KEY", Model: "claude-test"},
			"gemini": {Type: TypeGemini, APIKeyEnv: "TEST_UNSET_GEMINI_KEY"},
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"claude"}, router.ListAvailable())
	ex, _, err := router.Get("")
	require.NoError(t, err)
	assert.IsType(t, &AnthropicExecutor{}, ex)
}
