package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// HTTPExecutor forwards the input to the service that owns the action,
// using the action's HTTP binding.
type HTTPExecutor struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTP creates an HTTPExecutor. baseURL is used when the action binding
// carries no base_url of its own.
func NewHTTP(name, baseURL, apiKey string, timeout time.Duration) *HTTPExecutor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPExecutor{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Execute issues the bound request. Path parameters such as {id} are
// filled from the input; GET and DELETE send the remaining scalar inputs as
// query parameters, other methods send the input as a JSON body.
func (e *HTTPExecutor) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	base := strings.TrimRight(inv.HTTP.BaseURL, "/")
	if base == "" {
		base = e.baseURL
	}
	if base == "" {
		return nil, fmt.Errorf("action %s has no base_url and executor %s has none configured", inv.ActionID, e.name)
	}
	method := strings.ToUpper(inv.HTTP.Method)
	if method == "" {
		method = http.MethodPost
	}

	path, rest := expandPath(inv.HTTP.Path, inv.Input)
	target := base + path

	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete:
		if q := encodeQuery(rest); q != "" {
			target += "?" + q
		}
	default:
		raw, err := json.Marshal(rest)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.apiKey != "" {
		req.Header.Set("X-API-Key", e.apiKey)
	}
	if inv.ID != "" {
		req.Header.Set("X-Invocation-ID", inv.ID)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := raw
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, fmt.Errorf("%s returned status %d: %s", inv.Service, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	result := &Result{Metadata: map[string]any{
		"executor":    e.name,
		"status_code": resp.StatusCode,
		"url":         target,
	}}
	var data any
	if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &data) == nil {
		result.Data = data
	} else {
		result.Content = string(raw)
	}
	return result, nil
}

// expandPath substitutes {name} segments and returns the unused inputs.
func expandPath(path string, input map[string]any) (string, map[string]any) {
	rest := make(map[string]any, len(input))
	for k, v := range input {
		rest[k] = v
	}
	for k, v := range input {
		token := "{" + k + "}"
		if strings.Contains(path, token) {
			path = strings.ReplaceAll(path, token, url.PathEscape(fmt.Sprint(v)))
			delete(rest, k)
		}
	}
	return path, rest
}

func encodeQuery(input map[string]any) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := url.Values{}
	for _, k := range keys {
		switch v := input[k].(type) {
		case map[string]any, []any:
			raw, _ := json.Marshal(v)
			q.Set(k, string(raw))
		case nil:
		default:
			q.Set(k, fmt.Sprint(v))
		}
	}
	return q.Encode()
}
