package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultMCPTimeout = 30 * time.Second
	defaultMCPRetries = 2
	defaultMCPBackoff = 200 * time.Millisecond
)

// MCPOption customizes an MCPExecutor.
type MCPOption func(*MCPExecutor)

// WithMCPRetry sets how many times a failed call is retried and the base
// backoff between attempts. Backoff doubles on each attempt.
func WithMCPRetry(retries int, backoff time.Duration) MCPOption {
	return func(e *MCPExecutor) {
		if retries >= 0 {
			e.maxRetries = retries
		}
		if backoff > 0 {
			e.backoff = backoff
		}
	}
}

// WithMCPClient uses an already initialized client instead of dialing.
func WithMCPClient(c client.MCPClient) MCPOption {
	return func(e *MCPExecutor) {
		e.client = c
	}
}

// MCPExecutor forwards an invocation to a remote MCP server over
// streamable HTTP, calling the tool named after the action id with the
// action input as arguments. The connection is opened on first use.
type MCPExecutor struct {
	name       string
	url        string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration

	mu     sync.Mutex
	client client.MCPClient
}

// NewMCP creates an MCPExecutor for the server at url.
func NewMCP(name, url string, timeout time.Duration, opts ...MCPOption) *MCPExecutor {
	if timeout <= 0 {
		timeout = defaultMCPTimeout
	}
	e := &MCPExecutor{
		name:       name,
		url:        url,
		timeout:    timeout,
		maxRetries: defaultMCPRetries,
		backoff:    defaultMCPBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute calls the remote tool. A tool result flagged as an error fails
// the invocation and is not retried.
func (e *MCPExecutor) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = inv.ActionID
	req.Params.Arguments = inv.Input

	res, err := e.callWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	text := toolText(res)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, fmt.Errorf("%s: %s", inv.ActionID, text)
	}
	return &Result{
		Content:  text,
		Data:     res.StructuredContent,
		Metadata: map[string]any{"executor": e.name, "mcp_server": e.url},
	}, nil
}

// Close releases the connection, if any.
func (e *MCPExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

func (e *MCPExecutor) connect(ctx context.Context) (client.MCPClient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client, nil
	}

	c, err := client.NewStreamableHttpClient(e.url)
	if err != nil {
		return nil, fmt.Errorf("mcp client for %s: %w", e.url, err)
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp client for %s: %w", e.url, err)
	}

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "actionhub", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, init); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize mcp session with %s: %w", e.url, err)
	}
	e.client = c
	return c, nil
}

// callWithRetry dials on demand and drops the session after a transport
// failure, so the next attempt opens a fresh one.
func (e *MCPExecutor) callWithRetry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var lastErr error
	attempts := e.maxRetries + 1
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := sleepBackoff(ctx, e.backoff, i-1); err != nil {
				return nil, err
			}
		}
		c, err := e.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
		res, err := c.CallTool(reqCtx, req)
		cancel()
		if err == nil {
			return res, nil
		}
		e.drop(c)
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (e *MCPExecutor) drop(c client.MCPClient) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == c {
		_ = c.Close()
		e.client = nil
	}
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	timer := time.NewTimer(base * time.Duration(1<<attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func toolText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if t, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}
