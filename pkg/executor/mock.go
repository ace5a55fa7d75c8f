package executor

import (
	"context"
	"sync"
)

// MockExecutor is a scripted executor for tests and local development.
type MockExecutor struct {
	Response    string
	Data        any
	Err         error
	ExecuteFunc func(ctx context.Context, inv Invocation) (*Result, error)

	mu    sync.Mutex
	calls []Invocation
}

// Execute records inv and returns the scripted outcome.
func (m *MockExecutor) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, inv)
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, inv)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &Result{
		Content:  m.Response,
		Data:     m.Data,
		Metadata: map[string]any{"executor": "mock", "model": "mock"},
	}, nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockExecutor) Calls() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Invocation, len(m.calls))
	copy(out, m.calls)
	return out
}

// EchoExecutor returns the prompt it was given. It needs no credentials.
type EchoExecutor struct{}

// Execute echoes the prompt and input.
func (EchoExecutor) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Result{
		Content:  inv.Prompt,
		Metadata: map[string]any{"executor": "echo"},
	}, nil
}
