// Package executor defines the pluggable backends that carry out a
// dispatched action and the Router that selects them by name.
package executor

import (
	"context"

	"github.com/jllopis/actionhub/pkg/registry"
)

// Invocation is everything an executor needs to run one action.
type Invocation struct {
	ID          string               `json:"invocation_id"`
	ActionID    string               `json:"action_id"`
	ActionName  string               `json:"action_name"`
	Description string               `json:"description,omitempty"`
	Prompt      string               `json:"prompt"`
	Input       map[string]any       `json:"input"`
	Context     map[string]any       `json:"context,omitempty"`
	Repo        string               `json:"repo,omitempty"`
	Service     string               `json:"service,omitempty"`
	HTTP        registry.HTTPBinding `json:"http"`
	Auth        registry.AuthMode    `json:"auth,omitempty"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
}

// Result is what an executor returns. Data carries structured output when
// the backend produces it; Content carries text.
type Result struct {
	Content  string         `json:"content,omitempty"`
	Data     any            `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Value is the payload placed in a dispatch envelope.
func (r *Result) Value() any {
	if r == nil {
		return nil
	}
	if r.Data != nil {
		return r.Data
	}
	return r.Content
}

// Executor runs an invocation. Implementations must honour ctx cancellation.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) (*Result, error)
}

// Func adapts a function to the Executor interface.
type Func func(ctx context.Context, inv Invocation) (*Result, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	return f(ctx, inv)
}
