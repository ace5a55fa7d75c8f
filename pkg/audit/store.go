// Package audit records one entry per dispatch for later inspection.
package audit

import (
	"context"
	"sync"
	"time"
)

// Entry describes one finished dispatch. Inputs are not stored.
type Entry struct {
	InvocationID string    `json:"invocation_id"`
	ActionID     string    `json:"action_id"`
	CapabilityID string    `json:"capability_id,omitempty"`
	Executor     string    `json:"executor,omitempty"`
	Outcome      string    `json:"outcome"`
	ErrorCode    string    `json:"error_code,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Duration is FinishedAt minus StartedAt.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Filter limits List results. Zero fields match everything.
type Filter struct {
	ActionID string
	Executor string
	Outcome  string
	Limit    int
}

func (f Filter) match(e Entry) bool {
	if f.ActionID != "" && e.ActionID != f.ActionID {
		return false
	}
	if f.Executor != "" && e.Executor != f.Executor {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	return true
}

// Store persists dispatch entries.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// MemoryStore keeps entries in memory, oldest first.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends entry.
func (s *MemoryStore) Record(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List returns matching entries in the order they were recorded.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.match(e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
