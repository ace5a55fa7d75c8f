// Package ratelimit enforces per-capability request budgets with fixed
// minute and hour windows.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jllopis/actionhub/pkg/registry"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Window     string // "minute" or "hour" when a window was exceeded
	Limit      int
	Count      int
	RetryAfter time.Duration
}

// Limiter counts one request against key and reports whether it fits policy.
type Limiter interface {
	Allow(ctx context.Context, key string, policy registry.RateLimit) (Decision, error)
}

type window struct {
	name  string
	size  time.Duration
	limit int
}

func windows(p registry.RateLimit) []window {
	var out []window
	if p.RequestsPerMinute > 0 {
		out = append(out, window{name: "minute", size: time.Minute, limit: p.RequestsPerMinute})
	}
	if p.RequestsPerHour > 0 {
		out = append(out, window{name: "hour", size: time.Hour, limit: p.RequestsPerHour})
	}
	return out
}

func bucketKey(key string, w window, now time.Time) (string, time.Time) {
	start := now.Truncate(w.size)
	return fmt.Sprintf("actionhub:ratelimit:%s:%s:%d", key, w.name, start.Unix()), start.Add(w.size)
}

// MemoryLimiter keeps counters in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	now      func() time.Time
	counters map[string]memoryCounter
}

type memoryCounter struct {
	count   int
	expires time.Time
}

// NewMemoryLimiter returns an in-process limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{now: time.Now, counters: make(map[string]memoryCounter)}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string, policy registry.RateLimit) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	for _, w := range windows(policy) {
		k, reset := bucketKey(key, w, now)
		c := l.counters[k]
		c.count++
		c.expires = reset
		l.counters[k] = c
		if c.count > w.limit {
			return Decision{Window: w.name, Limit: w.limit, Count: c.count, RetryAfter: reset.Sub(now)}, nil
		}
	}
	return Decision{Allowed: true}, nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for k, c := range l.counters {
		if !now.Before(c.expires) {
			delete(l.counters, k)
		}
	}
}
