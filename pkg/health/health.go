// SPDX-License-Identifier: Apache-2.0

// Package health aggregates component health checks for the readiness
// endpoint.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is the health state of a component.
type Status string

const (
	Healthy   Status = "HEALTHY"
	Degraded  Status = "DEGRADED"
	Unhealthy Status = "UNHEALTHY"
)

// Result is the outcome of one check.
type Result struct {
	Component string    `json:"component"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// Checker checks one component. ctx carries the check deadline.
type Checker interface {
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) Result

// Check calls f and stamps LastCheck when unset.
func (f CheckerFunc) Check(ctx context.Context) Result {
	r := f(ctx)
	if r.LastCheck.IsZero() {
		r.LastCheck = time.Now()
	}
	return r
}

// Provider runs registered checkers.
type Provider struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewProvider returns a Provider that bounds each check by timeout.
// Zero means 5 seconds.
func NewProvider(timeout time.Duration) *Provider {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Provider{checkers: make(map[string]Checker), timeout: timeout}
}

// Register adds or replaces the checker for name.
func (p *Provider) Register(name string, c Checker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkers[name] = c
}

// Check runs the checker registered under name.
func (p *Provider) Check(ctx context.Context, name string) (Result, error) {
	p.mu.RLock()
	c, ok := p.checkers[name]
	p.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("checker not registered: %s", name)
	}
	return p.run(ctx, name, c), nil
}

// CheckAll runs every checker and returns results sorted by component
// plus the overall status: unhealthy if any is, else degraded if any is.
func (p *Provider) CheckAll(ctx context.Context) ([]Result, Status) {
	p.mu.RLock()
	names := make([]string, 0, len(p.checkers))
	checkers := make(map[string]Checker, len(p.checkers))
	for name, c := range p.checkers {
		names = append(names, name)
		checkers[name] = c
	}
	p.mu.RUnlock()
	sort.Strings(names)

	results := make([]Result, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = p.run(ctx, name, checkers[name])
		}(i, name)
	}
	wg.Wait()

	overall := Healthy
	for _, r := range results {
		switch r.Status {
		case Unhealthy:
			overall = Unhealthy
		case Degraded:
			if overall == Healthy {
				overall = Degraded
			}
		}
	}
	return results, overall
}

func (p *Provider) run(ctx context.Context, name string, c Checker) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	r := c.Check(ctx)
	r.Component = name
	if r.LastCheck.IsZero() {
		r.LastCheck = time.Now()
	}
	return r
}
