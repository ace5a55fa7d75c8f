// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	stderrors "errors"
	"fmt"
	"io"
	"sort"

	"github.com/jllopis/actionhub/pkg/errors"
)

// Router maps executor names to executors. It is immutable after
// construction and safe for concurrent use.
type Router struct {
	executors map[string]Executor
	def       string
}

// NewRouter returns a Router over executors with def as the default name.
// Nil entries are ignored.
func NewRouter(def string, executors map[string]Executor) *Router {
	r := &Router{executors: make(map[string]Executor, len(executors)), def: def}
	for name, ex := range executors {
		if ex != nil {
			r.executors[name] = ex
		}
	}
	return r
}

// Get resolves name, or the default when name is empty. It returns the
// resolved name alongside the executor.
func (r *Router) Get(name string) (Executor, string, error) {
	if name == "" {
		name = r.def
	}
	ex, ok := r.executors[name]
	if !ok {
		return nil, name, errors.ExecutorNotConfigured(name)
	}
	return ex, name, nil
}

// Default returns the default executor name.
func (r *Router) Default() string {
	return r.def
}

// ListAvailable returns the configured executor names in lexical order.
func (r *Router) ListAvailable() []string {
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every executor that holds a connection.
func (r *Router) Close() error {
	var errs []error
	for _, name := range r.ListAvailable() {
		if c, ok := r.executors[name].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close executor %s: %w", name, err))
			}
		}
	}
	return stderrors.Join(errs...)
}
