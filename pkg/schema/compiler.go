// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema compiles and caches JSON Schemas (draft 2020-12) and
// validates instances against them.
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jllopis/actionhub/pkg/errors"
	"github.com/jllopis/actionhub/pkg/telemetry"
)

// Compiler resolves schema references against a root directory, compiles
// them once and keeps the compiled form for the life of the process.
type Compiler struct {
	dir     string
	logger  *slog.Logger
	metrics *telemetry.DispatchMetrics

	resMu     sync.RWMutex
	resources map[string][]byte

	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for compile events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics counts compilations.
func WithMetrics(m *telemetry.DispatchMetrics) Option {
	return func(c *Compiler) { c.metrics = m }
}

// NewCompiler returns a Compiler rooted at dir. Relative references and
// relative $ref values inside schema files resolve against dir.
func NewCompiler(dir string, opts ...Option) *Compiler {
	c := &Compiler{
		dir:       dir,
		logger:    slog.Default(),
		resources: make(map[string][]byte),
		cache:     make(map[string]*jsonschema.Schema),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the schema root directory.
func (c *Compiler) Dir() string {
	return c.dir
}

// AddResource registers an in-memory schema document under an absolute
// URL. Registered documents can be compiled directly or referenced from
// other schemas.
func (c *Compiler) AddResource(url string, doc []byte) error {
	if !isURL(url) {
		return fmt.Errorf("resource id %q must be an absolute URL", url)
	}
	if !json.Valid(doc) {
		return errors.SchemaLoadError(url, fmt.Errorf("resource is not valid JSON"))
	}
	c.resMu.Lock()
	if prev, ok := c.resources[url]; ok && bytes.Equal(prev, doc) {
		c.resMu.Unlock()
		return nil
	}
	c.resources[url] = bytes.Clone(doc)
	c.resMu.Unlock()

	c.mu.Lock()
	delete(c.cache, url)
	c.mu.Unlock()
	return nil
}

// Compile returns the compiled schema for ref, compiling it on first use.
// Failures are SchemaLoadError.
func (c *Compiler) Compile(ref string) (*jsonschema.Schema, error) {
	c.mu.RLock()
	sch, ok := c.cache[ref]
	c.mu.RUnlock()
	if ok {
		return sch, nil
	}

	// Two goroutines may compile the same ref; the last store wins and both
	// results are equivalent.
	sch, err := c.compile(ref)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache[ref] = sch
	c.mu.Unlock()

	c.metrics.RecordSchemaCompile(context.Background(), ref)
	c.logger.Debug("schema compiled", slog.String("schema_ref", ref))
	return sch, nil
}

// Cached reports whether ref has already been compiled.
func (c *Compiler) Cached(ref string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cache[ref]
	return ok
}

func (c *Compiler) compile(ref string) (*jsonschema.Schema, error) {
	location, err := c.locate(ref)
	if err != nil {
		return nil, err
	}

	jc := jsonschema.NewCompiler()
	jc.Draft = jsonschema.Draft2020
	jc.AssertFormat = true

	c.resMu.RLock()
	for url, doc := range c.resources {
		if err := jc.AddResource(url, bytes.NewReader(doc)); err != nil {
			c.resMu.RUnlock()
			return nil, errors.SchemaLoadError(ref, err)
		}
	}
	c.resMu.RUnlock()

	sch, err := jc.Compile(location)
	if err != nil {
		return nil, errors.SchemaLoadError(ref, err)
	}
	return sch, nil
}

// locate maps ref to something the underlying compiler can load: a
// registered resource URL or an absolute file path under the root.
func (c *Compiler) locate(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", errors.SchemaLoadError(ref, fmt.Errorf("empty schema reference"))
	}
	if isURL(ref) {
		c.resMu.RLock()
		_, ok := c.resources[ref]
		c.resMu.RUnlock()
		if !ok {
			return "", errors.SchemaLoadError(ref, fmt.Errorf("no resource registered for %s", ref))
		}
		return ref, nil
	}

	path, err := c.path(ref)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", errors.SchemaLoadError(ref, err)
	}
	return path, nil
}

func (c *Compiler) path(ref string) (string, error) {
	rel := filepath.FromSlash(ref)
	if !filepath.IsLocal(rel) {
		return "", errors.SchemaLoadError(ref, fmt.Errorf("reference escapes schema root %s", c.dir))
	}
	abs, err := filepath.Abs(filepath.Join(c.dir, rel))
	if err != nil {
		return "", errors.SchemaLoadError(ref, err)
	}
	return abs, nil
}

// Document returns the parsed JSON document behind ref without compiling it.
func (c *Compiler) Document(ref string) (map[string]any, error) {
	var raw []byte
	if isURL(ref) {
		c.resMu.RLock()
		doc, ok := c.resources[ref]
		c.resMu.RUnlock()
		if !ok {
			return nil, errors.SchemaLoadError(ref, fmt.Errorf("no resource registered for %s", ref))
		}
		raw = doc
	} else {
		path, err := c.path(ref)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.SchemaLoadError(ref, err)
		}
		defer f.Close()
		if raw, err = io.ReadAll(f); err != nil {
			return nil, errors.SchemaLoadError(ref, err)
		}
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.SchemaLoadError(ref, err)
	}
	return doc, nil
}

func isURL(ref string) bool {
	return strings.Contains(ref, "://")
}
