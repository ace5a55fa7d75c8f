// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/actionhub/pkg/errors"
	"github.com/jllopis/actionhub/pkg/schema"
)

// Sources locates the two registry documents.
type Sources struct {
	ReposPath   string
	ActionsPath string
}

// Loader reads the registry documents once and hands out the same
// immutable Registry afterwards.
type Loader struct {
	src       Sources
	validator *schema.Compiler
	logger    *slog.Logger

	mu  sync.Mutex
	reg *Registry
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithValidator validates every record against its record schema before
// the registry is built.
func WithValidator(c *schema.Compiler) LoaderOption {
	return func(l *Loader) { l.validator = c }
}

// WithLoaderLogger sets the loader logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader returns a Loader for src.
func NewLoader(src Sources, opts ...LoaderOption) *Loader {
	l := &Loader{src: src, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type reposDocument struct {
	Repos []Repository `yaml:"repos"`
}

type actionsDocument struct {
	Capabilities []Capability `yaml:"capabilities"`
	Actions      []Action     `yaml:"actions"`
}

// rawDocument keeps records as generic values for schema validation.
type rawDocument map[string]any

// Load returns the registry, reading and validating the documents on the
// first call. A failed load is not cached.
func (l *Loader) Load(ctx context.Context) (*Registry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reg != nil {
		return l.reg, nil
	}

	repos, err := l.LoadRepositories(ctx)
	if err != nil {
		return nil, err
	}
	caps, actions, err := l.LoadCapabilitiesAndActions(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := New(repos, caps, actions)
	if err != nil {
		return nil, err
	}
	for _, d := range reg.DanglingDependencies() {
		l.logger.WarnContext(ctx, "internal dependency does not resolve to a repository",
			slog.String("repository", d.Repository),
			slog.String("reference", d.Reference))
	}
	l.logger.InfoContext(ctx, "registry loaded",
		slog.Int("repositories", len(reg.repos)),
		slog.Int("capabilities", len(reg.caps)),
		slog.Int("actions", len(reg.actions)))
	l.reg = reg
	return reg, nil
}

// LoadRepositories parses and validates the repositories document.
func (l *Loader) LoadRepositories(ctx context.Context) ([]Repository, error) {
	data, raw, err := readDocument(l.src.ReposPath, "repos")
	if err != nil {
		return nil, err
	}
	if err := l.validateRecords(ctx, l.src.ReposPath, RepositorySchemaRef, "repos", raw); err != nil {
		return nil, err
	}
	var doc reposDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ConfigError(l.src.ReposPath, "cannot decode repositories", err)
	}
	return doc.Repos, nil
}

// LoadCapabilitiesAndActions parses and validates the capabilities and
// actions document. Both arrays are required.
func (l *Loader) LoadCapabilitiesAndActions(ctx context.Context) ([]Capability, []Action, error) {
	data, raw, err := readDocument(l.src.ActionsPath, "capabilities", "actions")
	if err != nil {
		return nil, nil, err
	}
	if err := l.validateRecords(ctx, l.src.ActionsPath, CapabilitySchemaRef, "capabilities", raw); err != nil {
		return nil, nil, err
	}
	if err := l.validateRecords(ctx, l.src.ActionsPath, ActionSchemaRef, "actions", raw); err != nil {
		return nil, nil, err
	}
	var doc actionsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, errors.ConfigError(l.src.ActionsPath, "cannot decode capabilities and actions", err)
	}
	return doc.Capabilities, doc.Actions, nil
}

func (l *Loader) validateRecords(ctx context.Context, path, ref, key string, raw rawDocument) error {
	if l.validator == nil {
		return nil
	}
	if err := RegisterRecordSchemas(l.validator); err != nil {
		return errors.ConfigError(path, "cannot register record schemas", err)
	}
	issues, err := validateList(l.validator, ref, key, raw[key].([]any))
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		return nil
	}
	problems := make([]error, 0, len(issues))
	for _, issue := range issues {
		for _, msg := range issue.Errors {
			problems = append(problems, fmt.Errorf("%s[%d] %s: %s", key, issue.Index, issue.ID, msg))
		}
	}
	l.logger.ErrorContext(ctx, "registry document failed validation",
		slog.String("path", path), slog.String("section", key), slog.Int("invalid", len(issues)))
	return errors.ConfigError(path, fmt.Sprintf("invalid %s", key), stderrors.Join(problems...)).
		WithContext("invalid_records", len(issues))
}

// readDocument reads a YAML document and checks that every key holds a list.
func readDocument(path string, keys ...string) ([]byte, rawDocument, error) {
	if path == "" {
		return nil, nil, errors.ConfigError(path, "registry document path is empty", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.ConfigError(path, "cannot read registry document", err)
	}
	// Nested mappings take the type of the outer map, so decode into a
	// plain map to keep records as map[string]any.
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, errors.ConfigError(path, "registry document is not valid YAML", err)
	}
	raw := rawDocument(doc)
	for _, key := range keys {
		if _, ok := raw[key].([]any); !ok {
			return nil, nil, errors.ConfigError(path, fmt.Sprintf("document must contain a '%s' array", key), nil)
		}
	}
	return data, raw, nil
}
