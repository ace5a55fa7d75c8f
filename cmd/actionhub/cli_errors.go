// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jllopis/actionhub/pkg/errors"
)

// CLIError wraps a typed error with a hint for the user.
type CLIError struct {
	Typed *errors.Error
	Hint  string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{Typed: e, Hint: hint}
}

// Error returns the message followed by the hint.
func (e *CLIError) Error() string {
	if e.Typed == nil {
		return "unknown error"
	}
	msg := e.Typed.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the typed error.
func (e *CLIError) Unwrap() error {
	return e.Typed
}

// PrintError writes the error to w.
func (e *CLIError) PrintError(w io.Writer, asJSON bool) {
	if asJSON {
		payload, _ := json.Marshal(map[string]any{"error": map[string]any{
			"code":    e.Typed.Code,
			"message": e.Typed.Message,
			"hint":    e.Hint,
			"context": e.Typed.Context,
		}})
		fmt.Fprintln(w, string(payload))
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", e.Typed.Code, e.Typed.Message)
	if e.Typed.Err != nil {
		fmt.Fprintf(w, "  Cause: %v\n", e.Typed.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// NewNotFoundError reports a missing registry record.
func NewNotFoundError(resource, id string) *CLIError {
	return NewCLIError(errors.NotFound(resource, id),
		fmt.Sprintf("run 'actionhub %s list' to see what is registered", listCommand(resource)))
}

// NewInvalidArgumentError reports bad command line usage.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg)
	return NewCLIError(e, "run 'actionhub help' for usage information")
}

// NewConfigError reports a configuration that could not be loaded.
func NewConfigError(err error, configPath string) *CLIError {
	e := errors.ConfigError(configPath, "configuration error", err)
	hint := "check the ACTIONHUB_* environment and --set overrides"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(e, hint)
}

// NewRegistryError reports a registry that failed to load.
func NewRegistryError(err error) *CLIError {
	return NewCLIError(errors.As(err), "run 'actionhub validate' for a per-record report")
}

// PrintSimpleError writes an untyped error to w.
func PrintSimpleError(w io.Writer, err error, asJSON bool) {
	if e := errors.As(err); e.Code != errors.CodeInternal || asJSON {
		NewCLIError(e, "").PrintError(w, asJSON)
		return
	}
	fmt.Fprintf(w, "Error: %s\n", err.Error())
}

func listCommand(resource string) string {
	switch resource {
	case "repository":
		return "repos"
	case "capability":
		return "capabilities"
	default:
		return "actions"
	}
}
