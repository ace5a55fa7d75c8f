// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed, coded errors shared by the registry,
// the schema validator and the action dispatcher.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies errors for callers, metrics and HTTP mapping.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeConfig indicates a registry document is missing, malformed or
	// violates a load-time invariant. The process must not start.
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// CodeSchemaLoad indicates a referenced JSON Schema could not be read,
	// parsed or compiled.
	CodeSchemaLoad ErrorCode = "SCHEMA_LOAD_ERROR"

	// CodeActionNotFound indicates the requested action id is not registered.
	CodeActionNotFound ErrorCode = "ACTION_NOT_FOUND"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeExecutorNotConfigured indicates the selected executor is unknown.
	CodeExecutorNotConfigured ErrorCode = "EXECUTOR_NOT_CONFIGURED"

	// CodeExecutor indicates the executor failed, timed out or was cancelled.
	CodeExecutor ErrorCode = "EXECUTOR_ERROR"

	// CodeRateLimit indicates a capability rate limit was exceeded.
	CodeRateLimit ErrorCode = "RATE_LIMITED"

	// CodeNotFound indicates a registry record was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// ExecutorErrorKind refines CodeExecutor failures.
type ExecutorErrorKind string

const (
	KindFailed    ExecutorErrorKind = "failed"
	KindTimeout   ExecutorErrorKind = "timeout"
	KindCancelled ExecutorErrorKind = "cancelled"
)

// Error is a typed error with context for logs and API responses.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Cause       string                 `json:"cause,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		out.Cause = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the caller may retry.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// ConfigError reports a broken registry document.
func ConfigError(path, msg string, cause error) *Error {
	e := New(CodeConfig, msg, cause)
	if path != "" {
		e.WithContext("path", path)
	}
	return e
}

// SchemaLoadError reports a schema that could not be loaded or compiled.
func SchemaLoadError(ref string, cause error) *Error {
	return New(CodeSchemaLoad, fmt.Sprintf("failed to load schema '%s'", ref), cause).
		WithContext("schema_ref", ref)
}

// ActionNotFound reports an unknown action id.
func ActionNotFound(id string) *Error {
	return New(CodeActionNotFound, fmt.Sprintf("action '%s' not found", id), nil).
		WithContext("action_id", id)
}

// InvalidInput reports a payload rejected by its input schema.
func InvalidInput(actionID string) *Error {
	return New(CodeInvalidInput, "input validation failed", nil).
		WithContext("action_id", actionID)
}

// ExecutorNotConfigured reports an executor name the router cannot resolve.
func ExecutorNotConfigured(name string) *Error {
	return New(CodeExecutorNotConfigured, fmt.Sprintf("executor '%s' not configured", name), nil).
		WithContext("executor", name)
}

// ExecutorError wraps an executor failure, preserving its message.
func ExecutorError(kind ExecutorErrorKind, executor string, cause error) *Error {
	msg := "executor failed"
	if cause != nil {
		msg = cause.Error()
	}
	switch kind {
	case KindTimeout:
		msg = "executor timed out"
	case KindCancelled:
		msg = "executor invocation cancelled"
	}
	return New(CodeExecutor, msg, cause).
		WithContext("executor", executor).
		WithContext("kind", string(kind)).
		WithRecoverable(kind != KindFailed)
}

// RateLimited reports an exceeded capability rate limit.
func RateLimited(capabilityID, window string) *Error {
	return New(CodeRateLimit, fmt.Sprintf("rate limit exceeded for '%s' (%s)", capabilityID, window), nil).
		WithContext("capability_id", capabilityID).
		WithContext("window", window).
		WithRecoverable(true)
}

// NotFound reports a missing registry record.
func NotFound(resource, id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' not found", resource, id), nil).
		WithContext("resource", resource).
		WithContext("id", id)
}

// As converts err to an *Error, wrapping unknown errors as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(CodeInternal, err.Error(), err)
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeActionNotFound, CodeInvalidInput, CodeExecutorNotConfigured:
		return http.StatusBadRequest
	case CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
