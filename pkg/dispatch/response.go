// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"net/http"

	"github.com/jllopis/actionhub/pkg/errors"
	"github.com/jllopis/actionhub/pkg/schema"
)

// Request is the caller payload for one dispatch.
type Request struct {
	Input   map[string]any `json:"input"`
	Context map[string]any `json:"context,omitempty"`
}

// Envelope wraps a successful executor result.
type Envelope struct {
	ActionID         string         `json:"actionId"`
	ActionName       string         `json:"actionName"`
	Result           any            `json:"result"`
	ExecutorMetadata map[string]any `json:"executorMetadata,omitempty"`
}

// Response is the normalized outcome of a dispatch. Exactly one of Data
// and Error is set.
type Response struct {
	Success      bool                 `json:"success"`
	Data         *Envelope            `json:"data,omitempty"`
	Error        string               `json:"error,omitempty"`
	Code         string               `json:"code,omitempty"`
	Details      []schema.ErrorDetail `json:"details,omitempty"`
	InvocationID string               `json:"invocation_id,omitempty"`
}

// HTTPStatus maps the response onto an HTTP status code.
func (r Response) HTTPStatus() int {
	if r.Success {
		return http.StatusOK
	}
	switch errors.ErrorCode(r.Code) {
	case errors.CodeActionNotFound, errors.CodeInvalidInput, errors.CodeExecutorNotConfigured:
		return http.StatusBadRequest
	case errors.CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func failure(err error, details []schema.ErrorDetail) Response {
	e := errors.As(err)
	return Response{
		Success: false,
		Error:   e.Message,
		Code:    string(e.Code),
		Details: details,
	}
}
