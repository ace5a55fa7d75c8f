// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides logging, tracing and metrics for the registry
// and the action dispatcher.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on dispatch spans, span events and metrics.
const (
	AttrInvocationID = "actionhub.invocation.id"
	AttrActionID     = "actionhub.action.id"
	AttrCapabilityID = "actionhub.capability.id"
	AttrDomain       = "actionhub.domain"
	AttrExecutor     = "actionhub.executor"
	AttrStage        = "actionhub.dispatch.stage"
	AttrOutcome      = "actionhub.dispatch.outcome"
	AttrErrorCode    = "actionhub.error.code"
	AttrDurationMs   = "actionhub.dispatch.duration_ms"

	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
)

// DispatchAttributes returns the attributes set on a dispatch span.
func DispatchAttributes(invocationID, actionID, capabilityID, domain string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrInvocationID, invocationID),
		attribute.String(AttrActionID, actionID),
	}
	if capabilityID != "" {
		attrs = append(attrs, attribute.String(AttrCapabilityID, capabilityID))
	}
	if domain != "" {
		attrs = append(attrs, attribute.String(AttrDomain, domain))
	}
	return attrs
}

// OutcomeAttributes describes how a dispatch ended. errorCode is empty on success.
func OutcomeAttributes(executor, outcome, errorCode string, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrOutcome, outcome),
		attribute.Float64(AttrDurationMs, durationMs),
	}
	if executor != "" {
		attrs = append(attrs, attribute.String(AttrExecutor, executor))
	}
	if errorCode != "" {
		attrs = append(attrs, attribute.String(AttrErrorCode, errorCode))
	}
	return attrs
}

// UsageAttributes records model and token usage reported by an executor.
func UsageAttributes(model string, inputTokens, outputTokens int) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	return attrs
}
