// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/actionhub/pkg/errors"
)

// Dispatch outcomes recorded on metrics and audit entries.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// DispatchMetrics counts dispatches and records their latency.
// All methods are safe on a nil receiver.
type DispatchMetrics struct {
	dispatchCounter metric.Int64Counter
	errorCounter    metric.Int64Counter
	duration        metric.Float64Histogram
	schemaCompiles  metric.Int64Counter
}

// NewDispatchMetrics creates dispatch instruments on the global meter provider.
func NewDispatchMetrics() (*DispatchMetrics, error) {
	meter := otel.Meter("actionhub/dispatch")

	dispatchCounter, err := meter.Int64Counter(
		"actionhub.dispatch.total",
		metric.WithDescription("Dispatches by action, executor and outcome"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"actionhub.dispatch.errors",
		metric.WithDescription("Failed dispatches by error code"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"actionhub.dispatch.duration",
		metric.WithDescription("Dispatch latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	schemaCompiles, err := meter.Int64Counter(
		"actionhub.schema.compiles",
		metric.WithDescription("JSON Schema compilations (cache misses)"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		dispatchCounter: dispatchCounter,
		errorCounter:    errorCounter,
		duration:        duration,
		schemaCompiles:  schemaCompiles,
	}, nil
}

// RecordDispatch records one finished dispatch. err is nil on success.
func (m *DispatchMetrics) RecordDispatch(ctx context.Context, actionID, executor string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrActionID, actionID),
		attribute.String(AttrExecutor, executor),
		attribute.String(AttrOutcome, outcome),
	)
	m.dispatchCounter.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)

	if err != nil {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrActionID, actionID),
			attribute.String(AttrErrorCode, string(errors.As(err).Code)),
		))
	}
}

// RecordSchemaCompile counts a schema compilation.
func (m *DispatchMetrics) RecordSchemaCompile(ctx context.Context, ref string) {
	if m == nil {
		return
	}
	m.schemaCompiles.Add(ctx, 1, metric.WithAttributes(attribute.String("schema.ref", ref)))
}
