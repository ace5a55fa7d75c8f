// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch resolves an action, validates its input, selects an
// executor and returns a normalized result.
package dispatch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/actionhub/pkg/audit"
	"github.com/jllopis/actionhub/pkg/errors"
	"github.com/jllopis/actionhub/pkg/executor"
	"github.com/jllopis/actionhub/pkg/ratelimit"
	"github.com/jllopis/actionhub/pkg/registry"
	"github.com/jllopis/actionhub/pkg/schema"
	"github.com/jllopis/actionhub/pkg/telemetry"
)

// Dispatch stages, recorded as span events.
const (
	StageResolveAction   = "resolve_action"
	StageValidateInput   = "validate_input"
	StageSelectExecutor  = "select_executor"
	StageRateLimit       = "enforce_rate_limit"
	StageBuildInvocation = "build_invocation"
	StageExecute         = "execute"
	StageNormalize       = "normalize_result"
)

// Resolver looks up registry records. *registry.Registry satisfies it.
type Resolver interface {
	Action(id string) (registry.Action, bool)
	Capability(id string) (registry.Capability, bool)
}

// Validator checks an instance against a schema reference.
// *schema.Compiler satisfies it.
type Validator interface {
	Validate(ref string, instance any) (schema.Result, error)
}

// Dispatcher runs the dispatch state machine. It holds no per-call state
// and is safe for concurrent use.
type Dispatcher struct {
	resolver  Resolver
	validator Validator
	router    *executor.Router
	limiter   ratelimit.Limiter
	audit     audit.Store
	metrics   *telemetry.DispatchMetrics
	logger    *slog.Logger
	timeout   time.Duration
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLimiter enforces capability rate limits.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithAuditStore records one entry per dispatch.
func WithAuditStore(s audit.Store) Option {
	return func(d *Dispatcher) { d.audit = s }
}

// WithMetrics records dispatch counters and latency.
func WithMetrics(m *telemetry.DispatchMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the dispatch logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTimeout bounds each executor call. Zero leaves the caller deadline alone.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

// New returns a Dispatcher. validator may be nil when no action declares
// an input schema.
func New(resolver Resolver, validator Validator, router *executor.Router, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver:  resolver,
		validator: validator,
		router:    router,
		logger:    slog.Default(),
		tracer:    otel.Tracer("actionhub/dispatch"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Router returns the executor router.
func (d *Dispatcher) Router() *executor.Router {
	return d.router
}

// run carries the bookkeeping for a single dispatch.
type run struct {
	id         string
	actionID   string
	capability string
	executor   string
	start      time.Time
	span       trace.Span
}

// Dispatch runs actionID with req. It never panics and never returns a Go
// error: every failure is reported in the Response.
func (d *Dispatcher) Dispatch(ctx context.Context, actionID string, req Request) (resp Response) {
	r := &run{id: uuid.NewString(), actionID: actionID, start: d.now()}
	ctx = telemetry.WithInvocationID(ctx, r.id)
	ctx, r.span = d.tracer.Start(ctx, "Dispatch", trace.WithAttributes(
		telemetry.DispatchAttributes(r.id, actionID, "", "")...,
	))
	defer r.span.End()

	d.logger.InfoContext(ctx, "dispatch.start", slog.String("action_id", actionID))

	defer func() {
		if p := recover(); p != nil {
			err := errors.New(errors.CodeInternal, "dispatch panicked", fmt.Errorf("%v", p))
			resp = failure(err, nil)
		}
		resp.InvocationID = r.id
		d.finish(ctx, r, resp)
	}()

	data, details, err := d.dispatch(ctx, r, actionID, req)
	if err != nil {
		return failure(err, details)
	}
	return Response{Success: true, Data: data}
}

func (d *Dispatcher) dispatch(ctx context.Context, r *run, actionID string, req Request) (*Envelope, []schema.ErrorDetail, error) {
	r.stage(StageResolveAction)
	action, ok := d.resolver.Action(actionID)
	if !ok {
		return nil, nil, errors.ActionNotFound(actionID)
	}
	r.capability = action.CapabilityID
	capability, _ := d.resolver.Capability(action.CapabilityID)
	r.span.SetAttributes(telemetry.DispatchAttributes(r.id, action.ID, action.CapabilityID, capability.Domain)...)

	input := req.Input
	if input == nil {
		input = map[string]any{}
	}

	if action.InputSchemaRef != "" {
		r.stage(StageValidateInput)
		if d.validator == nil {
			return nil, nil, errors.New(errors.CodeInternal, "no schema validator configured", nil).
				WithContext("schema_ref", action.InputSchemaRef)
		}
		result, err := d.validator.Validate(action.InputSchemaRef, input)
		if err != nil {
			return nil, nil, err
		}
		if !result.Valid {
			return nil, result.Errors, errors.InvalidInput(action.ID).
				WithContext("errors", result.Messages())
		}
	}

	r.stage(StageSelectExecutor)
	if d.router == nil {
		return nil, nil, errors.ExecutorNotConfigured(action.ExecutorName())
	}
	ex, name, err := d.router.Get(action.ExecutorName())
	if err != nil {
		return nil, nil, err
	}
	r.executor = name

	if d.limiter != nil && capability.RateLimit != nil {
		r.stage(StageRateLimit)
		decision, err := d.limiter.Allow(ctx, capability.ID, *capability.RateLimit)
		if err != nil {
			// A broken limiter backend does not block traffic.
			d.logger.WarnContext(ctx, "dispatch.ratelimit.error",
				slog.String("capability_id", capability.ID),
				slog.String("error", err.Error()),
			)
		} else if !decision.Allowed {
			return nil, nil, errors.RateLimited(capability.ID, decision.Window).
				WithContext("retry_after_seconds", int(decision.RetryAfter.Seconds()))
		}
	}

	r.stage(StageBuildInvocation)
	inv := executor.Invocation{
		ID:          r.id,
		ActionID:    action.ID,
		ActionName:  action.DisplayName(),
		Description: action.Description,
		Prompt:      BuildPrompt(action, input),
		Input:       input,
		Context:     req.Context,
		Repo:        action.Repo,
		Service:     action.Service,
		HTTP:        action.HTTP,
		Auth:        action.Auth,
		Metadata:    action.Metadata,
	}

	r.stage(StageExecute)
	result, err := d.execute(ctx, ex, name, inv)
	if err != nil {
		return nil, nil, err
	}

	r.stage(StageNormalize)
	return &Envelope{
		ActionID:         action.ID,
		ActionName:       action.DisplayName(),
		Result:           result.Value(),
		ExecutorMetadata: result.Metadata,
	}, nil, nil
}

func (d *Dispatcher) execute(ctx context.Context, ex executor.Executor, name string, inv executor.Invocation) (res *executor.Result, err error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = errors.ExecutorError(errors.KindFailed, name, fmt.Errorf("executor panicked: %v", p))
		}
	}()

	res, err = ex.Execute(ctx, inv)
	switch {
	case err == nil && ctx.Err() == nil:
		if res == nil {
			res = &executor.Result{}
		}
		return res, nil
	case stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, errors.ExecutorError(errors.KindTimeout, name, context.DeadlineExceeded)
	case stderrors.Is(err, context.Canceled) || stderrors.Is(ctx.Err(), context.Canceled):
		return nil, errors.ExecutorError(errors.KindCancelled, name, context.Canceled)
	default:
		if errors.Is(err, errors.CodeExecutor) {
			return nil, err
		}
		return nil, errors.ExecutorError(errors.KindFailed, name, err)
	}
}

func (d *Dispatcher) finish(ctx context.Context, r *run, resp Response) {
	finished := d.now()
	elapsed := finished.Sub(r.start)

	var err error
	outcome := telemetry.OutcomeSuccess
	if !resp.Success {
		outcome = telemetry.OutcomeError
		err = errors.New(errors.ErrorCode(resp.Code), resp.Error, nil)
		r.span.SetStatus(codes.Error, resp.Error)
	} else {
		r.span.SetStatus(codes.Ok, "")
	}
	r.span.SetAttributes(telemetry.OutcomeAttributes(r.executor, outcome, resp.Code, float64(elapsed.Microseconds())/1000)...)
	d.metrics.RecordDispatch(ctx, r.actionID, r.executor, elapsed, err)

	attrs := []any{
		slog.String("action_id", r.actionID),
		slog.String("executor", r.executor),
		slog.String("outcome", outcome),
		slog.Duration("duration", elapsed),
	}
	if resp.Success {
		d.logger.InfoContext(ctx, "dispatch.done", attrs...)
	} else {
		attrs = append(attrs, slog.String("code", resp.Code), slog.String("error", resp.Error))
		d.logger.WarnContext(ctx, "dispatch.error", attrs...)
	}

	if d.audit == nil {
		return
	}
	entry := audit.Entry{
		InvocationID: r.id,
		ActionID:     r.actionID,
		CapabilityID: r.capability,
		Executor:     r.executor,
		Outcome:      outcome,
		ErrorCode:    resp.Code,
		Error:        resp.Error,
		StartedAt:    r.start,
		FinishedAt:   finished,
	}
	// The caller may already be cancelled; the audit write must still land.
	if err := d.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.ErrorContext(ctx, "dispatch.audit.error", slog.String("error", err.Error()))
	}
}

func (r *run) stage(name string) {
	r.span.AddEvent("dispatch.stage", trace.WithAttributes(attribute.String(telemetry.AttrStage, name)))
}

// BuildPrompt renders the text handed to prompt-driven executors.
func BuildPrompt(action registry.Action, input map[string]any) string {
	encoded, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", input))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Action: %s\n", action.DisplayName())
	fmt.Fprintf(&b, "Description: %s\n", action.Description)
	fmt.Fprintf(&b, "Input: %s\n\n", encoded)
	b.WriteString("Please process this action and provide a response.")
	return b.String()
}
