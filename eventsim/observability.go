package eventsim

import (
	"context"
	"errors"
	"time"
)

// Metric names emitted by the simulator and the engines.
const (
	MetricConnectAttempts  = "eventsim_connect_attempts_total"
	MetricConnectDuration  = "eventsim_connect_duration_seconds"
	MetricEventsInserted   = "eventsim_events_inserted_total"
	MetricInsertFailures   = "eventsim_insert_failures_total"
	MetricInsertDuration   = "eventsim_insert_duration_seconds"
	MetricEventValue       = "eventsim_event_value"
	MetricSchemaInitsTotal = "eventsim_schema_inits_total"
)

// Span names.
const (
	SpanNameConnect      = "eventsim.connect"
	SpanNameEnsureSchema = "eventsim.ensure_schema"
	SpanNameInsert       = "eventsim.insert"
)

// Label and attribute keys shared by logs, metrics and spans.
const (
	AttrError       = "error"
	AttrErrorType   = "error_type"
	AttrErrorClass  = "error_class"
	AttrEventType   = "event_type"
	AttrEventValue  = "value"
	AttrCreatedAt   = "created_at"
	AttrEventID     = "event_id"
	AttrTable       = "table"
	AttrEngine      = "engine"
	AttrAttempt     = "attempt"
	AttrNextDelay   = "next_delay"
	AttrDurationMS  = "duration_ms"
	AttrResult      = "result"
	AttrStatus      = "status"
	AttrInterval    = "interval"
	AttrInserted    = "inserted"
	AttrFailed      = "failed"
	AttrErrorPolicy = "error_policy"
)

// Status values for spans and the result label.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// Logger interface for operational logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with trace correlation. *slog.Logger satisfies it.
// When both a Logger and a ContextualLogger are configured, the ContextualLogger wins.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting simulator and engine metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods.
// It is optional, the Observer falls back to the plain MetricsCollector methods.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be updated with attributes until it is finished.
// The status is set when the TracingCollector finishes the span.
type SpanContext interface {
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting tracing information.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// Observer bundles the optional observability backends. Every method is a no-op for unset backends,
// so components can call it unconditionally.
type Observer struct {
	Logger           Logger
	ContextualLogger ContextualLogger
	Metrics          MetricsCollector
	Tracing          TracingCollector
}

// Debug logs at debug level.
func (o Observer) Debug(ctx context.Context, msg string, args ...any) {
	switch {
	case o.ContextualLogger != nil:
		o.ContextualLogger.DebugContext(ctx, msg, args...)
	case o.Logger != nil:
		o.Logger.Debug(msg, args...)
	}
}

// Info logs at info level.
func (o Observer) Info(ctx context.Context, msg string, args ...any) {
	switch {
	case o.ContextualLogger != nil:
		o.ContextualLogger.InfoContext(ctx, msg, args...)
	case o.Logger != nil:
		o.Logger.Info(msg, args...)
	}
}

// Warn logs at warn level.
func (o Observer) Warn(ctx context.Context, msg string, args ...any) {
	switch {
	case o.ContextualLogger != nil:
		o.ContextualLogger.WarnContext(ctx, msg, args...)
	case o.Logger != nil:
		o.Logger.Warn(msg, args...)
	}
}

// Error logs at error level with the error attached.
func (o Observer) Error(ctx context.Context, msg string, err error, args ...any) {
	allArgs := make([]any, 0, len(args)+2)
	allArgs = append(allArgs, AttrError, err.Error())
	allArgs = append(allArgs, args...)

	switch {
	case o.ContextualLogger != nil:
		o.ContextualLogger.ErrorContext(ctx, msg, allArgs...)
	case o.Logger != nil:
		o.Logger.Error(msg, allArgs...)
	}
}

// IncrementCounter increments a counter metric.
func (o Observer) IncrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	o.Metrics.IncrementCounter(metric, labels)
}

// RecordDuration records a duration metric.
func (o Observer) RecordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	o.Metrics.RecordDuration(metric, duration, labels)
}

// RecordValue records a gauge metric.
func (o Observer) RecordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	o.Metrics.RecordValue(metric, value, labels)
}

// StartSpan starts a tracing span. The returned SpanContext is nil if tracing is not configured.
func (o Observer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext) {
	if o.Tracing == nil {
		return ctx, nil
	}

	return o.Tracing.StartSpan(ctx, name, attrs)
}

// AddSpanAttribute adds an attribute to a span started with StartSpan.
func (o Observer) AddSpanAttribute(span SpanContext, key, value string) {
	if span == nil {
		return
	}

	span.AddAttribute(key, value)
}

// FinishSpan finishes a span started with StartSpan.
func (o Observer) FinishSpan(span SpanContext, status string, attrs map[string]string) {
	if o.Tracing == nil || span == nil {
		return
	}

	o.Tracing.FinishSpan(span, status, attrs)
}

// ErrorType extracts a coarse error type for metrics labeling.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	case errors.Is(err, ErrBuildingQueryFailed):
		return "build_query"
	case errors.Is(err, ErrInsertFailed):
		return "insert"
	default:
		return "other"
	}
}

// DurationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func DurationToMilliseconds(d time.Duration) float64 {
	return float64(d.Round(time.Microsecond).Microseconds()) / 1000
}
