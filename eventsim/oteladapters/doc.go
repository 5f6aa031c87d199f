// Package oteladapters provides OpenTelemetry implementations of the eventsim observability interfaces.
//
// MetricsCollector maps counters, durations and values onto OTel instruments, TracingCollector
// wraps an OTel tracer, and SlogBridgeLogger sends slog records both to a local handler and
// through the otelslog bridge, so every log line carries the trace and span of the operation
// that produced it.
package oteladapters
