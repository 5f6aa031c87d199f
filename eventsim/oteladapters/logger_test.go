package oteladapters_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
	"github.com/AntonStoeckl/cdc-event-simulator/eventsim/oteladapters"
	"github.com/AntonStoeckl/cdc-event-simulator/testutil/helper"
)

type exportedRecord struct {
	body     string
	severity otellog.Severity
	traceID  trace.TraceID
	spanID   trace.SpanID
}

type recordingExporter struct {
	mu      sync.Mutex
	records []exportedRecord
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range records {
		e.records = append(e.records, exportedRecord{
			body:     r.Body().AsString(),
			severity: r.Severity(),
			traceID:  r.TraceID(),
			spanID:   r.SpanID(),
		})
	}

	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) find(body string) (exportedRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range e.records {
		if r.body == body {
			return r, true
		}
	}

	return exportedRecord{}, false
}

func newBridgeLogger(t *testing.T, level slog.Leveler) (*oteladapters.SlogBridgeLogger, *recordingExporter, *helper.LogHandlerSpy) {
	t.Helper()

	exporter := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	local := helper.NewLogHandlerSpy(false)

	return oteladapters.NewSlogBridgeLogger("test", provider, local, level), exporter, local
}

func Test_SlogBridgeLogger_WritesToTheLocalHandlerAndTheProvider(t *testing.T) {
	logger, exporter, local := newBridgeLogger(t, slog.LevelDebug)
	ctx := context.Background()

	logger.DebugContext(ctx, "debug message", "k", "v")
	logger.InfoContext(ctx, "info message")
	logger.WarnContext(ctx, "warn message")
	logger.ErrorContext(ctx, "error message", eventsim.AttrError, "boom")

	for level, msg := range map[slog.Level]string{
		slog.LevelDebug: "debug message",
		slog.LevelInfo:  "info message",
		slog.LevelWarn:  "warn message",
		slog.LevelError: "error message",
	} {
		assert.True(t, local.HasLog(level, msg), msg)
	}

	for severity, msg := range map[otellog.Severity]string{
		otellog.SeverityDebug: "debug message",
		otellog.SeverityInfo:  "info message",
		otellog.SeverityWarn:  "warn message",
		otellog.SeverityError: "error message",
	} {
		record, ok := exporter.find(msg)
		require.True(t, ok, msg)
		assert.Equal(t, severity, record.severity, msg)
	}

	assert.True(t, local.HasLogWithAttr(slog.LevelDebug, "debug message", "k"))
}

func Test_SlogBridgeLogger_ShouldNotExportRecordsBelowTheLevel(t *testing.T) {
	// arrange
	logger, exporter, local := newBridgeLogger(t, slog.LevelInfo)
	ctx := context.Background()

	// act
	logger.Slog().With("run_id", "abc").DebugContext(ctx, "event inserted")
	logger.InfoContext(ctx, "simulation started")

	// assert
	_, exported := exporter.find("event inserted")
	assert.False(t, exported, "debug records must not be exported at info level")

	_, exported = exporter.find("simulation started")
	assert.True(t, exported)

	assert.True(t, local.HasLog(slog.LevelDebug, "event inserted"), "the local handler applies its own level")
	assert.True(t, local.HasLog(slog.LevelInfo, "simulation started"))
}

func Test_SlogBridgeLogger_WithoutLocalHandler(t *testing.T) {
	exporter := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	logger := oteladapters.NewSlogBridgeLogger("test", provider, nil, nil)
	logger.Slog().With("run_id", "abc").InfoContext(context.Background(), "only exported")

	_, ok := exporter.find("only exported")
	assert.True(t, ok)
}

func Test_SlogBridgeLogger_CorrelatesLogsWithTheInsertSpan(t *testing.T) {
	logger, exporter, _ := newBridgeLogger(t, nil)
	tracing, spanExporter, _ := newTracingCollector(t)
	store := helper.NewFakeEventStore()

	simulator, err := eventsim.NewSimulator(
		store,
		eventsim.WithInterval(time.Millisecond),
		eventsim.WithMaxEvents(1),
		eventsim.WithContextualLogger(logger),
		eventsim.WithTracing(tracing),
	)
	require.NoError(t, err)

	require.NoError(t, simulator.Run(context.Background()))

	spans := spanExporter.GetSpans()
	require.Len(t, spans, 1)
	insertSpan := spans[0].SpanContext

	record, ok := exporter.find("event inserted")
	require.True(t, ok, "the insert debug log should be exported")
	assert.Equal(t, insertSpan.TraceID(), record.traceID)
	assert.Equal(t, insertSpan.SpanID(), record.spanID)

	started, ok := exporter.find("simulation started, inserting data")
	require.True(t, ok)
	assert.False(t, started.traceID.IsValid(), "logs outside of a span carry no trace")
}
