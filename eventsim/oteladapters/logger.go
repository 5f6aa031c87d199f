package oteladapters

import (
	"context"
	"log/slog"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
)

// SlogBridgeLogger implements eventsim.ContextualLogger on top of the OpenTelemetry slog bridge.
// Records go to the local handler (usually stdout) and to the OTel LoggerProvider.
type SlogBridgeLogger struct {
	logger *slog.Logger
}

// NewSlogBridgeLogger creates a contextual logger named after the instrumentation scope.
// A nil provider makes the bridge use the global LoggerProvider; a nil local handler disables local output.
// Records below level are not exported; a nil level exports everything. The local handler applies its own level.
func NewSlogBridgeLogger(name string, provider log.LoggerProvider, local slog.Handler, level slog.Leveler) *SlogBridgeLogger {
	var options []otelslog.Option
	if provider != nil {
		options = append(options, otelslog.WithLoggerProvider(provider))
	}

	var bridge slog.Handler = otelslog.NewHandler(name, options...)
	if level != nil {
		bridge = slogmulti.Pipe(minLevel(level)).Handler(bridge)
	}

	if local == nil {
		return &SlogBridgeLogger{logger: slog.New(bridge)}
	}

	return &SlogBridgeLogger{logger: slog.New(slogmulti.Fanout(bridge, local))}
}

func minLevel(level slog.Leveler) slogmulti.Middleware {
	return slogmulti.NewEnabledInlineMiddleware(
		func(ctx context.Context, l slog.Level, next func(context.Context, slog.Level) bool) bool {
			return l >= level.Level() && next(ctx, l)
		},
	)
}

// Slog returns the underlying slog.Logger.
func (l *SlogBridgeLogger) Slog() *slog.Logger {
	return l.logger
}

// DebugContext logs a debug message with context.
func (l *SlogBridgeLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

// InfoContext logs an info message with context.
func (l *SlogBridgeLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

// WarnContext logs a warning message with context.
func (l *SlogBridgeLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

// ErrorContext logs an error message with context.
func (l *SlogBridgeLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

var _ eventsim.ContextualLogger = (*SlogBridgeLogger)(nil)
