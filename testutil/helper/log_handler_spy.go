package helper

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"sync"
)

// SpyLogRecord is one captured log line with its attributes flattened to strings.
// Attributes added through Logger.With are included.
type SpyLogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

type spyLogStore struct {
	mu      sync.Mutex
	records []SpyLogRecord
}

// LogHandlerSpy is a slog.Handler that captures every record at every level.
// Handlers derived with WithAttrs write into the same capture.
type LogHandlerSpy struct {
	store *spyLogStore
	attrs []slog.Attr
	echo  slog.Handler
}

// NewLogHandlerSpy creates a new LogHandlerSpy. With echo set, records are also printed to stdout as JSON,
// which helps when debugging a failing test.
func NewLogHandlerSpy(echo bool) *LogHandlerSpy {
	spy := &LogHandlerSpy{store: &spyLogStore{}}
	if echo {
		spy.echo = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	return spy
}

// Handle implements slog.Handler.
func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	captured := SpyLogRecord{
		Level:   record.Level,
		Message: record.Message,
		Attrs:   make(map[string]string, len(s.attrs)+record.NumAttrs()),
	}

	for _, attr := range s.attrs {
		captured.Attrs[attr.Key] = attr.Value.String()
	}

	record.Attrs(func(attr slog.Attr) bool {
		captured.Attrs[attr.Key] = attr.Value.String()
		return true
	})

	s.store.mu.Lock()
	s.store.records = append(s.store.records, captured)
	s.store.mu.Unlock()

	if s.echo != nil {
		return s.echo.Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler.
func (s *LogHandlerSpy) Enabled(context.Context, slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler.
func (s *LogHandlerSpy) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := &LogHandlerSpy{
		store: s.store,
		attrs: append(slices.Clone(s.attrs), attrs...),
		echo:  s.echo,
	}
	if s.echo != nil {
		derived.echo = s.echo.WithAttrs(attrs)
	}

	return derived
}

// WithGroup implements slog.Handler. Groups are ignored, attributes keep their plain keys.
func (s *LogHandlerSpy) WithGroup(string) slog.Handler {
	return s
}

// Records returns a copy of all captured records in logging order.
func (s *LogHandlerSpy) Records() []SpyLogRecord {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	return slices.Clone(s.store.records)
}

// CountMessages returns how many records with the given level and message were captured.
func (s *LogHandlerSpy) CountMessages(level slog.Level, message string) int {
	count := 0
	for _, record := range s.Records() {
		if record.Level == level && record.Message == message {
			count++
		}
	}

	return count
}

// HasLog reports whether a record with the given level and message was captured.
func (s *LogHandlerSpy) HasLog(level slog.Level, message string) bool {
	return s.CountMessages(level, message) > 0
}

// HasLogWithAttr reports whether a record with the given level and message carries the attribute key.
func (s *LogHandlerSpy) HasLogWithAttr(level slog.Level, message, key string) bool {
	_, ok := s.AttrValue(level, message, key)
	return ok
}

// AttrValue returns the attribute value of the first matching record.
func (s *LogHandlerSpy) AttrValue(level slog.Level, message, key string) (string, bool) {
	for _, record := range s.Records() {
		if record.Level != level || record.Message != message {
			continue
		}

		if value, ok := record.Attrs[key]; ok {
			return value, true
		}
	}

	return "", false
}
