package postgresengine

import (
	"regexp"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
)

// tableNamePattern accepts a table name with an optional schema qualifier.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore) error

// WithTableName sets the table name for the EventStore.
// The name may be schema qualified, e.g. "public.events".
func WithTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return eventsim.ErrEmptyEventsTableName
		}

		if !tableNamePattern.MatchString(tableName) {
			return eventsim.ErrInvalidTableName
		}

		es.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the EventStore.
//
// Debug level: SQL statements with execution timing
// Info level: schema initialization
// Error level: failures that cause operation failures.
func WithLogger(logger eventsim.Logger) Option {
	return func(es *EventStore) error {
		es.observer.Logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the EventStore.
// It takes precedence over the logger set with WithLogger and correlates log records with the active span.
func WithContextualLogger(logger eventsim.ContextualLogger) Option {
	return func(es *EventStore) error {
		es.observer.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the EventStore.
func WithMetrics(collector eventsim.MetricsCollector) Option {
	return func(es *EventStore) error {
		es.observer.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the EventStore.
func WithTracing(collector eventsim.TracingCollector) Option {
	return func(es *EventStore) error {
		es.observer.Tracing = collector
		return nil
	}
}
