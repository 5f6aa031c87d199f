package oteladapters

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
)

const unitSeconds = "s"

var descriptions = map[string]string{
	eventsim.MetricConnectAttempts:  "Database connection attempts",
	eventsim.MetricConnectDuration:  "Time until the database connection was established",
	eventsim.MetricEventsInserted:   "Generated events inserted into the database",
	eventsim.MetricInsertFailures:   "Failed event inserts",
	eventsim.MetricInsertDuration:   "Duration of a single event insert",
	eventsim.MetricEventValue:       "Value of the last inserted event",
	eventsim.MetricSchemaInitsTotal: "Events table initializations",
}

// MetricsCollector implements eventsim.MetricsCollector using the OpenTelemetry metrics API.
// Instruments are created on first use:
//   - RecordDuration -> Float64Histogram in seconds
//   - IncrementCounter -> Int64Counter
//   - RecordValue -> Float64Gauge
type MetricsCollector struct {
	histograms *instruments[metric.Float64Histogram]
	counters   *instruments[metric.Int64Counter]
	gauges     *instruments[metric.Float64Gauge]
}

// NewMetricsCollector creates a new OpenTelemetry metrics collector.
// The meter should be created from your OpenTelemetry MeterProvider.
func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	return &MetricsCollector{
		histograms: newInstruments(func(name string) (metric.Float64Histogram, error) {
			return meter.Float64Histogram(name, metric.WithDescription(description(name)), metric.WithUnit(unitSeconds))
		}),
		counters: newInstruments(func(name string) (metric.Int64Counter, error) {
			return meter.Int64Counter(name, metric.WithDescription(description(name)))
		}),
		gauges: newInstruments(func(name string) (metric.Float64Gauge, error) {
			return meter.Float64Gauge(name, metric.WithDescription(description(name)))
		}),
	}
}

// RecordDuration records a duration in seconds.
func (m *MetricsCollector) RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	m.RecordDurationContext(context.Background(), metricName, duration, labels)
}

// RecordDurationContext records a duration in seconds. The context links exemplars to the active span.
func (m *MetricsCollector) RecordDurationContext(ctx context.Context, metricName string, duration time.Duration, labels map[string]string) {
	if histogram, ok := m.histograms.get(metricName); ok {
		histogram.Record(ctx, duration.Seconds(), metric.WithAttributes(toAttributes(labels)...))
	}
}

// IncrementCounter increments a counter by one.
func (m *MetricsCollector) IncrementCounter(metricName string, labels map[string]string) {
	m.IncrementCounterContext(context.Background(), metricName, labels)
}

// IncrementCounterContext increments a counter by one.
func (m *MetricsCollector) IncrementCounterContext(ctx context.Context, metricName string, labels map[string]string) {
	if counter, ok := m.counters.get(metricName); ok {
		counter.Add(ctx, 1, metric.WithAttributes(toAttributes(labels)...))
	}
}

// RecordValue records the current value of a gauge.
func (m *MetricsCollector) RecordValue(metricName string, value float64, labels map[string]string) {
	m.RecordValueContext(context.Background(), metricName, value, labels)
}

// RecordValueContext records the current value of a gauge.
func (m *MetricsCollector) RecordValueContext(ctx context.Context, metricName string, value float64, labels map[string]string) {
	if gauge, ok := m.gauges.get(metricName); ok {
		gauge.Record(ctx, value, metric.WithAttributes(toAttributes(labels)...))
	}
}

// instruments caches one instrument kind by metric name.
type instruments[I any] struct {
	mu     sync.Mutex
	byName map[string]I
	create func(name string) (I, error)
}

func newInstruments[I any](create func(name string) (I, error)) *instruments[I] {
	return &instruments[I]{byName: make(map[string]I), create: create}
}

// get returns false if the instrument cannot be created; the meter reports that error
// to the global OTel error handler.
func (i *instruments[I]) get(name string) (I, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if instrument, exists := i.byName[name]; exists {
		return instrument, true
	}

	instrument, err := i.create(name)
	if err != nil {
		var zero I
		return zero, false
	}

	i.byName[name] = instrument

	return instrument, true
}

func description(metricName string) string {
	if d, ok := descriptions[metricName]; ok {
		return d
	}

	return metricName
}

var (
	_ eventsim.MetricsCollector           = (*MetricsCollector)(nil)
	_ eventsim.ContextualMetricsCollector = (*MetricsCollector)(nil)
)
