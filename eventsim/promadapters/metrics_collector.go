// Package promadapters provides a Prometheus implementation of eventsim.MetricsCollector
// and the HTTP handler that exposes it.
package promadapters

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
)

// MetricsCollector implements eventsim.MetricsCollector with Prometheus vectors registered up front.
// Metric names unknown to eventsim are ignored; so are labels a metric does not declare.
type MetricsCollector struct {
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	labelNames map[string][]string
}

// NewMetricsCollector registers the eventsim metrics with registerer.
func NewMetricsCollector(registerer prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registerer)
	m := &MetricsCollector{
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		labelNames: make(map[string][]string),
	}

	m.addCounter(factory, eventsim.MetricConnectAttempts, "The total number of database connection attempts",
		eventsim.AttrResult, eventsim.AttrErrorClass)
	m.addCounter(factory, eventsim.MetricEventsInserted, "The total number of inserted events",
		eventsim.AttrEventType)
	m.addCounter(factory, eventsim.MetricInsertFailures, "The total number of failed event inserts",
		eventsim.AttrErrorType)
	m.addCounter(factory, eventsim.MetricSchemaInitsTotal, "The total number of events table initializations",
		eventsim.AttrStatus)

	m.addHistogram(factory, eventsim.MetricConnectDuration, "Time until the database connection was established",
		prometheus.ExponentialBuckets(0.01, 2, 14), eventsim.AttrResult)
	m.addHistogram(factory, eventsim.MetricInsertDuration, "Duration of a single event insert",
		prometheus.DefBuckets, eventsim.AttrStatus)

	m.addGauge(factory, eventsim.MetricEventValue, "Value of the last inserted event",
		eventsim.AttrEventType)

	return m
}

func (m *MetricsCollector) addCounter(factory promauto.Factory, name, help string, labelNames ...string) {
	m.counters[name] = factory.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames)
	m.labelNames[name] = labelNames
}

func (m *MetricsCollector) addHistogram(factory promauto.Factory, name, help string, buckets []float64, labelNames ...string) {
	m.histograms[name] = factory.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labelNames)
	m.labelNames[name] = labelNames
}

func (m *MetricsCollector) addGauge(factory promauto.Factory, name, help string, labelNames ...string) {
	m.gauges[name] = factory.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labelNames)
	m.labelNames[name] = labelNames
}

// RecordDuration observes a duration in seconds.
func (m *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	if histogram, ok := m.histograms[metric]; ok {
		histogram.With(m.labels(metric, labels)).Observe(duration.Seconds())
	}
}

// IncrementCounter increments a counter by one.
func (m *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	if counter, ok := m.counters[metric]; ok {
		counter.With(m.labels(metric, labels)).Inc()
	}
}

// RecordValue sets a gauge.
func (m *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	if gauge, ok := m.gauges[metric]; ok {
		gauge.With(m.labels(metric, labels)).Set(value)
	}
}

// labels picks exactly the declared label names, using "" for missing ones.
func (m *MetricsCollector) labels(metric string, given map[string]string) prometheus.Labels {
	names := m.labelNames[metric]
	labels := make(prometheus.Labels, len(names))
	for _, name := range names {
		labels[name] = given[name]
	}

	return labels
}

var _ eventsim.MetricsCollector = (*MetricsCollector)(nil)

// NewRegistry returns a registry with the Go runtime and process collectors registered.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// Handler serves the metrics of gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
