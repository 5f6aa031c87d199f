package helper

import (
	"maps"
	"sync"
	"time"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
)

type spyMetricKind int

const (
	spyCounter spyMetricKind = iota
	spyDuration
	spyValue
)

// SpyMetricCall is one captured call on the MetricsCollectorSpy.
// Duration is set for RecordDuration calls, Value for RecordValue calls.
type SpyMetricCall struct {
	Metric   string
	Duration time.Duration
	Value    float64
	Labels   map[string]string
	kind     spyMetricKind
}

// MetricsCollectorSpy records every call of the plain eventsim.MetricsCollector methods.
type MetricsCollectorSpy struct {
	mu    sync.Mutex
	calls []SpyMetricCall
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

// RecordDuration implements eventsim.MetricsCollector.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.record(SpyMetricCall{Metric: metric, Duration: duration, Labels: labels, kind: spyDuration})
}

// IncrementCounter implements eventsim.MetricsCollector.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.record(SpyMetricCall{Metric: metric, Labels: labels, kind: spyCounter})
}

// RecordValue implements eventsim.MetricsCollector.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.record(SpyMetricCall{Metric: metric, Value: value, Labels: labels, kind: spyValue})
}

// CounterCount returns how often the counter was incremented with labels that contain all given labels.
func (s *MetricsCollectorSpy) CounterCount(metric string, labels map[string]string) int {
	count := 0
	for _, call := range s.filter(spyCounter, metric) {
		if containsLabels(call.Labels, labels) {
			count++
		}
	}

	return count
}

// DurationRecords returns the RecordDuration calls for metric.
func (s *MetricsCollectorSpy) DurationRecords(metric string) []SpyMetricCall {
	return s.filter(spyDuration, metric)
}

// ValueRecords returns the RecordValue calls for metric.
func (s *MetricsCollectorSpy) ValueRecords(metric string) []SpyMetricCall {
	return s.filter(spyValue, metric)
}

func (s *MetricsCollectorSpy) record(call SpyMetricCall) {
	call.Labels = maps.Clone(call.Labels)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, call)
}

func (s *MetricsCollectorSpy) filter(kind spyMetricKind, metric string) []SpyMetricCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	var calls []SpyMetricCall
	for _, call := range s.calls {
		if call.kind == kind && call.Metric == metric {
			calls = append(calls, call)
		}
	}

	return calls
}

func containsLabels(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}

	return true
}

var _ eventsim.MetricsCollector = (*MetricsCollectorSpy)(nil)
