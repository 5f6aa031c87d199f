package helper

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
)

// SpySpanRecord is a finished span captured by the TracingCollectorSpy.
// Attributes holds the start attributes merged with those added later.
type SpySpanRecord struct {
	Name       string
	Status     string
	Attributes map[string]string
}

type spySpan struct {
	mu     sync.Mutex
	record SpySpanRecord
}

func (s *spySpan) AddAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record.Attributes[key] = value
}

// TracingCollectorSpy captures finished spans.
type TracingCollectorSpy struct {
	mu       sync.Mutex
	finished []SpySpanRecord
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan implements eventsim.TracingCollector.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, eventsim.SpanContext) {
	span := &spySpan{record: SpySpanRecord{Name: name, Attributes: make(map[string]string, len(attrs))}}
	maps.Copy(span.record.Attributes, attrs)

	return ctx, span
}

// FinishSpan implements eventsim.TracingCollector.
func (s *TracingCollectorSpy) FinishSpan(spanCtx eventsim.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*spySpan)
	if !ok {
		return
	}

	for k, v := range attrs {
		span.AddAttribute(k, v)
	}

	span.mu.Lock()
	span.record.Status = status
	record := span.record
	record.Attributes = maps.Clone(span.record.Attributes)
	span.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.finished = append(s.finished, record)
}

// SpansNamed returns all finished spans with the given name in finishing order.
func (s *TracingCollectorSpy) SpansNamed(name string) []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []SpySpanRecord
	for _, record := range s.finished {
		if record.Name == name {
			records = append(records, record)
		}
	}

	return records
}

var _ eventsim.TracingCollector = (*TracingCollectorSpy)(nil)
