package eventsim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

const defaultInterval = 500 * time.Millisecond

const (
	logMsgSimulationStarted  = "simulation started, inserting data"
	logMsgSimulationStopped  = "simulation stopped"
	logMsgSimulationFinished = "simulation finished, max events reached"
	logMsgEventInserted      = "event inserted"
	logMsgInsertFailed       = "inserting event failed"
)

// EventInserter persists a single event in its own transaction and returns it with the database-assigned ID.
type EventInserter interface {
	Insert(ctx context.Context, event Event) (Event, error)
}

// EventStore is the full contract of an engine: connection owner, schema initializer and event sink.
type EventStore interface {
	EventInserter
	EnsureSchema(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// ErrorPolicy decides what the simulator does when inserting an event fails.
type ErrorPolicy string

const (
	// ErrorPolicyExit stops the simulation and returns the insert error.
	ErrorPolicyExit ErrorPolicy = "exit"

	// ErrorPolicyContinue logs the insert error and keeps generating events.
	ErrorPolicyContinue ErrorPolicy = "continue"
)

// ParseErrorPolicy parses "exit" or "continue".
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch policy := ErrorPolicy(s); policy {
	case ErrorPolicyExit, ErrorPolicyContinue:
		return policy, nil
	default:
		return "", errors.Join(ErrInvalidErrorPolicy, fmt.Errorf("got %q", s))
	}
}

// Stats holds the counters of a Simulator.
type Stats struct {
	Inserted int64
	Failed   int64
}

// Simulator generates one event per interval and inserts it into an EventInserter.
//
// The loop has a single state, "generating". It ends when the context is canceled, when MaxEvents
// events were inserted, or with an error according to the ErrorPolicy.
type Simulator struct {
	store                  EventInserter
	generator              *Generator
	interval               time.Duration
	maxEvents              int64
	errorPolicy            ErrorPolicy
	maxConsecutiveFailures int
	observer               Observer

	inserted atomic.Int64
	failed   atomic.Int64
}

// SimulatorOption configures a Simulator using the functional options pattern.
type SimulatorOption func(*Simulator) error

// WithInterval sets the delay between two inserts.
func WithInterval(interval time.Duration) SimulatorOption {
	return func(s *Simulator) error {
		if interval < 0 {
			return ErrInvalidInterval
		}

		s.interval = interval

		return nil
	}
}

// WithMaxEvents stops the simulation after n inserted events. Zero means run forever.
func WithMaxEvents(n int64) SimulatorOption {
	return func(s *Simulator) error {
		if n < 0 {
			return ErrInvalidMaxEvents
		}

		s.maxEvents = n

		return nil
	}
}

// WithErrorPolicy sets the insert error policy.
func WithErrorPolicy(policy ErrorPolicy) SimulatorOption {
	return func(s *Simulator) error {
		if _, err := ParseErrorPolicy(string(policy)); err != nil {
			return err
		}

		s.errorPolicy = policy

		return nil
	}
}

// WithMaxConsecutiveFailures limits ErrorPolicyContinue. Zero means no limit.
func WithMaxConsecutiveFailures(n int) SimulatorOption {
	return func(s *Simulator) error {
		if n < 0 {
			return ErrInvalidMaxConsecutiveFailures
		}

		s.maxConsecutiveFailures = n

		return nil
	}
}

// WithGenerator replaces the default Generator.
func WithGenerator(generator *Generator) SimulatorOption {
	return func(s *Simulator) error {
		if generator == nil {
			return ErrNilGenerator
		}

		s.generator = generator

		return nil
	}
}

// WithLogger sets the logger for the Simulator.
func WithLogger(logger Logger) SimulatorOption {
	return func(s *Simulator) error {
		s.observer.Logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Simulator.
func WithContextualLogger(logger ContextualLogger) SimulatorOption {
	return func(s *Simulator) error {
		s.observer.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Simulator.
func WithMetrics(collector MetricsCollector) SimulatorOption {
	return func(s *Simulator) error {
		s.observer.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Simulator.
func WithTracing(collector TracingCollector) SimulatorOption {
	return func(s *Simulator) error {
		s.observer.Tracing = collector
		return nil
	}
}

// NewSimulator creates a Simulator that inserts into store.
func NewSimulator(store EventInserter, options ...SimulatorOption) (*Simulator, error) {
	if store == nil {
		return nil, ErrNilEventStore
	}

	s := &Simulator{
		store:       store,
		interval:    defaultInterval,
		errorPolicy: ErrorPolicyExit,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	if s.generator == nil {
		generator, err := NewGenerator()
		if err != nil {
			return nil, err
		}

		s.generator = generator
	}

	return s, nil
}

// Run generates and inserts events until ctx is canceled (returns nil), MaxEvents is reached (returns nil),
// or an insert error ends the simulation according to the ErrorPolicy.
//
// Run is not meant to be called concurrently on the same Simulator.
func (s *Simulator) Run(ctx context.Context) error {
	s.observer.Info(
		ctx,
		logMsgSimulationStarted,
		AttrInterval, s.interval.String(),
		AttrErrorPolicy, string(s.errorPolicy),
	)

	consecutiveFailures := 0

	for {
		if ctx.Err() != nil {
			s.logStopped(ctx, logMsgSimulationStopped)
			return nil
		}

		event := s.generator.Next()

		if insertErr := s.insert(ctx, event); insertErr != nil {
			if ctx.Err() != nil {
				s.logStopped(ctx, logMsgSimulationStopped)
				return nil
			}

			if !errors.Is(insertErr, ErrInsertFailed) {
				insertErr = errors.Join(ErrInsertFailed, insertErr)
			}

			s.failed.Add(1)
			consecutiveFailures++
			s.observer.Error(ctx, logMsgInsertFailed, insertErr, AttrEventType, event.EventType.String(), AttrErrorPolicy, string(s.errorPolicy))

			if s.errorPolicy == ErrorPolicyExit {
				return insertErr
			}

			if s.maxConsecutiveFailures > 0 && consecutiveFailures >= s.maxConsecutiveFailures {
				return errors.Join(ErrTooManyConsecutiveFailures, insertErr)
			}
		} else {
			consecutiveFailures = 0

			if s.maxEvents > 0 && s.inserted.Load() >= s.maxEvents {
				s.logStopped(ctx, logMsgSimulationFinished)
				return nil
			}
		}

		if err := sleep(ctx, s.interval); err != nil {
			s.logStopped(ctx, logMsgSimulationStopped)
			return nil
		}
	}
}

// Stats returns the current counters. It is safe to call while Run is active.
func (s *Simulator) Stats() Stats {
	return Stats{
		Inserted: s.inserted.Load(),
		Failed:   s.failed.Load(),
	}
}

func (s *Simulator) insert(ctx context.Context, event Event) error {
	ctx, span := s.observer.StartSpan(ctx, SpanNameInsert, map[string]string{AttrEventType: event.EventType.String()})

	start := time.Now()
	stored, err := s.store.Insert(ctx, event)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			// interrupted by shutdown, not a failure
			s.observer.FinishSpan(span, StatusCanceled, nil)
			return err
		}

		errorType := ErrorType(err)
		s.observer.IncrementCounter(ctx, MetricInsertFailures, map[string]string{AttrErrorType: errorType})
		s.observer.RecordDuration(ctx, MetricInsertDuration, duration, map[string]string{AttrStatus: StatusError})
		s.observer.FinishSpan(span, StatusError, map[string]string{AttrErrorType: errorType})

		return err
	}

	s.inserted.Add(1)

	labels := map[string]string{AttrEventType: stored.EventType.String()}
	s.observer.IncrementCounter(ctx, MetricEventsInserted, labels)
	s.observer.RecordValue(ctx, MetricEventValue, stored.Value, labels)
	s.observer.RecordDuration(ctx, MetricInsertDuration, duration, map[string]string{AttrStatus: StatusSuccess})
	s.observer.AddSpanAttribute(span, AttrEventID, strconv.FormatInt(stored.ID, 10))
	s.observer.FinishSpan(span, StatusSuccess, nil)

	s.observer.Debug(
		ctx,
		logMsgEventInserted,
		AttrEventID, stored.ID,
		AttrEventType, stored.EventType.String(),
		AttrEventValue, stored.Value,
		AttrCreatedAt, stored.CreatedAt,
		AttrDurationMS, DurationToMilliseconds(duration),
	)

	return nil
}

func (s *Simulator) logStopped(ctx context.Context, msg string) {
	stats := s.Stats()
	s.observer.Info(context.WithoutCancel(ctx), msg, AttrInserted, stats.Inserted, AttrFailed, stats.Failed)
}
