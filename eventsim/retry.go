package eventsim

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strconv"
	"time"
)

const (
	defaultMaxAttempts    = 0 // unbounded
	defaultBaseDelay      = 2 * time.Second
	defaultMultiplier     = 1.0
	defaultMaxDelay       = 30 * time.Second
	defaultJitterFactor   = 0.0
	defaultConnectTimeout = 5 * time.Second

	maxDelayFloat = float64(math.MaxInt64)
)

const (
	logMsgWaitingForDatabase = "waiting for database"
	logMsgConnected          = "connected to database"
	logMsgConnectGaveUp      = "giving up connecting to database"
)

// ErrorClass tells the connector whether a failed connection attempt is worth retrying.
type ErrorClass int

const (
	// ErrorClassTransient errors (refused connections, timeouts, DNS failures, a starting server) are retried.
	ErrorClassTransient ErrorClass = iota

	// ErrorClassPermanent errors (bad credentials, unknown database, malformed DSN) are only retried
	// if the policy is configured to retry permanent errors.
	ErrorClassPermanent
)

func (c ErrorClass) String() string {
	if c == ErrorClassPermanent {
		return "permanent"
	}

	return "transient"
}

// Classifier maps a connection error to an ErrorClass.
type Classifier func(err error) ErrorClass

// ClassifyAllTransient treats every error as transient.
func ClassifyAllTransient(error) ErrorClass {
	return ErrorClassTransient
}

// RetryPolicy controls how Connect retries failed connection attempts.
//
// The defaults wait for the database forever with a fixed 2 s delay and a 5 s timeout per attempt,
// which covers the startup-ordering race against a database container that is still booting.
// Errors classified as permanent fail fast unless WithRetryPermanentErrors(true) is set.
type RetryPolicy struct {
	maxAttempts        int
	baseDelay          time.Duration
	multiplier         float64
	maxDelay           time.Duration
	jitterFactor       float64
	connectTimeout     time.Duration
	retryPermanent     bool
	classify           Classifier
	explicitClassifier bool
}

// RetryOption configures a RetryPolicy using the functional options pattern.
type RetryOption func(*RetryPolicy) error

// NewRetryPolicy creates a RetryPolicy with the defaults overridden by the given options.
func NewRetryPolicy(options ...RetryOption) (RetryPolicy, error) {
	policy := DefaultRetryPolicy()

	for _, option := range options {
		if err := option(&policy); err != nil {
			return RetryPolicy{}, err
		}
	}

	return policy, nil
}

// DefaultRetryPolicy returns the default policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		maxAttempts:    defaultMaxAttempts,
		baseDelay:      defaultBaseDelay,
		multiplier:     defaultMultiplier,
		maxDelay:       defaultMaxDelay,
		jitterFactor:   defaultJitterFactor,
		connectTimeout: defaultConnectTimeout,
		classify:       ClassifyAllTransient,
	}
}

// WithMaxAttempts sets the maximum number of connection attempts. Zero means unbounded.
func WithMaxAttempts(attempts int) RetryOption {
	return func(p *RetryPolicy) error {
		if attempts < 0 {
			return ErrInvalidMaxAttempts
		}

		p.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the delay after the first failed attempt.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(p *RetryPolicy) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		p.baseDelay = delay

		return nil
	}
}

// WithMultiplier sets the exponential backoff multiplier.
// Actual delays: baseDelay, baseDelay*m, baseDelay*m^2, etc., capped at the max delay.
// A multiplier of 1.0 gives a fixed delay.
func WithMultiplier(multiplier float64) RetryOption {
	return func(p *RetryPolicy) error {
		if multiplier < 1.0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
			return ErrInvalidMultiplier
		}

		p.multiplier = multiplier

		return nil
	}
}

// WithMaxDelay caps the backoff delay. Zero disables the cap.
func WithMaxDelay(delay time.Duration) RetryOption {
	return func(p *RetryPolicy) error {
		if delay < 0 {
			return ErrNegativeMaxDelay
		}

		p.maxDelay = delay

		return nil
	}
}

// WithJitterFactor adds up to factor*delay of random jitter to each delay.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(p *RetryPolicy) error {
		if factor < 0.0 || factor > 1.0 || math.IsNaN(factor) {
			return ErrInvalidJitterFactor
		}

		p.jitterFactor = factor

		return nil
	}
}

// WithConnectTimeout sets the timeout of a single connection attempt. Zero disables it.
func WithConnectTimeout(timeout time.Duration) RetryOption {
	return func(p *RetryPolicy) error {
		if timeout < 0 {
			return ErrInvalidConnectTimeout
		}

		p.connectTimeout = timeout

		return nil
	}
}

// WithRetryPermanentErrors makes the policy retry errors classified as permanent, too.
func WithRetryPermanentErrors(retry bool) RetryOption {
	return func(p *RetryPolicy) error {
		p.retryPermanent = retry
		return nil
	}
}

// WithClassifier sets the error classifier. Engines install their own classifier
// unless one was set explicitly.
func WithClassifier(classify Classifier) RetryOption {
	return func(p *RetryPolicy) error {
		if classify == nil {
			p.classify = ClassifyAllTransient
			p.explicitClassifier = false

			return nil
		}

		p.classify = classify
		p.explicitClassifier = true

		return nil
	}
}

// WithFallbackClassifier returns a copy of the policy that uses classify unless a classifier was set explicitly.
func (p RetryPolicy) WithFallbackClassifier(classify Classifier) RetryPolicy {
	if p.explicitClassifier || classify == nil {
		return p
	}

	p.classify = classify

	return p
}

// MaxAttempts returns the configured maximum of attempts, zero means unbounded.
func (p RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ConnectTimeout returns the timeout of a single connection attempt.
func (p RetryPolicy) ConnectTimeout() time.Duration {
	return p.connectTimeout
}

// Delay returns the backoff delay after the given number of failed attempts (1-based), jitter included.
// Without a max delay the result saturates at the largest time.Duration.
func (p RetryPolicy) Delay(failedAttempts int) time.Duration {
	if failedAttempts < 1 {
		return 0
	}

	delay := float64(p.baseDelay) * math.Pow(p.multiplier, float64(failedAttempts-1))
	if p.maxDelay > 0 && delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}

	if p.jitterFactor > 0 && delay < maxDelayFloat {
		delay += rand.Float64() * delay * p.jitterFactor //nolint:gosec // math/rand is sufficient for jitter
	}

	// uncapped exponential growth leaves the int64 range after a few dozen attempts
	if delay >= maxDelayFloat {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(delay)
}

func (p RetryPolicy) classifyError(err error) ErrorClass {
	if p.classify == nil {
		return ErrorClassTransient
	}

	return p.classify(err)
}

// DialFunc opens a connection. Connect calls it once per attempt with a context that carries the per-attempt timeout.
type DialFunc[T any] func(ctx context.Context) (T, error)

// ConnectStats describes a finished Connect call.
type ConnectStats struct {
	Attempts int
	Duration time.Duration
}

// Connect calls dial until it succeeds, following the retry policy.
//
// Every failed attempt is logged at info level together with the delay until the next attempt.
// Connect stops when the context is canceled (returning ctx.Err()), when an error is classified as
// permanent and the policy does not retry permanent errors (ErrPermanentConnectFailure), or when the
// policy ran out of attempts (ErrMaxConnectAttemptsReached). The last driver error is joined in both cases.
func Connect[T any](ctx context.Context, dial DialFunc[T], policy RetryPolicy, observer Observer) (T, ConnectStats, error) {
	var zero T
	start := time.Now()

	ctx, span := observer.StartSpan(ctx, SpanNameConnect, nil)

	for attempt := 1; ; attempt++ {
		observer.AddSpanAttribute(span, AttrAttempt, strconv.Itoa(attempt))

		conn, dialErr := dialOnce(ctx, dial, policy.connectTimeout)
		if dialErr == nil {
			stats := ConnectStats{Attempts: attempt, Duration: time.Since(start)}
			recordConnectAttempt(ctx, observer, StatusSuccess, "")
			observer.RecordDuration(ctx, MetricConnectDuration, stats.Duration, map[string]string{AttrResult: StatusSuccess})
			observer.Info(ctx, logMsgConnected, AttrAttempt, attempt, AttrDurationMS, DurationToMilliseconds(stats.Duration))
			observer.FinishSpan(span, StatusSuccess, nil)

			return conn, stats, nil
		}

		class := policy.classifyError(dialErr)
		recordConnectAttempt(ctx, observer, StatusError, class.String())
		stats := ConnectStats{Attempts: attempt, Duration: time.Since(start)}

		if ctxErr := ctx.Err(); ctxErr != nil {
			observer.FinishSpan(span, StatusCanceled, nil)
			return zero, stats, ctxErr
		}

		if class == ErrorClassPermanent && !policy.retryPermanent {
			observer.Error(ctx, logMsgConnectGaveUp, dialErr, AttrAttempt, attempt, AttrErrorClass, class.String())
			observer.FinishSpan(span, StatusError, map[string]string{AttrErrorClass: class.String()})

			return zero, stats, errors.Join(ErrPermanentConnectFailure, dialErr)
		}

		if policy.maxAttempts > 0 && attempt >= policy.maxAttempts {
			observer.Error(ctx, logMsgConnectGaveUp, dialErr, AttrAttempt, attempt, AttrErrorClass, class.String())
			observer.FinishSpan(span, StatusError, map[string]string{AttrErrorClass: class.String()})

			return zero, stats, errors.Join(ErrMaxConnectAttemptsReached, dialErr)
		}

		delay := policy.Delay(attempt)
		observer.Info(
			ctx,
			logMsgWaitingForDatabase,
			AttrAttempt, attempt,
			AttrError, dialErr.Error(),
			AttrErrorClass, class.String(),
			AttrNextDelay, delay.String(),
		)

		if err := sleep(ctx, delay); err != nil {
			observer.FinishSpan(span, StatusCanceled, nil)
			return zero, ConnectStats{Attempts: attempt, Duration: time.Since(start)}, err
		}
	}
}

func dialOnce[T any](ctx context.Context, dial DialFunc[T], timeout time.Duration) (T, error) {
	if timeout <= 0 {
		return dial(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return dial(attemptCtx)
}

func recordConnectAttempt(ctx context.Context, observer Observer, result, errorClass string) {
	labels := map[string]string{AttrResult: result}
	if errorClass != "" {
		labels[AttrErrorClass] = errorClass
	}

	observer.IncrementCounter(ctx, MetricConnectAttempts, labels)
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
