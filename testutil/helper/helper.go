package helper

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
)

// NewSpyLogger returns a *slog.Logger that writes into a fresh LogHandlerSpy.
func NewSpyLogger() (*slog.Logger, *LogHandlerSpy) {
	spy := NewLogHandlerSpy(false)
	return slog.New(spy), spy
}

// SeededRand returns a deterministic random source.
func SeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // test data
}

// FixedClock returns a clock that always returns t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// AssertValidEvent asserts the invariants of a generated event.
// CreatedAt must lie within tolerance of now.
func AssertValidEvent(t testing.TB, event eventsim.Event, now time.Time, tolerance time.Duration) {
	t.Helper()

	assert.NoError(t, event.Validate())
	assert.Contains(t, eventsim.EventTypes(), event.EventType)
	assert.GreaterOrEqual(t, event.Value, eventsim.MinValue)
	assert.LessOrEqual(t, event.Value, eventsim.MaxValue)
	assert.InDelta(t, now.UnixMilli(), event.CreatedAt, float64(tolerance.Milliseconds()))
}

// FlakyDialer simulates a database that is unreachable for the first failures attempts.
type FlakyDialer[T any] struct {
	mu       sync.Mutex
	failures int
	err      error
	conn     T
	attempts []time.Time
}

// NewFlakyDialer creates a FlakyDialer that fails with err the given number of times and then returns conn.
func NewFlakyDialer[T any](failures int, err error, conn T) *FlakyDialer[T] {
	return &FlakyDialer[T]{failures: failures, err: err, conn: conn}
}

// Dial implements eventsim.DialFunc.
func (d *FlakyDialer[T]) Dial(ctx context.Context) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.attempts = append(d.attempts, time.Now())

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	if len(d.attempts) <= d.failures {
		var zero T
		return zero, d.err
	}

	return d.conn, nil
}

// MakeReachable lets the next attempt succeed.
func (d *FlakyDialer[T]) MakeReachable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = 0
}

// Attempts returns the times of all dial attempts.
func (d *FlakyDialer[T]) Attempts() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]time.Time, len(d.attempts))
	copy(out, d.attempts)

	return out
}
