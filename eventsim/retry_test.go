package eventsim_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
	"github.com/AntonStoeckl/cdc-event-simulator/testutil/helper"
)

var errConnectionRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
var errBadPassword = errors.New("password authentication failed for user \"admin\"")

func classifyBadPasswordAsPermanent(err error) eventsim.ErrorClass {
	if errors.Is(err, errBadPassword) {
		return eventsim.ErrorClassPermanent
	}

	return eventsim.ErrorClassTransient
}

func fastRetryPolicy(t *testing.T, options ...eventsim.RetryOption) eventsim.RetryPolicy {
	t.Helper()

	allOptions := []eventsim.RetryOption{eventsim.WithBaseDelay(5 * time.Millisecond)}
	allOptions = append(allOptions, options...)

	policy, err := eventsim.NewRetryPolicy(allOptions...)
	require.NoError(t, err)

	return policy
}

func Test_NewRetryPolicy_InvalidOptions(t *testing.T) {
	_, err := eventsim.NewRetryPolicy(eventsim.WithMaxAttempts(-1))
	assert.ErrorIs(t, err, eventsim.ErrInvalidMaxAttempts)

	_, err = eventsim.NewRetryPolicy(eventsim.WithBaseDelay(-1 * time.Second))
	assert.ErrorIs(t, err, eventsim.ErrNegativeBaseDelay)

	_, err = eventsim.NewRetryPolicy(eventsim.WithMaxDelay(-1 * time.Second))
	assert.ErrorIs(t, err, eventsim.ErrNegativeMaxDelay)

	_, err = eventsim.NewRetryPolicy(eventsim.WithMultiplier(0.5))
	assert.ErrorIs(t, err, eventsim.ErrInvalidMultiplier)

	_, err = eventsim.NewRetryPolicy(eventsim.WithJitterFactor(1.5))
	assert.ErrorIs(t, err, eventsim.ErrInvalidJitterFactor)

	_, err = eventsim.NewRetryPolicy(eventsim.WithConnectTimeout(-1 * time.Second))
	assert.ErrorIs(t, err, eventsim.ErrInvalidConnectTimeout)
}

func Test_DefaultRetryPolicy_ShouldWaitForeverWithAFixedTwoSecondDelay(t *testing.T) {
	policy := eventsim.DefaultRetryPolicy()

	assert.Equal(t, 0, policy.MaxAttempts())
	assert.Equal(t, 5*time.Second, policy.ConnectTimeout())
	assert.Equal(t, 2*time.Second, policy.Delay(1))
	assert.Equal(t, 2*time.Second, policy.Delay(10))
}

func Test_RetryPolicy_Delay_ShouldGrowExponentially_AndBeCapped(t *testing.T) {
	policy, err := eventsim.NewRetryPolicy(
		eventsim.WithBaseDelay(100*time.Millisecond),
		eventsim.WithMultiplier(2),
		eventsim.WithMaxDelay(500*time.Millisecond),
	)
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), policy.Delay(0))
	assert.Equal(t, 100*time.Millisecond, policy.Delay(1))
	assert.Equal(t, 200*time.Millisecond, policy.Delay(2))
	assert.Equal(t, 400*time.Millisecond, policy.Delay(3))
	assert.Equal(t, 500*time.Millisecond, policy.Delay(4))
	assert.Equal(t, 500*time.Millisecond, policy.Delay(20))
}

func Test_RetryPolicy_Delay_ShouldAddBoundedJitter(t *testing.T) {
	policy, err := eventsim.NewRetryPolicy(
		eventsim.WithBaseDelay(100*time.Millisecond),
		eventsim.WithJitterFactor(0.5),
	)
	require.NoError(t, err)

	for range 100 {
		delay := policy.Delay(1)
		assert.GreaterOrEqual(t, delay, 100*time.Millisecond)
		assert.LessOrEqual(t, delay, 150*time.Millisecond)
	}
}

func Test_RetryPolicy_Delay_ShouldSaturate_WithoutMaxDelay(t *testing.T) {
	for _, jitter := range []float64{0, 1} {
		policy, err := eventsim.NewRetryPolicy(
			eventsim.WithMultiplier(2),
			eventsim.WithMaxDelay(0),
			eventsim.WithJitterFactor(jitter),
		)
		require.NoError(t, err)

		assert.Positive(t, policy.Delay(33))
		for _, failedAttempts := range []int{34, 64, 2000} {
			assert.Equal(t, time.Duration(math.MaxInt64), policy.Delay(failedAttempts), "attempt %d, jitter %v", failedAttempts, jitter)
		}
	}
}

func Test_RetryPolicy_WithFallbackClassifier_ShouldNotOverrideAnExplicitClassifier(t *testing.T) {
	explicit := fastRetryPolicy(t, eventsim.WithClassifier(eventsim.ClassifyAllTransient), eventsim.WithMaxAttempts(1))
	policy := explicit.WithFallbackClassifier(classifyBadPasswordAsPermanent)

	_, _, err := eventsim.Connect(context.Background(), helper.NewFlakyDialer(1, errBadPassword, "conn").Dial, policy, eventsim.Observer{})

	assert.ErrorIs(t, err, eventsim.ErrMaxConnectAttemptsReached)
	assert.NotErrorIs(t, err, eventsim.ErrPermanentConnectFailure)
}

func Test_Connect_ShouldSucceed_OnTheFirstAttempt(t *testing.T) {
	dialer := helper.NewFlakyDialer(0, errConnectionRefused, "conn")

	conn, stats, err := eventsim.Connect(context.Background(), dialer.Dial, fastRetryPolicy(t), eventsim.Observer{})

	assert.NoError(t, err)
	assert.Equal(t, "conn", conn)
	assert.Equal(t, 1, stats.Attempts)
}

func Test_Connect_ShouldRetryUntilTheDatabaseIsReachable(t *testing.T) {
	// arrange
	logger, logSpy := helper.NewSpyLogger()
	metricsSpy := helper.NewMetricsCollectorSpy()
	tracingSpy := helper.NewTracingCollectorSpy()
	dialer := helper.NewFlakyDialer(3, errConnectionRefused, "conn")
	observer := eventsim.Observer{Logger: logger, Metrics: metricsSpy, Tracing: tracingSpy}

	// act
	conn, stats, err := eventsim.Connect(context.Background(), dialer.Dial, fastRetryPolicy(t), observer)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "conn", conn)
	assert.Equal(t, 4, stats.Attempts)
	assert.Len(t, dialer.Attempts(), 4)
	assert.Equal(t, 3, logSpy.CountMessages(slog.LevelInfo, "waiting for database"))
	assert.True(t, logSpy.HasLogWithAttr(slog.LevelInfo, "waiting for database", eventsim.AttrNextDelay))
	assert.True(t, logSpy.HasLog(slog.LevelInfo, "connected to database"))
	assert.Equal(t, 3, metricsSpy.CounterCount(eventsim.MetricConnectAttempts, map[string]string{eventsim.AttrResult: eventsim.StatusError}))
	assert.Equal(t, 1, metricsSpy.CounterCount(eventsim.MetricConnectAttempts, map[string]string{eventsim.AttrResult: eventsim.StatusSuccess}))
	assert.Len(t, metricsSpy.DurationRecords(eventsim.MetricConnectDuration), 1)

	spans := tracingSpy.SpansNamed(eventsim.SpanNameConnect)
	require.Len(t, spans, 1)
	assert.Equal(t, eventsim.StatusSuccess, spans[0].Status)
	assert.Equal(t, "4", spans[0].Attributes[eventsim.AttrAttempt])
}

func Test_Connect_ShouldWaitTheBackoffDelayBetweenAttempts(t *testing.T) {
	dialer := helper.NewFlakyDialer(2, errConnectionRefused, "conn")
	policy := fastRetryPolicy(t, eventsim.WithBaseDelay(30*time.Millisecond))

	_, _, err := eventsim.Connect(context.Background(), dialer.Dial, policy, eventsim.Observer{})
	require.NoError(t, err)

	attempts := dialer.Attempts()
	require.Len(t, attempts, 3)
	for i := 1; i < len(attempts); i++ {
		assert.GreaterOrEqual(t, attempts[i].Sub(attempts[i-1]), 30*time.Millisecond)
	}
}

func Test_Connect_ShouldSucceed_WhenTheDatabaseBecomesReachableLater(t *testing.T) {
	// arrange
	dialer := helper.NewFlakyDialer(1_000_000, errConnectionRefused, "conn")
	logger, logSpy := helper.NewSpyLogger()
	policy := fastRetryPolicy(t)

	done := make(chan error, 1)
	go func() {
		_, _, err := eventsim.Connect(context.Background(), dialer.Dial, policy, eventsim.Observer{Logger: logger})
		done <- err
	}()

	// act
	assert.Eventually(t, func() bool {
		return logSpy.CountMessages(slog.LevelInfo, "waiting for database") >= 3
	}, 2*time.Second, 5*time.Millisecond)
	dialer.MakeReachable()

	// assert
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not return after the database became reachable")
	}
}

func Test_Connect_ShouldFailFast_OnPermanentErrors(t *testing.T) {
	dialer := helper.NewFlakyDialer(1_000_000, errBadPassword, "conn")
	policy := fastRetryPolicy(t, eventsim.WithClassifier(classifyBadPasswordAsPermanent))

	_, stats, err := eventsim.Connect(context.Background(), dialer.Dial, policy, eventsim.Observer{})

	assert.ErrorIs(t, err, eventsim.ErrPermanentConnectFailure)
	assert.ErrorIs(t, err, errBadPassword)
	assert.Equal(t, 1, stats.Attempts)
}

func Test_Connect_ShouldRetryPermanentErrors_WhenConfigured(t *testing.T) {
	dialer := helper.NewFlakyDialer(2, errBadPassword, "conn")
	policy := fastRetryPolicy(
		t,
		eventsim.WithClassifier(classifyBadPasswordAsPermanent),
		eventsim.WithRetryPermanentErrors(true),
	)

	_, stats, err := eventsim.Connect(context.Background(), dialer.Dial, policy, eventsim.Observer{})

	assert.NoError(t, err)
	assert.Equal(t, 3, stats.Attempts)
}

func Test_Connect_ShouldGiveUp_AfterMaxAttempts(t *testing.T) {
	dialer := helper.NewFlakyDialer(1_000_000, errConnectionRefused, "conn")
	policy := fastRetryPolicy(t, eventsim.WithMaxAttempts(3))

	_, stats, err := eventsim.Connect(context.Background(), dialer.Dial, policy, eventsim.Observer{})

	assert.ErrorIs(t, err, eventsim.ErrMaxConnectAttemptsReached)
	assert.ErrorIs(t, err, errConnectionRefused)
	assert.Equal(t, 3, stats.Attempts)
	assert.Len(t, dialer.Attempts(), 3)
}

func Test_Connect_ShouldStop_WhenTheContextIsCanceled(t *testing.T) {
	dialer := helper.NewFlakyDialer(1_000_000, errConnectionRefused, "conn")
	policy := fastRetryPolicy(t, eventsim.WithBaseDelay(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := eventsim.Connect(ctx, dialer.Dial, policy, eventsim.Observer{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, dialer.Attempts(), 1)
}

func Test_Connect_ShouldApplyThePerAttemptTimeout(t *testing.T) {
	var deadlines []time.Duration
	dial := func(ctx context.Context) (string, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		deadlines = append(deadlines, time.Until(deadline))

		return "conn", nil
	}
	policy := fastRetryPolicy(t, eventsim.WithConnectTimeout(time.Second))

	_, _, err := eventsim.Connect(context.Background(), dial, policy, eventsim.Observer{})

	require.NoError(t, err)
	require.Len(t, deadlines, 1)
	assert.LessOrEqual(t, deadlines[0], time.Second)
	assert.Greater(t, deadlines[0], 500*time.Millisecond)
}
