package eventsim

import "errors"

var (
	// ErrNilDatabaseConnection is returned when a nil database connection is supplied to an engine.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyEventsTableName is returned when an empty table name is supplied to an engine.
	ErrEmptyEventsTableName = errors.New("events table name must not be empty")

	// ErrInvalidTableName is returned when a table name is not a plain (optionally schema qualified) identifier.
	ErrInvalidTableName = errors.New("events table name must be a plain sql identifier")

	// ErrUnknownAdapterType is returned when an engine is asked for a database adapter it does not support.
	ErrUnknownAdapterType = errors.New("unknown database adapter type")

	// ErrInvalidEventType is returned when an event carries a type outside the fixed label set.
	ErrInvalidEventType = errors.New("invalid event type")

	// ErrValueOutOfRange is returned when an event value is outside [MinValue, MaxValue].
	ErrValueOutOfRange = errors.New("event value out of range")

	// ErrValuePrecision is returned when an event value has more than two decimal digits.
	ErrValuePrecision = errors.New("event value has more than two decimal digits")

	// ErrConnectFailed is joined with the driver error of a single failed connection attempt.
	ErrConnectFailed = errors.New("connecting to database failed")

	// ErrPermanentConnectFailure is returned when a connection attempt failed with an error
	// classified as permanent and the retry policy does not retry permanent errors.
	ErrPermanentConnectFailure = errors.New("permanent connection failure, not retrying")

	// ErrMaxConnectAttemptsReached is returned when the retry policy ran out of attempts.
	ErrMaxConnectAttemptsReached = errors.New("maximum connection attempts reached")

	// ErrSchemaInitFailed is returned when creating the events table failed.
	ErrSchemaInitFailed = errors.New("initializing events table failed")

	// ErrBuildingQueryFailed is returned when an SQL statement could not be built.
	ErrBuildingQueryFailed = errors.New("building sql query failed")

	// ErrInsertFailed is returned when persisting a generated event failed.
	ErrInsertFailed = errors.New("inserting event failed")

	// ErrCountingEventsFailed is returned when counting the persisted events failed.
	ErrCountingEventsFailed = errors.New("counting events failed")

	// ErrTooManyConsecutiveFailures is returned by the simulator when ErrorPolicyContinue
	// hit the configured maximum of consecutive insert failures.
	ErrTooManyConsecutiveFailures = errors.New("too many consecutive insert failures")

	// ErrNilEventStore is returned when a nil EventStore is supplied to NewSimulator.
	ErrNilEventStore = errors.New("event store must not be nil")

	// ErrNilRandSource is returned when a nil random source is supplied to WithRand.
	ErrNilRandSource = errors.New("random source must not be nil")

	// ErrNilClock is returned when a nil clock is supplied to WithClock.
	ErrNilClock = errors.New("clock must not be nil")

	// ErrNilGenerator is returned when a nil Generator is supplied to WithGenerator.
	ErrNilGenerator = errors.New("generator must not be nil")

	// ErrInvalidInterval is returned when the generation interval is negative.
	ErrInvalidInterval = errors.New("generation interval must not be negative")

	// ErrInvalidMaxEvents is returned when the maximum number of events is negative.
	ErrInvalidMaxEvents = errors.New("max events must not be negative")

	// ErrInvalidErrorPolicy is returned for an unknown ErrorPolicy.
	ErrInvalidErrorPolicy = errors.New("unknown error policy")

	// ErrInvalidMaxConsecutiveFailures is returned when the consecutive failure limit is negative.
	ErrInvalidMaxConsecutiveFailures = errors.New("max consecutive failures must not be negative")

	// ErrInvalidMaxAttempts is returned when max attempts are negative.
	ErrInvalidMaxAttempts = errors.New("max attempts must not be negative")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrNegativeMaxDelay is returned when the max delay is negative.
	ErrNegativeMaxDelay = errors.New("max delay must not be negative")

	// ErrInvalidMultiplier is returned when the backoff multiplier is below 1.0.
	ErrInvalidMultiplier = errors.New("backoff multiplier must be at least 1.0")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

	// ErrInvalidConnectTimeout is returned when the per-attempt connect timeout is negative.
	ErrInvalidConnectTimeout = errors.New("connect timeout must not be negative")
)
