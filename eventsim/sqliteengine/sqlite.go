package sqliteengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect import
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver for database/sql

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
)

const (
	defaultEventTableName = "events"
	engineName            = "sqlite"
	driverNameSQLite      = "sqlite"
	dialectSQLite         = "sqlite3"

	// MemoryPath opens a private in-memory database that lives as long as the EventStore.
	MemoryPath = ":memory:"

	logMsgSchemaEnsured    = "events table ensured"
	logMsgSchemaInitFailed = "creating events table failed"
	logMsgInsertFailed     = "database execution failed during event insert"
	logMsgCountFailed      = "counting events failed"
	logMsgSQLExecuted      = "executed sql for: "
	logAttrQuery           = "query"
	logActionInsert        = "insert"
	logActionEnsureSchema  = "ensure_schema"

	colEventType = "event_type"
	colValue     = "value"
	colCreatedAt = "created_at"

	createTableStatement = `CREATE TABLE IF NOT EXISTS %q (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type TEXT,
    value REAL,
    created_at INTEGER
)`
)

// pragmas are applied to the single connection right after opening it.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// EventStore inserts generated events into a SQLite table through a single connection.
type EventStore struct {
	db        *sqlx.DB
	tableName string
	observer  eventsim.Observer
}

// NewEventStoreFromSQLX creates a new EventStore using an already opened sqlx.DB.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventsim.ErrNilDatabaseConnection
	}

	return newEventStore(db, options...)
}

func newEventStore(db *sqlx.DB, options ...Option) (*EventStore, error) {
	es := &EventStore{
		db:        db,
		tableName: defaultEventTableName,
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// Connect opens the database file at path, creating its directory if needed, retrying according to policy.
// Unless the policy sets its own classifier, errors are classified by ClassifyError.
// Use MemoryPath for a throwaway database.
func Connect(ctx context.Context, path string, policy eventsim.RetryPolicy, options ...Option) (*EventStore, error) {
	es, err := newEventStore(nil, options...)
	if err != nil {
		return nil, err
	}

	db, _, connectErr := eventsim.Connect(ctx, dial(path), policy.WithFallbackClassifier(ClassifyError), es.observer)
	if connectErr != nil {
		return nil, errors.Join(eventsim.ErrConnectFailed, connectErr)
	}

	es.db = db

	return es, nil
}

func dial(path string) eventsim.DialFunc[*sqlx.DB] {
	return func(ctx context.Context) (*sqlx.DB, error) {
		if path != MemoryPath {
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}

		db, err := sqlx.Open(driverNameSQLite, path)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}

		// One connection that is never recycled, so an in-memory database survives idle periods.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)

		for _, pragma := range pragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
			}
		}

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pinging database: %w", err)
		}

		return db, nil
	}
}

// DB returns the underlying connection.
func (es *EventStore) DB() *sqlx.DB {
	return es.db
}

// EnsureSchema creates the events table if it does not exist yet. Calling it repeatedly is safe.
func (es *EventStore) EnsureSchema(ctx context.Context) error {
	ctx, span := es.observer.StartSpan(ctx, eventsim.SpanNameEnsureSchema, map[string]string{
		eventsim.AttrTable:  es.tableName,
		eventsim.AttrEngine: engineName,
	})

	statement := fmt.Sprintf(createTableStatement, es.tableName)

	start := time.Now()
	_, err := es.db.ExecContext(ctx, statement)
	es.logQueryWithDuration(ctx, statement, logActionEnsureSchema, time.Since(start))

	if err != nil {
		es.observer.Error(ctx, logMsgSchemaInitFailed, err, eventsim.AttrTable, es.tableName)
		es.observer.IncrementCounter(ctx, eventsim.MetricSchemaInitsTotal, map[string]string{eventsim.AttrStatus: eventsim.StatusError})
		es.observer.FinishSpan(span, eventsim.StatusError, map[string]string{eventsim.AttrErrorType: eventsim.ErrorType(err)})

		return errors.Join(eventsim.ErrSchemaInitFailed, err)
	}

	es.observer.Info(ctx, logMsgSchemaEnsured, eventsim.AttrTable, es.tableName, eventsim.AttrEngine, engineName)
	es.observer.IncrementCounter(ctx, eventsim.MetricSchemaInitsTotal, map[string]string{eventsim.AttrStatus: eventsim.StatusSuccess})
	es.observer.FinishSpan(span, eventsim.StatusSuccess, nil)

	return nil
}

// Insert writes one event and returns it with the assigned row ID.
func (es *EventStore) Insert(ctx context.Context, event eventsim.Event) (eventsim.Event, error) {
	if err := event.Validate(); err != nil {
		return eventsim.Event{}, errors.Join(eventsim.ErrInsertFailed, err)
	}

	sqlQuery, _, buildErr := goqu.Dialect(dialectSQLite).
		Insert(goqu.T(es.tableName)).
		Rows(goqu.Record{
			colEventType: event.EventType.String(),
			colValue:     event.Value,
			colCreatedAt: event.CreatedAt,
		}).
		ToSQL()
	if buildErr != nil {
		return eventsim.Event{}, errors.Join(eventsim.ErrBuildingQueryFailed, buildErr)
	}

	start := time.Now()
	result, execErr := es.db.ExecContext(ctx, sqlQuery)
	es.logQueryWithDuration(ctx, sqlQuery, logActionInsert, time.Since(start))

	if execErr != nil {
		es.observer.Error(ctx, logMsgInsertFailed, execErr, logAttrQuery, sqlQuery)
		return eventsim.Event{}, errors.Join(eventsim.ErrInsertFailed, execErr)
	}

	id, idErr := result.LastInsertId()
	if idErr != nil {
		return eventsim.Event{}, errors.Join(eventsim.ErrInsertFailed, idErr)
	}

	event.ID = id

	return event, nil
}

// Count returns the number of rows in the events table.
func (es *EventStore) Count(ctx context.Context) (int64, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectSQLite).
		From(goqu.T(es.tableName)).
		Select(goqu.COUNT(goqu.Star())).
		ToSQL()
	if buildErr != nil {
		return 0, errors.Join(eventsim.ErrBuildingQueryFailed, buildErr)
	}

	var count int64
	if err := es.db.GetContext(ctx, &count, sqlQuery); err != nil {
		es.observer.Error(ctx, logMsgCountFailed, err, eventsim.AttrTable, es.tableName)
		return 0, errors.Join(eventsim.ErrCountingEventsFailed, err)
	}

	return count, nil
}

// Close releases the database connection.
func (es *EventStore) Close() error {
	return es.db.Close()
}

func (es *EventStore) logQueryWithDuration(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	es.observer.Debug(
		ctx,
		logMsgSQLExecuted+action,
		eventsim.AttrDurationMS, eventsim.DurationToMilliseconds(duration),
		logAttrQuery, sqlQuery,
	)
}
