package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
	"github.com/AntonStoeckl/cdc-event-simulator/eventsim/postgresengine/internal/adapters"
)

const (
	defaultEventTableName = "events"
	engineName            = "postgres"
	dialectPostgres       = "postgres"

	logMsgBuildInsertQueryFailed = "failed to build insert query"
	logMsgBuildCountQueryFailed  = "failed to build count query"
	logMsgDBExecFailed           = "database execution failed during event insert"
	logMsgSchemaInitFailed       = "creating events table failed"
	logMsgSchemaEnsured          = "events table ensured"
	logMsgCountFailed            = "counting events failed"
	logMsgSQLExecuted            = "executed sql for: "
	logAttrQuery                 = "query"
	logActionInsert              = "insert"
	logActionCount               = "count"
	logActionEnsureSchema        = "ensure_schema"

	colID        = "id"
	colEventType = "event_type"
	colValue     = "value"
	colCreatedAt = "created_at"

	// createTableStatement is completed with the quoted table name.
	createTableStatement = `CREATE TABLE IF NOT EXISTS %s (
    id SERIAL PRIMARY KEY,
    event_type TEXT,
    value FLOAT8,
    created_at BIGINT
)`
)

// EventStore inserts generated events into a PostgreSQL table.
// It owns its database connection and releases it on Close.
type EventStore struct {
	db        adapters.DBAdapter
	tableName string
	observer  eventsim.Observer
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventsim.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventsim.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventsim.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), options...)
}

func newEventStore(db adapters.DBAdapter, options ...Option) (*EventStore, error) {
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

// TableName returns the name of the events table.
func (es *EventStore) TableName() string {
	return es.tableName
}

// EnsureSchema creates the events table if it does not exist yet. Calling it repeatedly is safe.
// An existing table with different columns is left untouched.
func (es *EventStore) EnsureSchema(ctx context.Context) error {
	ctx, span := es.observer.StartSpan(ctx, eventsim.SpanNameEnsureSchema, map[string]string{
		eventsim.AttrTable:  es.tableName,
		eventsim.AttrEngine: engineName,
	})

	statement := strings.Replace(createTableStatement, "%s", quoteQualifiedIdentifier(es.tableName), 1)

	start := time.Now()
	err := es.db.Exec(ctx, statement)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, statement, logActionEnsureSchema, duration)

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

// Insert writes one event as its own statement and returns it with the database assigned ID.
func (es *EventStore) Insert(ctx context.Context, event eventsim.Event) (eventsim.Event, error) {
	if err := event.Validate(); err != nil {
		return eventsim.Event{}, errors.Join(eventsim.ErrInsertFailed, err)
	}

	sqlQuery, buildErr := es.buildInsertQuery(event)
	if buildErr != nil {
		es.observer.Error(ctx, logMsgBuildInsertQueryFailed, buildErr, eventsim.AttrEventType, event.EventType.String())
		return eventsim.Event{}, errors.Join(eventsim.ErrBuildingQueryFailed, buildErr)
	}

	start := time.Now()
	var id int64
	scanErr := es.db.QueryRow(ctx, sqlQuery).Scan(&id)
	es.logQueryWithDuration(ctx, sqlQuery, logActionInsert, time.Since(start))

	if scanErr != nil {
		es.observer.Error(ctx, logMsgDBExecFailed, scanErr, logAttrQuery, sqlQuery)
		return eventsim.Event{}, errors.Join(eventsim.ErrInsertFailed, scanErr)
	}

	event.ID = id

	return event, nil
}

// Count returns the number of rows in the events table.
func (es *EventStore) Count(ctx context.Context) (int64, error) {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(goqu.I(es.tableName)).
		Select(goqu.COUNT(goqu.Star())).
		ToSQL()
	if buildErr != nil {
		es.observer.Error(ctx, logMsgBuildCountQueryFailed, buildErr)
		return 0, errors.Join(eventsim.ErrBuildingQueryFailed, buildErr)
	}

	start := time.Now()
	var count int64
	scanErr := es.db.QueryRow(ctx, sqlQuery).Scan(&count)
	es.logQueryWithDuration(ctx, sqlQuery, logActionCount, time.Since(start))

	if scanErr != nil {
		es.observer.Error(ctx, logMsgCountFailed, scanErr, eventsim.AttrTable, es.tableName)
		return 0, errors.Join(eventsim.ErrCountingEventsFailed, scanErr)
	}

	return count, nil
}

// Ping checks that the database connection is alive.
func (es *EventStore) Ping(ctx context.Context) error {
	return es.db.Ping(ctx)
}

// Close releases the database connection.
func (es *EventStore) Close() error {
	return es.db.Close()
}

func (es *EventStore) buildInsertQuery(event eventsim.Event) (string, error) {
	sqlQuery, _, err := goqu.Dialect(dialectPostgres).
		Insert(goqu.I(es.tableName)).
		Rows(goqu.Record{
			colEventType: event.EventType.String(),
			colValue:     event.Value,
			colCreatedAt: event.CreatedAt,
		}).
		Returning(goqu.C(colID)).
		ToSQL()

	return sqlQuery, err
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (es *EventStore) logQueryWithDuration(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	es.observer.Debug(
		ctx,
		logMsgSQLExecuted+action,
		eventsim.AttrDurationMS, eventsim.DurationToMilliseconds(duration),
		logAttrQuery, sqlQuery,
	)
}

// quoteQualifiedIdentifier quotes every dot separated part of a possibly schema qualified name.
func quoteQualifiedIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = pq.QuoteIdentifier(part)
	}

	return strings.Join(parts, ".")
}
