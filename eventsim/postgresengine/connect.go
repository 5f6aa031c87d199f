package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver for database/sql and sqlx

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
	"github.com/AntonStoeckl/cdc-event-simulator/eventsim/postgresengine/internal/adapters"
)

const (
	driverNamePostgres  = "postgres"
	applicationName     = "cdc-event-simulator"
	runtimeParamAppName = "application_name"
)

// AdapterType selects the database library the EventStore connects with.
type AdapterType string

// Supported adapter types.
const (
	AdapterPGX  AdapterType = "pgx"
	AdapterSQL  AdapterType = "sql"
	AdapterSQLX AdapterType = "sqlx"
)

// ParseAdapterType parses an adapter name, case-insensitively.
func ParseAdapterType(s string) (AdapterType, error) {
	switch adapterType := AdapterType(strings.ToLower(strings.TrimSpace(s))); adapterType {
	case AdapterPGX, AdapterSQL, AdapterSQLX:
		return adapterType, nil
	default:
		return "", errors.Join(eventsim.ErrUnknownAdapterType, errors.New("got "+s))
	}
}

// Connect opens a single connection to the database behind dsn, retrying according to policy.
//
// The ClassifyError classifier is used unless the policy carries its own classifier.
// The returned EventStore owns the connection; the caller must Close it.
func Connect(
	ctx context.Context,
	dsn string,
	adapterType AdapterType,
	policy eventsim.RetryPolicy,
	options ...Option,
) (*EventStore, error) {

	es, err := newEventStore(nil, options...)
	if err != nil {
		return nil, err
	}

	var dial eventsim.DialFunc[adapters.DBAdapter]

	switch adapterType {
	case AdapterPGX:
		dial = dialPGX(dsn)
	case AdapterSQL:
		dial = dialSQL(dsn)
	case AdapterSQLX:
		dial = dialSQLX(dsn)
	default:
		return nil, errors.Join(eventsim.ErrUnknownAdapterType, errors.New("got "+string(adapterType)))
	}

	db, _, connectErr := eventsim.Connect(ctx, dial, policy.WithFallbackClassifier(ClassifyError), es.observer)
	if connectErr != nil {
		return nil, errors.Join(eventsim.ErrConnectFailed, connectErr)
	}

	es.db = db

	return es, nil
}

func dialPGX(dsn string) eventsim.DialFunc[adapters.DBAdapter] {
	return func(ctx context.Context) (adapters.DBAdapter, error) {
		cfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, err
		}

		cfg.MaxConns = 1
		if _, ok := cfg.ConnConfig.RuntimeParams[runtimeParamAppName]; !ok {
			cfg.ConnConfig.RuntimeParams[runtimeParamAppName] = applicationName
		}

		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}

		return adapters.NewPGXAdapter(pool), nil
	}
}

func dialSQL(dsn string) eventsim.DialFunc[adapters.DBAdapter] {
	return func(ctx context.Context) (adapters.DBAdapter, error) {
		// lib/pq only parses the DSN when connecting; parse it up front so a malformed DSN is classified as permanent.
		if _, err := pgconn.ParseConfig(dsn); err != nil {
			return nil, err
		}

		db, err := sql.Open(driverNamePostgres, dsn)
		if err != nil {
			return nil, err
		}

		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}

		return adapters.NewSQLAdapter(db), nil
	}
}

func dialSQLX(dsn string) eventsim.DialFunc[adapters.DBAdapter] {
	return func(ctx context.Context) (adapters.DBAdapter, error) {
		if _, err := pgconn.ParseConfig(dsn); err != nil {
			return nil, err
		}

		db, err := sqlx.ConnectContext(ctx, driverNamePostgres, dsn)
		if err != nil {
			return nil, err
		}

		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		return adapters.NewSQLXAdapter(db), nil
	}
}
