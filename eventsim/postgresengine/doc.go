// Package postgresengine provides a PostgreSQL implementation of the eventsim.EventStore.
//
// The store supports three database connection types through adapters:
//   - pgx/v5 connection pools (pgxpool.Pool)
//   - Standard library database/sql with lib/pq (sql.DB)
//   - sqlx database connections (sqlx.DB)
//
// Connect opens exactly one connection for the chosen adapter, retrying according to an
// eventsim.RetryPolicy, and classifies driver errors into transient and permanent failures.
//
// Example:
//
//	store, err := postgresengine.Connect(ctx, dsn, postgresengine.AdapterPGX, eventsim.DefaultRetryPolicy(),
//		postgresengine.WithLogger(slog.Default()),
//	)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	if err := store.EnsureSchema(ctx); err != nil {
//		return err
//	}
package postgresengine
