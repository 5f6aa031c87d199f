// Package eventsim provides the core of the CDC event simulator: the synthetic Event record,
// the random Generator that produces it, the retrying Connect helper, and the Simulator loop
// that keeps inserting generated events into an EventStore at a fixed interval.
//
// The simulator exists to give change-data-capture pipelines (e.g. Debezium) a continuous
// stream of row inserts to observe. Concrete EventStore implementations live in the engine
// packages:
//   - postgresengine: PostgreSQL via pgx.Pool, sql.DB (lib/pq) or sqlx.DB
//   - sqliteengine: SQLite via modernc.org/sqlite, for local runs without a Postgres server
//
// Observability is dependency-free on this level. Logger, ContextualLogger, MetricsCollector
// and TracingCollector are small interfaces; *slog.Logger satisfies both logger interfaces,
// and the oteladapters and promadapters packages provide OpenTelemetry and Prometheus
// implementations of the others.
//
// Common usage pattern:
//
//	store, err := postgresengine.Connect(ctx, dsn, policy, postgresengine.WithLogger(logger))
//	if err != nil {
//		// handle error
//	}
//	defer store.Close()
//
//	if err = store.EnsureSchema(ctx); err != nil {
//		// handle error
//	}
//
//	simulator, err := eventsim.NewSimulator(store, eventsim.WithInterval(500*time.Millisecond))
//	if err != nil {
//		// handle error
//	}
//
//	err = simulator.Run(ctx) // blocks until ctx is canceled or a fatal error occurs
package eventsim
