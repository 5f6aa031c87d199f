// Package sqliteengine provides a SQLite implementation of the eventsim.EventStore based on the
// pure Go modernc.org/sqlite driver. It lets the simulator run locally without a PostgreSQL server
// and backs the hermetic store tests.
package sqliteengine
