package adapters

import "context"

// DBAdapter defines the interface for database operations needed by the event store.
type DBAdapter interface {
	Exec(ctx context.Context, query string) error
	QueryRow(ctx context.Context, query string) DBRow
	Ping(ctx context.Context) error
	Close() error
}

// DBRow defines the interface for a single result row.
type DBRow interface {
	Scan(dest ...any) error
}
