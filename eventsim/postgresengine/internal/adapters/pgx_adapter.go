package adapters

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXAdapter implements DBAdapter for pgxpool.Pool.
type PGXAdapter struct {
	pool *pgxpool.Pool
}

// NewPGXAdapter creates a new PGX adapter.
func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{pool: pool}
}

// Exec executes a statement using the pgx pool.
func (p *PGXAdapter) Exec(ctx context.Context, query string) error {
	_, err := p.pool.Exec(ctx, query)
	return err
}

// QueryRow executes a query that is expected to return at most one row.
func (p *PGXAdapter) QueryRow(ctx context.Context, query string) DBRow {
	return p.pool.QueryRow(ctx, query)
}

// Ping checks that the pool can reach the database.
func (p *PGXAdapter) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes all pool connections.
func (p *PGXAdapter) Close() error {
	p.pool.Close()
	return nil
}
