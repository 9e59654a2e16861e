// Package postgres stores the dataset listing in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new PostgreSQL connection pool
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS datasets (
		id                       TEXT PRIMARY KEY,
		position                 INTEGER NOT NULL,
		name                     TEXT NOT NULL DEFAULT '',
		description              TEXT NOT NULL DEFAULT '',
		embedding_model          TEXT NOT NULL DEFAULT '',
		embedding_model_provider TEXT NOT NULL DEFAULT '',
		retrieval_model          JSONB,
		top_k                    INTEGER NOT NULL DEFAULT 0,
		fetched_at               TIMESTAMPTZ NOT NULL
	)
`

// Migrate creates the tables used by this package if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create datasets table: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (db *DB) Close() {
	db.Pool.Close()
}
