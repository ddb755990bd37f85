// Package store is the durable half of the execution subsystem: a function
// table (registration-time records) and a metric table (the record produced
// by every invocation), both held in Postgres behind two separable store
// types sharing one connection pool — they are logically independent even
// though they share a process, which is what lets either be moved behind
// its own database later without touching the other's callers.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps a pgxpool.Pool and owns schema creation. FunctionStore and
// MetricStore are thin views over the same Pool.
type Pool struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies it with a ping, and ensures the schema
// this package depends on exists.
func Open(ctx context.Context, dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	pgPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	p := &Pool{pool: pgPool}
	if err := p.pool.Ping(ctx); err != nil {
		pgPool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := p.ensureSchema(ctx); err != nil {
		pgPool.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the underlying connection pool.
func (p *Pool) Close() {
	p.pool.Close()
}

// FunctionStore returns a view of p scoped to function records.
func (p *Pool) FunctionStore() *FunctionStore {
	return &FunctionStore{pool: p.pool}
}

// MetricStore returns a view of p scoped to metric records.
func (p *Pool) MetricStore() *MetricStore {
	return &MetricStore{pool: p.pool}
}

func (p *Pool) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS functions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			route TEXT NOT NULL UNIQUE,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS metric_records (
			execution_id TEXT PRIMARY KEY,
			function_id TEXT NOT NULL,
			backend TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL,
			memory_used_mb DOUBLE PRECISION NOT NULL DEFAULT 0,
			cpu_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			warm_start BOOLEAN NOT NULL DEFAULT FALSE,
			is_error BOOLEAN NOT NULL DEFAULT FALSE,
			startup_time_ms BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metric_records_function_time ON metric_records(function_id, timestamp DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
