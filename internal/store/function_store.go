package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbusrun/fnrun/internal/domain"
)

// FunctionStore persists Function records. Name and route each carry a
// unique constraint, so a colliding INSERT surfaces as ErrDuplicateFunction
// rather than a raw constraint-violation error.
type FunctionStore struct {
	pool *pgxpool.Pool
}

// Save inserts fn. It never updates an existing row — registration is
// create-only; updates belong to a separate deploy path not in scope here.
func (s *FunctionStore) Save(ctx context.Context, fn *domain.Function) error {
	now := time.Now()
	if fn.CreatedAt.IsZero() {
		fn.CreatedAt = now
	}
	fn.UpdatedAt = now

	data, err := json.Marshal(fn)
	if err != nil {
		return fmt.Errorf("marshal function: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO functions (id, name, route, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, fn.ID, fn.Name, fn.Route, data, fn.CreatedAt, fn.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: name=%q route=%q", domain.ErrDuplicateFunction, fn.Name, fn.Route)
		}
		return fmt.Errorf("save function: %w", err)
	}
	return nil
}

// Get returns the function with the given id.
func (s *FunctionStore) Get(ctx context.Context, id string) (*domain.Function, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM functions WHERE id = $1`, id).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("function not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get function: %w", err)
	}
	var fn domain.Function
	if err := json.Unmarshal(data, &fn); err != nil {
		return nil, fmt.Errorf("unmarshal function: %w", err)
	}
	return &fn, nil
}

// GetByRoute resolves the function registered for an exact route, used by
// the HTTP layer's dynamic route dispatch.
func (s *FunctionStore) GetByRoute(ctx context.Context, route string) (*domain.Function, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM functions WHERE route = $1`, route).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("no function registered for route: %s", route)
	}
	if err != nil {
		return nil, fmt.Errorf("get function by route: %w", err)
	}
	var fn domain.Function
	if err := json.Unmarshal(data, &fn); err != nil {
		return nil, fmt.Errorf("unmarshal function: %w", err)
	}
	return &fn, nil
}

// List returns every registered function.
func (s *FunctionStore) List(ctx context.Context) ([]*domain.Function, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM functions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Function
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan function: %w", err)
		}
		var fn domain.Function
		if err := json.Unmarshal(data, &fn); err != nil {
			return nil, fmt.Errorf("unmarshal function: %w", err)
		}
		out = append(out, &fn)
	}
	return out, rows.Err()
}

// Delete removes the function row. The caller is responsible for removing
// its images from every backend first.
func (s *FunctionStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM functions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete function: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
