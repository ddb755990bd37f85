package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimbusrun/fnrun/internal/domain"
	"github.com/nimbusrun/fnrun/internal/metrics"
)

// MetricStore persists MetricRecords and serves the aggregated/raw reads
// the collector's GetAggregated/GetRaw delegate to. It implements
// metrics.Store.
type MetricStore struct {
	pool *pgxpool.Pool
}

// PersistMetrics writes a batch of records in a single transaction, as
// required by the flush contract: either all of a flush's records land or
// none do.
func (s *MetricStore) PersistMetrics(ctx context.Context, records []domain.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin metrics tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		_, err := tx.Exec(ctx, `
			INSERT INTO metric_records
				(execution_id, function_id, backend, timestamp, duration_ms, memory_used_mb, cpu_percent, warm_start, is_error, startup_time_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (execution_id) DO NOTHING
		`, r.ExecutionID, r.FunctionID, string(r.Backend), r.Timestamp, r.DurationMs, r.MemoryUsed, r.CPUPercent, r.WarmStart, r.Error, r.StartupTimeMs)
		if err != nil {
			return fmt.Errorf("insert metric record %s: %w", r.ExecutionID, err)
		}
	}
	return tx.Commit(ctx)
}

// GetAggregated groups by (function_id, backend) within filter.Range and
// computes avg/min/max duration, avg memory/CPU, warm/cold-start counts,
// total count, error count, and success rate.
func (s *MetricStore) GetAggregated(ctx context.Context, filter metrics.AggregationFilter) ([]metrics.AggregatedRow, error) {
	query := `
		SELECT
			function_id,
			backend,
			AVG(duration_ms),
			MIN(duration_ms),
			MAX(duration_ms),
			AVG(memory_used_mb),
			AVG(cpu_percent),
			COUNT(*) FILTER (WHERE warm_start),
			COUNT(*),
			COUNT(*) FILTER (WHERE is_error)
		FROM metric_records
		WHERE ($1 = '' OR function_id = $1)
		  AND ($2::timestamptz IS NULL OR timestamp >= $2)
		  AND ($3::timestamptz IS NULL OR timestamp <= $3)
		GROUP BY function_id, backend
	`
	start, end := nullableRange(filter.Range)
	rows, err := s.pool.Query(ctx, query, filter.FunctionID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get aggregated metrics: %w", err)
	}
	defer rows.Close()

	var out []metrics.AggregatedRow
	for rows.Next() {
		var row metrics.AggregatedRow
		var backend string
		if err := rows.Scan(
			&row.FunctionID, &backend, &row.AvgDurationMs, &row.MinDurationMs, &row.MaxDurationMs,
			&row.AvgMemoryMB, &row.AvgCPUPercent, &row.WarmStartCount, &row.TotalCount, &row.ErrorCount,
		); err != nil {
			return nil, fmt.Errorf("scan aggregated metric row: %w", err)
		}
		row.Backend = domain.BackendTag(backend)
		row.ColdStartCount = row.TotalCount - row.WarmStartCount
		if row.TotalCount > 0 {
			row.SuccessRate = float64(row.TotalCount-row.ErrorCount) / float64(row.TotalCount)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetRaw returns every MetricRecord for functionID within window, newest
// first.
func (s *MetricStore) GetRaw(ctx context.Context, functionID string, window metrics.TimeRange) ([]domain.MetricRecord, error) {
	start, end := nullableRange(window)
	rows, err := s.pool.Query(ctx, `
		SELECT execution_id, function_id, backend, timestamp, duration_ms, memory_used_mb, cpu_percent, warm_start, is_error, startup_time_ms
		FROM metric_records
		WHERE function_id = $1
		  AND ($2::timestamptz IS NULL OR timestamp >= $2)
		  AND ($3::timestamptz IS NULL OR timestamp <= $3)
		ORDER BY timestamp DESC
	`, functionID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get raw metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.MetricRecord
	for rows.Next() {
		var r domain.MetricRecord
		var backend string
		if err := rows.Scan(&r.ExecutionID, &r.FunctionID, &backend, &r.Timestamp, &r.DurationMs, &r.MemoryUsed, &r.CPUPercent, &r.WarmStart, &r.Error, &r.StartupTimeMs); err != nil {
			return nil, fmt.Errorf("scan raw metric row: %w", err)
		}
		r.Backend = domain.BackendTag(backend)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableRange(r metrics.TimeRange) (*time.Time, *time.Time) {
	var start, end *time.Time
	if !r.Start.IsZero() {
		start = &r.Start
	}
	if !r.End.IsZero() {
		end = &r.End
	}
	return start, end
}
