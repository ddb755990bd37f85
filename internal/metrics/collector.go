// Package metrics implements the metrics collector (C5): an in-memory
// append buffer that is swapped and flushed to a durable store on a timer.
//
// Unlike the reference implementation's process-wide singleton, Collector
// here is an explicit value: the composition root constructs one, starts
// its flusher, and passes the same instance to every component that needs
// to record or query metrics. There is no package-level global.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/nimbusrun/fnrun/internal/domain"
	"github.com/nimbusrun/fnrun/internal/logging"
)

const DefaultFlushInterval = 10 * time.Second

// Store is the durable side of the metrics pipeline. internal/store
// implements it against Postgres.
type Store interface {
	PersistMetrics(ctx context.Context, records []domain.MetricRecord) error
	GetAggregated(ctx context.Context, filter AggregationFilter) ([]AggregatedRow, error)
	GetRaw(ctx context.Context, functionID string, filter TimeRange) ([]domain.MetricRecord, error)
}

// AggregationFilter narrows GetAggregated to a function and/or time window;
// zero values mean "no filter".
type AggregationFilter struct {
	FunctionID string
	Range      TimeRange
}

// TimeRange bounds a query; a zero Start or End means unbounded on that side.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// AggregatedRow is one (function_id, backend) group from GetAggregated.
type AggregatedRow struct {
	FunctionID     string
	Backend        domain.BackendTag
	AvgDurationMs  float64
	MinDurationMs  int64
	MaxDurationMs  int64
	AvgMemoryMB    float64
	AvgCPUPercent  float64
	WarmStartCount int64
	ColdStartCount int64
	TotalCount     int64
	ErrorCount     int64
	SuccessRate    float64
}

// Collector buffers MetricRecords under a lock and periodically flushes
// them to Store. Collect never performs I/O; Flush does the swap-then-write
// so the lock is held only for the swap.
type Collector struct {
	mu     sync.Mutex
	buffer []domain.MetricRecord

	store         Store
	prom          *PrometheusMetrics
	flushInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector creates a Collector. prom may be nil to skip Prometheus
// export. Call Start to begin the background flusher.
func NewCollector(store Store, prom *PrometheusMetrics, flushInterval time.Duration) *Collector {
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	return &Collector{store: store, prom: prom, flushInterval: flushInterval}
}

// Start launches the background flush loop. Stop must be called on
// shutdown to flush one last time and stop the loop.
func (c *Collector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.flushLoop(ctx)
}

// Stop halts the flush loop and performs one final flush.
func (c *Collector) Stop(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if err := c.Flush(ctx); err != nil {
		logging.Op().Warn("final metrics flush failed", "error", err)
	}
}

// Collect appends rec to the in-memory buffer and updates the Prometheus
// gauges/counters, if configured. It never blocks on I/O.
func (c *Collector) Collect(rec domain.MetricRecord) {
	c.mu.Lock()
	c.buffer = append(c.buffer, rec)
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.observe(rec)
	}
}

// Flush atomically swaps the buffer for an empty one, then persists the
// swapped records outside the lock. Persistence failures are logged and
// the records are dropped — metrics are best-effort telemetry, not ground
// truth.
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	pending := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := c.store.PersistMetrics(ctx, pending); err != nil {
		logging.Op().Warn("metrics flush dropped records", "count", len(pending), "error", err)
		return nil
	}
	return nil
}

// GetAggregated delegates to the durable store.
func (c *Collector) GetAggregated(ctx context.Context, filter AggregationFilter) ([]AggregatedRow, error) {
	return c.store.GetAggregated(ctx, filter)
}

// GetRaw delegates to the durable store.
func (c *Collector) GetRaw(ctx context.Context, functionID string, window TimeRange) ([]domain.MetricRecord, error) {
	return c.store.GetRaw(ctx, functionID, window)
}

func (c *Collector) flushLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Flush(ctx); err != nil {
				logging.Op().Warn("periodic metrics flush error", "error", err)
			}
		}
	}
}
