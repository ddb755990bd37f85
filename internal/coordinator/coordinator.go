// Package coordinator implements the invocation coordinator (C6): the
// single entry point the HTTP layer calls to run a function. It owns the
// Execution row's lifecycle, resolves the right executor via the registry,
// and forwards the resulting metric to the collector — the three things no
// other component is positioned to do, since only the coordinator sees
// both ends of one invocation.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusrun/fnrun/internal/domain"
	"github.com/nimbusrun/fnrun/internal/logging"
	"github.com/nimbusrun/fnrun/internal/observability"
)

// Registry is the subset of internal/registry.Registry the coordinator
// depends on.
type Registry interface {
	Get(tag domain.BackendTag) (Executor, error)
}

// Executor is the subset of internal/executor.Executor the coordinator
// depends on.
type Executor interface {
	Execute(ctx context.Context, fn *domain.Function, executionID string, event []byte) (json.RawMessage, *domain.MetricRecord, error)
}

// Collector is the subset of internal/metrics.Collector the coordinator
// depends on.
type Collector interface {
	Collect(rec domain.MetricRecord)
}

// Admission is the subset of internal/admission.Limiter the coordinator
// depends on for the optional backpressure extension (spec.md §6/§9).
// Left nil, Invoke never gates on admission at all.
type Admission interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Coordinator ties together the registry, the in-memory execution store,
// and the metrics collector for every invocation.
type Coordinator struct {
	registry   Registry
	collector  Collector
	executions *ExecutionStore
	admission  Admission
}

// New creates a Coordinator. Admission control is off; call WithAdmission
// to enable it.
func New(reg Registry, collector Collector, executions *ExecutionStore) *Coordinator {
	return &Coordinator{registry: reg, collector: collector, executions: executions}
}

// WithAdmission enables the optional admission-control gate: every Invoke
// call checks it with the function ID as the bucket key before creating an
// Execution row or touching the pool, and fails closed with
// ErrAdmissionRejected when denied. Returns c for chaining at the
// composition root.
func (c *Coordinator) WithAdmission(a Admission) *Coordinator {
	c.admission = a
	return c
}

// Result is what Invoke returns to the HTTP layer on success.
type Result struct {
	ExecutionID string
	Result      json.RawMessage
	DurationMs  int64
}

// Invoke runs fn on backend with event and returns its result. Once an
// invocation passes the optional admission check, whatever path it takes,
// the Execution row it creates is always closed to a terminal status before
// Invoke returns, and a MetricRecord with the correct error bit is always
// forwarded to the collector. A rejected invocation creates no row and
// forwards no metric.
func (c *Coordinator) Invoke(ctx context.Context, fn *domain.Function, backend domain.BackendTag, event []byte) (*Result, error) {
	if c.admission != nil {
		allowed, err := c.admission.Allow(ctx, fn.ID)
		if err != nil {
			return nil, fmt.Errorf("admission check: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: function %s", domain.ErrAdmissionRejected, fn.ID)
		}
	}

	executionID := uuid.New().String()
	exec := domain.NewExecution(executionID, fn.ID, backend)
	c.executions.Save(exec)

	ctx, span := observability.StartSpan(ctx, "coordinator.invoke",
		observability.AttrFunctionID.String(fn.ID),
		observability.AttrBackend.String(string(backend)),
	)
	defer span.End()

	ex, err := c.registry.Get(backend)
	if err != nil {
		dur := time.Since(exec.StartTime)
		c.finish(exec, domain.StatusError, dur, err.Error(), 0, 0)
		c.collector.Collect(domain.MetricRecord{
			FunctionID: fn.ID, ExecutionID: executionID, Timestamp: time.Now(),
			Backend: backend, Error: true,
		})
		observability.SetSpanError(span, err)
		logging.Default().Log(&logging.RequestLog{
			ExecutionID: executionID, FunctionID: fn.ID, Function: fn.Name,
			Backend: string(backend), DurationMs: dur.Milliseconds(), Success: false, Error: err.Error(),
		})
		return nil, err
	}

	start := time.Now()
	result, metric, execErr := ex.Execute(ctx, fn, executionID, event)
	wall := time.Since(start)

	if metric == nil {
		metric = &domain.MetricRecord{FunctionID: fn.ID, ExecutionID: executionID, Timestamp: time.Now(), Backend: backend, Error: execErr != nil}
	}
	c.collector.Collect(*metric)

	status := domain.StatusSuccess
	errMsg := ""
	switch {
	case execErr == nil:
		status = domain.StatusSuccess
	case errors.Is(execErr, domain.ErrTimeout):
		status = domain.StatusTimeout
		errMsg = execErr.Error()
	default:
		status = domain.StatusError
		errMsg = execErr.Error()
	}

	if err := c.finish(exec, status, wall, errMsg, metric.MemoryUsed, metric.CPUPercent); err != nil {
		observability.SetSpanError(span, err)
		return nil, fmt.Errorf("close execution %s: %w", executionID, err)
	}

	logging.Default().Log(&logging.RequestLog{
		ExecutionID: executionID, FunctionID: fn.ID, Function: fn.Name,
		Backend: string(backend), DurationMs: exec.DurationMs, WarmStart: metric.WarmStart,
		Success: execErr == nil, Error: errMsg,
	})

	if execErr != nil {
		observability.SetSpanError(span, execErr)
		return nil, execErr
	}

	observability.SetSpanOK(span)
	return &Result{ExecutionID: executionID, Result: result, DurationMs: exec.DurationMs}, nil
}

// GetExecution returns a previously created Execution row.
func (c *Coordinator) GetExecution(id string) (*domain.Execution, error) {
	return c.executions.Get(id)
}

func (c *Coordinator) finish(exec *domain.Execution, status domain.ExecutionStatus, dur time.Duration, errMsg string, memMB, cpuPct float64) error {
	err := exec.Finish(status, dur, errMsg, memMB, cpuPct)
	c.executions.Save(exec)
	return err
}
