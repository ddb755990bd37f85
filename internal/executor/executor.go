// Package executor implements the per-backend invocation pipeline (C3): the
// single place that turns a Function plus an event payload into a result by
// acquiring a container, running the wrapper inside it, and classifying the
// outcome into the spec's error taxonomy.
//
// # Pipeline
//
// Execute performs, in order:
//
//  1. Acquire a container slot from the pool, which builds the image on the
//     first call for this function+backend. Concurrent first callers wait
//     for that one shared build rather than each building the image, and
//     any caller blocks while every slot is taken (see internal/pool).
//  2. Run the container with the event bound into INPUT_DATA and a deadline
//     equal to the function's timeout.
//  3. Classify the outcome: timeout, OOM, wrapper failure, handler error, or
//     success, each surfaced as a distinct sentinel from internal/domain.
//  4. Release the pool slot unconditionally — the container itself was
//     already destroyed by the driver before RunOnce returned.
//
// Two backends share this pipeline (see standard.go and sandbox.go); they
// differ only in the OCI runtime their driver selects and in whether they
// pre-warm.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nimbusrun/fnrun/internal/domain"
	"github.com/nimbusrun/fnrun/internal/observability"
)

// Pool is the subset of internal/pool.Pool the executor depends on.
type Pool interface {
	Acquire(ctx context.Context, fn *domain.Function, backend domain.BackendTag) (*domain.PooledContainer, error)
	Release(pc *domain.PooledContainer)
}

// ContainerDriver is the subset of internal/backend.Driver the executor
// depends on.
type ContainerDriver interface {
	RunOnce(ctx context.Context, tag string, memoryMB int, event []byte, envVars map[string]string, timeout time.Duration) ([]byte, error)
}

// Executor runs invocations for exactly one backend.
type Executor interface {
	Backend() domain.BackendTag
	// Execute runs fn against event and returns the handler's result on
	// success. err is always one of the domain.Err* sentinels (wrapped with
	// context), never a bare error, so callers can classify it with
	// errors.Is. metric is populated even when err != nil.
	Execute(ctx context.Context, fn *domain.Function, executionID string, event []byte) (result json.RawMessage, metric *domain.MetricRecord, err error)
	// Prewarm builds fn's image and, for backends that pre-warm, primes the
	// pool so the first real invocation finds a warm image.
	Prewarm(ctx context.Context, fn *domain.Function) error
}

type base struct {
	pool    Pool
	driver  ContainerDriver
	backend domain.BackendTag
}

func (b *base) Backend() domain.BackendTag { return b.backend }

// execute runs the shared pipeline and additionally returns the observed
// wall-clock duration, which the sandbox backend needs to derive
// startup_time_ms (the standard backend ignores it).
func (b *base) execute(ctx context.Context, fn *domain.Function, executionID string, event []byte) (json.RawMessage, *domain.MetricRecord, time.Duration, error) {
	ctx, span := observability.StartSpan(ctx, "executor.execute",
		observability.AttrFunctionID.String(fn.ID),
		observability.AttrBackend.String(string(b.backend)),
	)
	defer span.End()

	pc, err := b.pool.Acquire(ctx, fn, b.backend)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, errorMetric(fn.ID, executionID, b.backend, 0, false), 0, fmt.Errorf("%w: acquire container: %v", domain.ErrInfrastructureError, err)
	}
	defer b.pool.Release(pc)

	span.SetAttributes(observability.AttrWarmStart.Bool(pc.WarmStart))

	start := time.Now()
	stdout, runErr := b.driver.RunOnce(ctx, pc.ImageTag, fn.MemoryMB, event, fn.EnvVars, fn.Timeout())
	wall := time.Since(start)

	if runErr != nil {
		observability.SetSpanError(span, runErr)
		return nil, errorMetric(fn.ID, executionID, b.backend, wall.Milliseconds(), pc.WarmStart), wall, runErr
	}

	env, perr := domain.ParseEnvelope(stdout)
	if perr != nil {
		observability.SetSpanError(span, perr)
		return nil, errorMetric(fn.ID, executionID, b.backend, wall.Milliseconds(), pc.WarmStart), wall, fmt.Errorf("%w: %v", domain.ErrWrapperError, perr)
	}

	metric := &domain.MetricRecord{
		FunctionID:  fn.ID,
		ExecutionID: executionID,
		Timestamp:   time.Now(),
		Backend:     b.backend,
		DurationMs:  int64(env.Metrics.DurationMs),
		MemoryUsed:  env.Metrics.MemoryUsedMB,
		CPUPercent:  env.Metrics.CPUPercent,
		WarmStart:   pc.WarmStart,
	}

	if env.Status == domain.EnvelopeError {
		metric.Error = true
		errMsg := "handler error"
		if env.Error != nil {
			errMsg = *env.Error
		}
		observability.SetSpanError(span, fmt.Errorf("%s", errMsg))
		return nil, metric, wall, fmt.Errorf("%w: %s", domain.ErrHandlerError, errMsg)
	}

	observability.SetSpanOK(span)
	return env.Result, metric, wall, nil
}

func errorMetric(functionID, executionID string, backend domain.BackendTag, durationMs int64, warmStart bool) *domain.MetricRecord {
	return &domain.MetricRecord{
		FunctionID:  functionID,
		ExecutionID: executionID,
		Timestamp:   time.Now(),
		Backend:     backend,
		DurationMs:  durationMs,
		WarmStart:   warmStart,
		Error:       true,
	}
}
