package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nimbusrun/fnrun/internal/domain"
)

// Standard runs invocations under the host's default OCI runtime. Its
// Prewarm builds a function's image ahead of time, so a later invocation
// through the same pool finds the image already cached; nothing calls
// Prewarm automatically (the CLI runs it only for register --prewarm).
type Standard struct {
	base
	prewarmCount int
}

// NewStandard constructs the standard backend's executor. prewarmCount is
// how many Acquire/Release round-trips Prewarm performs; it only affects how
// eagerly the image gets built, since the pool itself has nothing stateful
// to warm per container (see internal/pool).
func NewStandard(pool Pool, driver ContainerDriver, prewarmCount int) *Standard {
	if prewarmCount <= 0 {
		prewarmCount = 1
	}
	return &Standard{
		base:         base{pool: pool, driver: driver, backend: domain.BackendStandard},
		prewarmCount: prewarmCount,
	}
}

func (s *Standard) Execute(ctx context.Context, fn *domain.Function, executionID string, event []byte) (json.RawMessage, *domain.MetricRecord, error) {
	result, metric, _, err := s.execute(ctx, fn, executionID, event)
	return result, metric, err
}

// Prewarm forces the function's image to build ahead of the first
// invocation, amortizing the standard backend's cold start.
func (s *Standard) Prewarm(ctx context.Context, fn *domain.Function) error {
	for i := 0; i < s.prewarmCount; i++ {
		pc, err := s.pool.Acquire(ctx, fn, domain.BackendStandard)
		if err != nil {
			return fmt.Errorf("prewarm %s: %w", fn.ID, err)
		}
		s.pool.Release(pc)
	}
	return nil
}
