package executor

import (
	"context"
	"encoding/json"

	"github.com/nimbusrun/fnrun/internal/domain"
)

// Sandbox runs invocations under the user-space-kernel runtime (its driver
// sets HostConfig.Runtime to that runtime's name). It never pre-warms —
// every invocation is a cold start by design — and it additionally reports
// the part of wall time spent outside the handler, in milliseconds, as
// startup_time_ms.
type Sandbox struct {
	base
}

// NewSandbox constructs the sandbox backend's executor.
func NewSandbox(pool Pool, driver ContainerDriver) *Sandbox {
	return &Sandbox{base: base{pool: pool, driver: driver, backend: domain.BackendSandbox}}
}

func (s *Sandbox) Execute(ctx context.Context, fn *domain.Function, executionID string, event []byte) (json.RawMessage, *domain.MetricRecord, error) {
	result, metric, wall, err := s.execute(ctx, fn, executionID, event)
	if metric != nil {
		startup := wall.Milliseconds() - metric.DurationMs
		if startup < 0 {
			startup = 0
		}
		metric.StartupTimeMs = startup
	}
	return result, metric, err
}

// Prewarm is a no-op: the sandbox backend never pre-warms, so every
// invocation observes the true cold-start cost of its runtime.
func (s *Sandbox) Prewarm(ctx context.Context, fn *domain.Function) error {
	return nil
}
