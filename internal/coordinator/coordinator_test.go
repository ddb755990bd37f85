package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/nimbusrun/fnrun/internal/domain"
)

type fakeExecutor struct {
	result json.RawMessage
	metric *domain.MetricRecord
	err    error
}

func (f *fakeExecutor) Execute(ctx context.Context, fn *domain.Function, executionID string, event []byte) (json.RawMessage, *domain.MetricRecord, error) {
	m := f.metric
	if m != nil {
		m.ExecutionID = executionID
	}
	return f.result, m, f.err
}

type fakeRegistry struct {
	executors map[domain.BackendTag]Executor
}

func (r *fakeRegistry) Get(tag domain.BackendTag) (Executor, error) {
	ex, ok := r.executors[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, tag)
	}
	return ex, nil
}

type fakeCollector struct {
	collected []domain.MetricRecord
}

func (c *fakeCollector) Collect(rec domain.MetricRecord) { c.collected = append(c.collected, rec) }

func testFn() *domain.Function {
	return &domain.Function{ID: "f1", Name: "hello", Route: "/hello", Language: domain.LanguagePython, Code: "x", MemoryMB: 128, TimeoutS: 10}
}

func TestInvokeSuccessClosesExecutionAndForwardsMetric(t *testing.T) {
	ex := &fakeExecutor{result: json.RawMessage(`{"msg":"hi"}`), metric: &domain.MetricRecord{FunctionID: "f1", Backend: domain.BackendStandard}}
	reg := &fakeRegistry{executors: map[domain.BackendTag]Executor{domain.BackendStandard: ex}}
	collector := &fakeCollector{}
	c := New(reg, collector, NewExecutionStore())

	res, err := c.Invoke(context.Background(), testFn(), domain.BackendStandard, []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(res.Result) != `{"msg":"hi"}` {
		t.Fatalf("result = %s", res.Result)
	}

	exec, err := c.GetExecution(res.ExecutionID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if exec.Status != domain.StatusSuccess {
		t.Fatalf("status = %s, want success", exec.Status)
	}
	if len(collector.collected) != 1 {
		t.Fatalf("collected %d metrics, want 1", len(collector.collected))
	}
}

func TestInvokeTimeoutSetsStatusTimeout(t *testing.T) {
	ex := &fakeExecutor{err: domain.ErrTimeout, metric: &domain.MetricRecord{FunctionID: "f1", Backend: domain.BackendStandard, Error: true}}
	reg := &fakeRegistry{executors: map[domain.BackendTag]Executor{domain.BackendStandard: ex}}
	c := New(reg, &fakeCollector{}, NewExecutionStore())

	_, err := c.Invoke(context.Background(), testFn(), domain.BackendStandard, []byte(`{}`))
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if len(c.executions.executions) != 1 {
		t.Fatalf("executions = %d, want 1", len(c.executions.executions))
	}
	for _, exec := range c.executions.executions {
		if exec.Status != domain.StatusTimeout {
			t.Fatalf("status = %s, want timeout", exec.Status)
		}
	}
}

func TestInvokeUnknownBackendClosesExecutionAsError(t *testing.T) {
	reg := &fakeRegistry{executors: map[domain.BackendTag]Executor{}}
	c := New(reg, &fakeCollector{}, NewExecutionStore())

	_, err := c.Invoke(context.Background(), testFn(), domain.BackendTag("nope"), []byte(`{}`))
	if !errors.Is(err, domain.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
	if len(c.executions.executions) != 1 {
		t.Fatalf("executions = %d, want 1", len(c.executions.executions))
	}
	for _, exec := range c.executions.executions {
		if exec.Status != domain.StatusError {
			t.Fatalf("status = %s, want error", exec.Status)
		}
	}
}

type fakeAdmission struct{ allow bool }

func (a *fakeAdmission) Allow(ctx context.Context, key string) (bool, error) { return a.allow, nil }

func TestInvokeRejectedByAdmissionNeverTouchesExecutor(t *testing.T) {
	ex := &fakeExecutor{result: json.RawMessage(`{}`), metric: &domain.MetricRecord{}}
	reg := &fakeRegistry{executors: map[domain.BackendTag]Executor{domain.BackendStandard: ex}}
	collector := &fakeCollector{}
	c := New(reg, collector, NewExecutionStore()).WithAdmission(&fakeAdmission{allow: false})

	_, err := c.Invoke(context.Background(), testFn(), domain.BackendStandard, []byte(`{}`))
	if !errors.Is(err, domain.ErrAdmissionRejected) {
		t.Fatalf("expected ErrAdmissionRejected, got %v", err)
	}
	if len(collector.collected) != 0 {
		t.Fatalf("admission-rejected invocation should not forward a metric, got %d", len(collector.collected))
	}
}

func TestInvokeAllowedByAdmissionProceedsNormally(t *testing.T) {
	ex := &fakeExecutor{result: json.RawMessage(`{"ok":true}`), metric: &domain.MetricRecord{FunctionID: "f1", Backend: domain.BackendStandard}}
	reg := &fakeRegistry{executors: map[domain.BackendTag]Executor{domain.BackendStandard: ex}}
	c := New(reg, &fakeCollector{}, NewExecutionStore()).WithAdmission(&fakeAdmission{allow: true})

	res, err := c.Invoke(context.Background(), testFn(), domain.BackendStandard, []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(res.Result) != `{"ok":true}` {
		t.Fatalf("result = %s", res.Result)
	}
}

func TestInvokeHandlerErrorSetsStatusError(t *testing.T) {
	ex := &fakeExecutor{err: fmt.Errorf("%w: boom", domain.ErrHandlerError), metric: &domain.MetricRecord{FunctionID: "f1", Backend: domain.BackendStandard, Error: true}}
	reg := &fakeRegistry{executors: map[domain.BackendTag]Executor{domain.BackendStandard: ex}}
	c := New(reg, &fakeCollector{}, NewExecutionStore())

	_, err := c.Invoke(context.Background(), testFn(), domain.BackendStandard, []byte(`{}`))
	if !errors.Is(err, domain.ErrHandlerError) {
		t.Fatalf("expected ErrHandlerError, got %v", err)
	}
	if len(c.executions.executions) != 1 {
		t.Fatalf("executions = %d, want 1", len(c.executions.executions))
	}
	for _, exec := range c.executions.executions {
		if exec.Status != domain.StatusError {
			t.Fatalf("status = %s, want error", exec.Status)
		}
	}
}
