package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nimbusrun/fnrun/internal/domain"
)

type fakeStore struct {
	mu         sync.Mutex
	persisted  []domain.MetricRecord
	persistErr error
}

func (f *fakeStore) PersistMetrics(ctx context.Context, records []domain.MetricRecord) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	f.mu.Lock()
	f.persisted = append(f.persisted, records...)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) GetAggregated(ctx context.Context, filter AggregationFilter) ([]AggregatedRow, error) {
	return nil, nil
}

func (f *fakeStore) GetRaw(ctx context.Context, functionID string, window TimeRange) ([]domain.MetricRecord, error) {
	return nil, nil
}

func record(functionID string, isError bool) domain.MetricRecord {
	return domain.MetricRecord{FunctionID: functionID, ExecutionID: "e1", Timestamp: time.Now(), Backend: domain.BackendStandard, DurationMs: 10, Error: isError}
}

func TestFlushPersistsAndEmptiesBuffer(t *testing.T) {
	store := &fakeStore{}
	c := NewCollector(store, nil, time.Hour)

	c.Collect(record("f1", false))
	c.Collect(record("f1", true))

	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	store.mu.Lock()
	n := len(store.persisted)
	store.mu.Unlock()
	if n != 2 {
		t.Fatalf("persisted = %d, want 2", n)
	}

	c.mu.Lock()
	bufLen := len(c.buffer)
	c.mu.Unlock()
	if bufLen != 0 {
		t.Fatalf("buffer should be empty after flush, has %d", bufLen)
	}
}

func TestFlushDropsRecordsOnPersistFailure(t *testing.T) {
	store := &fakeStore{persistErr: context.DeadlineExceeded}
	c := NewCollector(store, nil, time.Hour)
	c.Collect(record("f1", false))

	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush should swallow persist errors, got %v", err)
	}

	c.mu.Lock()
	bufLen := len(c.buffer)
	c.mu.Unlock()
	if bufLen != 0 {
		t.Fatalf("buffer should be dropped even on persist failure, has %d", bufLen)
	}
}

func TestCollectorIsNotAGlobalSingleton(t *testing.T) {
	a := NewCollector(&fakeStore{}, nil, time.Hour)
	b := NewCollector(&fakeStore{}, nil, time.Hour)
	a.Collect(record("f1", false))
	if len(b.buffer) != 0 {
		t.Fatalf("two Collector instances must not share state")
	}
}

func TestStartStopFlushesOnShutdown(t *testing.T) {
	store := &fakeStore{}
	c := NewCollector(store, nil, time.Hour)
	c.Collect(record("f1", false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	c.Stop(context.Background())

	store.mu.Lock()
	n := len(store.persisted)
	store.mu.Unlock()
	if n != 1 {
		t.Fatalf("Stop should flush pending records, persisted = %d", n)
	}
}
