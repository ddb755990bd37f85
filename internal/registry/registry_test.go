package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nimbusrun/fnrun/internal/domain"
)

type fakeExecutor struct {
	tag domain.BackendTag
}

func (f *fakeExecutor) Backend() domain.BackendTag { return f.tag }
func (f *fakeExecutor) Execute(ctx context.Context, fn *domain.Function, executionID string, event []byte) (json.RawMessage, *domain.MetricRecord, error) {
	return nil, nil, nil
}
func (f *fakeExecutor) Prewarm(ctx context.Context, fn *domain.Function) error { return nil }

func TestGetReturnsRegisteredExecutor(t *testing.T) {
	r := New()
	std := &fakeExecutor{tag: domain.BackendStandard}
	r.Register(domain.BackendStandard, std)

	got, err := r.Get(domain.BackendStandard)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != std {
		t.Fatalf("Get returned a different executor than registered")
	}
}

func TestGetUnknownBackendFails(t *testing.T) {
	r := New()
	_, err := r.Get(domain.BackendTag("unknown"))
	if !errors.Is(err, domain.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestBackendsListsAllRegistered(t *testing.T) {
	r := New()
	r.Register(domain.BackendStandard, &fakeExecutor{tag: domain.BackendStandard})
	r.Register(domain.BackendSandbox, &fakeExecutor{tag: domain.BackendSandbox})

	tags := r.Backends()
	if len(tags) != 2 {
		t.Fatalf("Backends() = %v, want 2 entries", tags)
	}
}
