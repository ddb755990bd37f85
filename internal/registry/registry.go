// Package registry implements the executor registry (C4): a mapping from
// backend tag to executor instance, built once at process start. It is the
// only component that enumerates backends — adding a new isolation
// technology means adding a C3 implementation and one Register call here,
// nowhere else.
package registry

import (
	"fmt"
	"sync"

	"github.com/nimbusrun/fnrun/internal/domain"
	"github.com/nimbusrun/fnrun/internal/executor"
)

// Registry routes a backend tag to its executor. It holds no per-function
// state of its own — that lives inside each executor's pool — so Registry
// is safe to share across every invocation without becoming a bottleneck.
type Registry struct {
	mu        sync.RWMutex
	executors map[domain.BackendTag]executor.Executor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{executors: make(map[domain.BackendTag]executor.Executor)}
}

// Register binds tag to ex. Registering the same tag twice replaces the
// prior binding; composition roots are expected to call this once per
// backend at startup.
func (r *Registry) Register(tag domain.BackendTag, ex executor.Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[tag] = ex
}

// Get resolves tag to its executor, or fails with ErrUnknownBackend.
func (r *Registry) Get(tag domain.BackendTag) (executor.Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, tag)
	}
	return ex, nil
}

// Backends lists the currently registered backend tags.
func (r *Registry) Backends() []domain.BackendTag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]domain.BackendTag, 0, len(r.executors))
	for tag := range r.executors {
		tags = append(tags, tag)
	}
	return tags
}
