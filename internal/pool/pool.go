// Package pool implements the container pool (C2): a per-(function,
// backend) concurrency limiter and image-readiness cache.
//
// # Single-shot containers
//
// Every invocation runs in its own container, created with its event
// already bound into INPUT_DATA and removed once it exits (see
// internal/backend). A container is therefore never reused across
// invocations, so there is nothing to "check back in" to a pool the way a
// long-lived process would be. What the pool amortises instead is the
// image build: the first Acquire for a (function, backend) pair builds
// the image; every later Acquire reuses the cached tag. "Warm" means the
// image is already built and ready to run from; "cold" means this call
// had to build it.
//
// # Concurrency model
//
// Each bucket holds a buffered channel used as a counting semaphore sized
// to MaxSize, bounding how many containers may run concurrently for one
// (function, backend) pair. A singleflight.Group deduplicates concurrent
// cold-start image builds so N simultaneous first-callers share one
// builder.Prepare call instead of racing to build the same image N times.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nimbusrun/fnrun/internal/domain"
	"github.com/nimbusrun/fnrun/internal/logging"
)

const (
	DefaultMaxSize          = 5
	DefaultIdleTimeout      = 300 * time.Second
	DefaultEvictionInterval = 60 * time.Second
)

// Builder is the subset of internal/builder.Builder the pool depends on.
// Declaring it here, rather than depending on the concrete type, keeps
// the pool testable without a Docker daemon.
type Builder interface {
	Prepare(ctx context.Context, fn *domain.Function, backend domain.BackendTag) (*domain.PreparedImage, error)
	Remove(ctx context.Context, tag string) error
}

type bucket struct {
	mu       sync.Mutex
	sem      chan struct{}
	imageTag string
	built    bool
	lastUsed time.Time
}

// Pool is the central resource manager for per-function image readiness
// and concurrency admission. Safe for concurrent use.
type Pool struct {
	builder          Builder
	maxSize          int
	idleTimeout      time.Duration
	evictionInterval time.Duration

	mu      sync.RWMutex
	buckets map[string]*bucket
	group   singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds the pool's tunables; zero values fall back to the package
// defaults.
type Config struct {
	MaxSize          int
	IdleTimeout      time.Duration
	EvictionInterval time.Duration
}

// New creates a Pool and starts its background eviction loop. Call Drain
// to stop it; Drain does not remove cached images.
func New(b Builder, cfg Config) *Pool {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.EvictionInterval <= 0 {
		cfg.EvictionInterval = DefaultEvictionInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		builder:          b,
		maxSize:          cfg.MaxSize,
		idleTimeout:      cfg.IdleTimeout,
		evictionInterval: cfg.EvictionInterval,
		buckets:          make(map[string]*bucket),
		ctx:              ctx,
		cancel:           cancel,
	}

	p.wg.Add(1)
	go p.evictLoop()
	return p
}

func bucketKey(functionID string, backend domain.BackendTag) string {
	return functionID + ":" + string(backend)
}

func (p *Pool) getOrCreateBucket(key string) *bucket {
	p.mu.RLock()
	b, ok := p.buckets[key]
	p.mu.RUnlock()
	if ok {
		return b
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.buckets[key]; ok {
		return b
	}
	b = &bucket{sem: make(chan struct{}, p.maxSize)}
	p.buckets[key] = b
	return b
}

// Acquire reserves a concurrency slot for fn on backend, ensuring the
// image is built, and returns a PooledContainer describing what to run.
// It blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context, fn *domain.Function, backend domain.BackendTag) (*domain.PooledContainer, error) {
	key := bucketKey(fn.ID, backend)
	b := p.getOrCreateBucket(key)

	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	b.mu.Lock()
	warmStart := b.built
	b.mu.Unlock()

	tagVal, err, _ := p.group.Do(key, func() (interface{}, error) {
		b.mu.Lock()
		if b.built {
			tag := b.imageTag
			b.mu.Unlock()
			return tag, nil
		}
		b.mu.Unlock()

		image, err := p.builder.Prepare(ctx, fn, backend)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.imageTag = image.ImageTag
		b.built = true
		b.mu.Unlock()
		return image.ImageTag, nil
	})
	if err != nil {
		<-b.sem
		return nil, fmt.Errorf("prepare image for %s: %w", key, err)
	}

	b.mu.Lock()
	b.lastUsed = time.Now()
	b.mu.Unlock()

	return &domain.PooledContainer{
		FunctionID: fn.ID,
		Backend:    backend,
		ImageTag:   tagVal.(string),
		WarmStart:  warmStart,
		LastUsed:   time.Now(),
	}, nil
}

// Release frees the concurrency slot a PooledContainer was holding.
func (p *Pool) Release(pc *domain.PooledContainer) {
	key := bucketKey(pc.FunctionID, pc.Backend)
	p.mu.RLock()
	b, ok := p.buckets[key]
	p.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case <-b.sem:
	default:
	}
}

// EvictIdle removes the cached image for any bucket that has been fully
// idle (no in-flight containers) for longer than IdleTimeout.
func (p *Pool) EvictIdle(ctx context.Context) {
	p.mu.RLock()
	keys := make([]string, 0, len(p.buckets))
	for k := range p.buckets {
		keys = append(keys, k)
	}
	p.mu.RUnlock()

	now := time.Now()
	for _, key := range keys {
		p.mu.RLock()
		b := p.buckets[key]
		p.mu.RUnlock()

		b.mu.Lock()
		idle := len(b.sem) == 0 && b.built && now.Sub(b.lastUsed) > p.idleTimeout
		tag := b.imageTag
		if idle {
			b.built = false
			b.imageTag = ""
		}
		b.mu.Unlock()

		if !idle {
			continue
		}
		if err := p.builder.Remove(ctx, tag); err != nil {
			logging.Op().Warn("evict idle image failed", "key", key, "tag", tag, "error", err)
			continue
		}
		logging.Op().Info("evicted idle image", "key", key, "tag", tag)
	}
}

func (p *Pool) evictLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.EvictIdle(p.ctx)
		}
	}
}

// Drain stops the eviction loop and blocks until it has exited.
func (p *Pool) Drain() {
	p.cancel()
	p.wg.Wait()
}
