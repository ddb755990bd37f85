package main

import (
	"context"
	"fmt"
	"time"

	dockerclient "github.com/docker/docker/client"
	"github.com/redis/go-redis/v9"

	"github.com/nimbusrun/fnrun/internal/admission"
	"github.com/nimbusrun/fnrun/internal/backend"
	"github.com/nimbusrun/fnrun/internal/builder"
	"github.com/nimbusrun/fnrun/internal/config"
	"github.com/nimbusrun/fnrun/internal/coordinator"
	"github.com/nimbusrun/fnrun/internal/domain"
	"github.com/nimbusrun/fnrun/internal/executor"
	"github.com/nimbusrun/fnrun/internal/logging"
	"github.com/nimbusrun/fnrun/internal/metrics"
	"github.com/nimbusrun/fnrun/internal/observability"
	"github.com/nimbusrun/fnrun/internal/pool"
	"github.com/nimbusrun/fnrun/internal/registry"
	"github.com/nimbusrun/fnrun/internal/store"
)

// system bundles every component the composition root builds, so both the
// daemon and the one-shot invoke command can share identical wiring.
type system struct {
	docker     *dockerclient.Client
	storePool  *store.Pool
	containers *pool.Pool
	collector  *metrics.Collector
	prom       *metrics.PrometheusMetrics
	registry   *registry.Registry
	coord      *coordinator.Coordinator
	redis      *redis.Client
}

// registryAdapter bridges *registry.Registry (which returns the executor
// package's Executor interface) onto coordinator.Registry (which expects
// the coordinator package's smaller Executor interface). The two interface
// types are structurally compatible but are distinct named types, so a
// direct assignment does not typecheck without this adapter.
type registryAdapter struct {
	reg *registry.Registry
}

func (a registryAdapter) Get(tag domain.BackendTag) (coordinator.Executor, error) {
	ex, err := a.reg.Get(tag)
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// buildSystem wires every component in internal/ together: storage, the
// image builder, the warm-container pool, one executor per backend, the
// registry, the metrics collector, and the coordinator that ties them all
// together behind one Invoke call.
func buildSystem(ctx context.Context, cfg *config.Config) (*system, error) {
	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
	}); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	docker, err := newDockerClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}

	storePool, err := store.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	img := builder.New(docker)
	containers := pool.New(img, pool.Config{
		MaxSize:          cfg.Pool.MaxSize,
		IdleTimeout:      cfg.Pool.IdleTimeout,
		EvictionInterval: cfg.Pool.EvictionInterval,
	})

	standardDriver := backend.NewDriver(docker, "")
	sandboxDriver := backend.NewDriver(docker, cfg.Docker.SandboxRuntime)

	reg := registry.New()
	reg.Register(domain.BackendStandard, executor.NewStandard(containers, standardDriver, cfg.Pool.PrewarmCount))
	reg.Register(domain.BackendSandbox, executor.NewSandbox(containers, sandboxDriver))

	var prom *metrics.PrometheusMetrics
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
	}
	collector := metrics.NewCollector(storePool.MetricStore(), prom, metrics.DefaultFlushInterval)
	collector.Start(ctx)

	coord := coordinator.New(registryAdapter{reg: reg}, collector, coordinator.NewExecutionStore())

	var redisClient *redis.Client
	if cfg.Admission.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		limiter := admission.New(redisClient, admission.Config{
			RequestsPerSecond: cfg.Admission.RequestsPerSecond,
			BurstSize:         cfg.Admission.BurstSize,
		})
		coord = coord.WithAdmission(limiter)
	}

	return &system{
		docker:     docker,
		storePool:  storePool,
		containers: containers,
		collector:  collector,
		prom:       prom,
		registry:   reg,
		coord:      coord,
		redis:      redisClient,
	}, nil
}

// close tears down every resource buildSystem opened, in reverse order.
func (s *system) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.collector.Stop(shutdownCtx)
	s.containers.Drain()
	s.storePool.Close()
	s.docker.Close()
	if s.redis != nil {
		s.redis.Close()
	}
	if err := observability.Shutdown(shutdownCtx); err != nil {
		logging.Op().Warn("tracing shutdown failed", "error", err)
	}
}
