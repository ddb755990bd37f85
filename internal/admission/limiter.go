// Package admission implements the optional admission-control layer the
// specification calls out as unaddressed by the source system: a bounded
// rate limiter in front of the invocation coordinator, sized from expected
// host capacity rather than being required for correctness.
//
// It is a Redis-backed token bucket so every process sees the same bucket
// state, with an in-memory token bucket as a fallback when Redis is
// unreachable — admission control degrades to per-process limiting rather
// than failing invocations outright when the shared store is down.
package admission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimbusrun/fnrun/internal/logging"
)

// tokenBucketScript mirrors the Redis-side token bucket: refill by elapsed
// time, admit if enough tokens are available, and persist the new state
// atomically so concurrent callers across processes see one consistent
// bucket.
var tokenBucketScript = redis.NewScript(`
local bucket = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or tonumber(ARGV[1])
local last = tonumber(bucket[2]) or tonumber(ARGV[3])

local elapsed = tonumber(ARGV[3]) - last
tokens = math.min(tonumber(ARGV[1]), tokens + elapsed * tonumber(ARGV[2]))

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call('HMSET', KEYS[1], 'tokens', tokens, 'last_refill', ARGV[3])
redis.call('EXPIRE', KEYS[1], math.ceil(tonumber(ARGV[1]) / tonumber(ARGV[2])) + 10)

return {allowed, math.floor(tokens)}
`)

// Config holds the bucket's shape: BurstSize tokens, refilled at
// RequestsPerSecond.
type Config struct {
	RequestsPerSecond float64
	BurstSize         int
}

// Limiter admits or rejects one invocation at a time, keyed by caller
// (typically the function ID or an API key).
type Limiter struct {
	redis *redis.Client
	cfg   Config
	mu    sync.Mutex
	local map[string]*localBucket
}

// localBucket is the in-memory fallback bucket used per key when Redis is
// unreachable.
type localBucket struct {
	tokens     float64
	lastRefill time.Time
}

// New creates a Limiter backed by redisClient, using cfg for every key.
func New(redisClient *redis.Client, cfg Config) *Limiter {
	return &Limiter{redis: redisClient, cfg: cfg, local: make(map[string]*localBucket)}
}

// Allow reports whether one request for key may proceed, consuming a token
// if so.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.redis == nil {
		return l.allowLocal(key), nil
	}

	now := float64(time.Now().Unix())
	result, err := tokenBucketScript.Run(ctx, l.redis, []string{key}, l.cfg.BurstSize, l.cfg.RequestsPerSecond, now).Slice()
	if err != nil {
		logging.Op().Warn("admission: redis unavailable, falling back to local limiter", "key", key, "error", err)
		return l.allowLocal(key), nil
	}
	if len(result) != 2 {
		return false, fmt.Errorf("admission: unexpected token bucket result shape")
	}
	allowed, _ := result[0].(int64)
	return allowed == 1, nil
}

func (l *Limiter) allowLocal(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.local[key]
	now := time.Now()
	if !ok {
		b = &localBucket{tokens: float64(l.cfg.BurstSize), lastRefill: now}
		l.local[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(float64(l.cfg.BurstSize), b.tokens+elapsed*l.cfg.RequestsPerSecond)
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
