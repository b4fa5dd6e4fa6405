// Package redisbackend implements backend.Backend against Redis as the
// external atomic counter store. A single address uses a plain
// *redis.Client; more than one builds a *redis.Ring, which shards keys
// across nodes via rendezvous hashing.
package redisbackend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/celliott/divvy/internal/backend"
	"github.com/celliott/divvy/internal/logging"
)

// hitScript atomically increments the bucket counter, arming its expiry
// on first use, and reports the outcome in one round trip. ARGV: [limit,
// ttlMillis]. Returns {allowed, remaining, ttlMillis}.
const hitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[2])
end
local limit = tonumber(ARGV[1])
local allowed = 0
if current <= limit then
  allowed = 1
end
local remaining = limit - current
if remaining < 0 then
  remaining = 0
end
return {allowed, remaining, ttl}
`

// Backend is a Redis-backed implementation of backend.Backend.
type Backend struct {
	client goredis.UniversalClient
	script *goredis.Script
	logger logging.Logger
	// logLimiter throttles logging of failed Hit calls so a flapping
	// backend doesn't flood the log.
	logLimiter *rate.Limiter
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger attaches a structured logger for connection diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// New builds a Redis-backed Backend. A single address yields a plain
// client; multiple addresses yield a Ring, sharding keys across nodes.
func New(addrs []string, opts ...Option) (*Backend, error) {
	if len(addrs) == 0 {
		return nil, errors.New("redisbackend: at least one address is required")
	}
	var client goredis.UniversalClient
	if len(addrs) == 1 {
		client = goredis.NewClient(&goredis.Options{
			Addr:         addrs[0],
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		})
	} else {
		shards := make(map[string]string, len(addrs))
		for i, addr := range addrs {
			shards[fmt.Sprintf("shard%d", i)] = addr
		}
		client = goredis.NewRing(&goredis.RingOptions{
			Addrs:        shards,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
	}
	b := &Backend{
		client:     client,
		script:     goredis.NewScript(hitScript),
		logger:     logging.Nop{},
		logLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Initialize verifies connectivity to the backend.
func (b *Backend) Initialize(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisbackend: ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (b *Backend) Close() error {
	return b.client.Close()
}

// Hit executes hitScript atomically for key.
func (b *Backend) Hit(ctx context.Context, key []byte, limit, ttlSeconds int64) (backend.Decision, error) {
	ttlMillis := ttlSeconds * 1000
	if ttlMillis <= 0 {
		ttlMillis = 1000
	}
	res, err := b.script.Run(ctx, b.client, []string{string(key)}, limit, ttlMillis).Result()
	if err != nil {
		if b.logLimiter.Allow() {
			b.logger.Error("redis hit failed", map[string]any{"error": err.Error()})
		}
		return backend.Decision{}, err
	}
	values, ok := res.([]interface{})
	if !ok || len(values) != 3 {
		return backend.Decision{}, errors.New("redisbackend: unexpected script result shape")
	}
	allowed := toInt64(values[0]) == 1
	remaining := toInt64(values[1])
	ttlMs := toInt64(values[2])
	resetSeconds := (ttlMs + 999) / 1000
	return backend.Decision{Allowed: allowed, CurrentCredit: remaining, NextResetSeconds: resetSeconds}, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
