// Package backend defines the abstract credit-accounting contract divvy
// consumes, plus the circuit breaker used to fail open when a concrete
// backend misbehaves. Concrete backends live in the memory and
// redisbackend subpackages.
package backend

import "context"

// Decision is the outcome of a single Hit call.
type Decision struct {
	Allowed          bool
	CurrentCredit    int64
	NextResetSeconds int64
}

// Backend is the external atomic counter store divvy delegates credit
// accounting to: hit(key, limit, ttl) -> (allowed, remaining, ttl).
// Implementations must be safe for concurrent use.
type Backend interface {
	Initialize(ctx context.Context) error
	Hit(ctx context.Context, key []byte, limit, ttlSeconds int64) (Decision, error)
	Close() error
}
