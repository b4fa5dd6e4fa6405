// Package memory provides an in-process fixed-window Backend, used as
// divvy's default so the service runs standalone without external
// infrastructure, and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/celliott/divvy/internal/backend"
)

type bucketState struct {
	windowStart time.Time
	used        int64
}

// Backend is a mutex-guarded fixed-window counter store.
type Backend struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
	now     func() time.Time // overridable for tests
}

// New constructs an in-memory Backend.
func New() *Backend {
	return &Backend{buckets: make(map[string]*bucketState), now: time.Now}
}

func (b *Backend) Initialize(ctx context.Context) error { return nil }
func (b *Backend) Close() error                         { return nil }

// Hit increments the counter for key within its current window, resetting
// it when the window boundary has advanced.
func (b *Backend) Hit(ctx context.Context, key []byte, limit, ttlSeconds int64) (backend.Decision, error) {
	if limit <= 0 {
		return backend.Decision{Allowed: true, CurrentCredit: 0, NextResetSeconds: 0}, nil
	}
	window := time.Duration(ttlSeconds) * time.Second
	if window <= 0 {
		window = time.Second
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	k := string(key)
	state, ok := b.buckets[k]
	windowStart := now.Truncate(window)
	if !ok {
		state = &bucketState{windowStart: windowStart}
		b.buckets[k] = state
	} else if state.windowStart != windowStart {
		state.windowStart = windowStart
		state.used = 0
	}

	allowed := state.used < limit
	if allowed {
		state.used++
	}
	remaining := limit - state.used
	if remaining < 0 {
		remaining = 0
	}
	resetAfter := int64(windowStart.Add(window).Sub(now) / time.Second)
	if resetAfter < 0 {
		resetAfter = 0
	}
	return backend.Decision{Allowed: allowed, CurrentCredit: remaining, NextResetSeconds: resetAfter}, nil
}
