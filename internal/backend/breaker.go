package backend

import (
	"sync/atomic"
	"time"
)

// CircuitState represents breaker state.
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitOptions configures breaker thresholds.
type CircuitOptions struct {
	FailureThreshold int64
	OpenDuration     time.Duration
	HalfOpenMaxCalls int64
	// HalfOpenSuccessThreshold is how many consecutive half-open probes
	// must succeed before the breaker fully closes. A single stray
	// success right after an outage doesn't yet prove the backend is
	// healthy; requiring a short run of them does, and any probe
	// failure in between resets the count to zero.
	HalfOpenSuccessThreshold int64
}

// CircuitBreaker tracks backend failures and decides when to fail open.
//
// Closed -> Open happens after FailureThreshold consecutive failures.
// Open -> HalfOpen happens once OpenDuration has elapsed, admitting up
// to HalfOpenMaxCalls concurrent probes. HalfOpen -> Closed requires
// HalfOpenSuccessThreshold consecutive probe successes; any probe
// failure sends it straight back to Open for another OpenDuration.
type CircuitBreaker struct {
	state            atomic.Int32
	openedAt         atomic.Int64
	openUntil        atomic.Int64
	failures         atomic.Int64
	halfOpenInFlight atomic.Int64
	halfOpenStreak   atomic.Int64
	opts             CircuitOptions
}

// NewCircuitBreaker constructs a breaker with defaults applied.
func NewCircuitBreaker(opts CircuitOptions) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 10
	}
	if opts.OpenDuration <= 0 {
		opts.OpenDuration = 200 * time.Millisecond
	}
	if opts.HalfOpenMaxCalls <= 0 {
		opts.HalfOpenMaxCalls = 5
	}
	if opts.HalfOpenSuccessThreshold <= 0 {
		opts.HalfOpenSuccessThreshold = 3
	}
	cb := &CircuitBreaker{opts: opts}
	cb.state.Store(int32(CircuitClosed))
	return cb
}

// State reports the breaker's current state, resolving an elapsed Open
// window to HalfOpen without admitting a probe (Allow does that).
func (cb *CircuitBreaker) State() CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	state := CircuitState(cb.state.Load())
	if state == CircuitOpen && time.Now().UnixNano() >= cb.openUntil.Load() {
		return CircuitHalfOpen
	}
	return state
}

// OpenFor reports how long the breaker has been open, or zero if it
// isn't currently open.
func (cb *CircuitBreaker) OpenFor() time.Duration {
	if cb == nil || CircuitState(cb.state.Load()) != CircuitOpen {
		return 0
	}
	opened := cb.openedAt.Load()
	if opened == 0 {
		return 0
	}
	return time.Since(time.Unix(0, opened))
}

// Allow reports whether a backend call should proceed.
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}
	switch CircuitState(cb.state.Load()) {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Now().UnixNano() >= cb.openUntil.Load() {
			cb.state.Store(int32(CircuitHalfOpen))
			cb.halfOpenInFlight.Store(1)
			cb.halfOpenStreak.Store(0)
			return true
		}
		return false
	case CircuitHalfOpen:
		inFlight := cb.halfOpenInFlight.Add(1)
		if inFlight <= cb.opts.HalfOpenMaxCalls {
			return true
		}
		cb.halfOpenInFlight.Add(-1)
		return false
	default:
		return true
	}
}

// OnSuccess records a successful backend call.
func (cb *CircuitBreaker) OnSuccess() {
	if cb == nil {
		return
	}
	switch CircuitState(cb.state.Load()) {
	case CircuitHalfOpen:
		cb.halfOpenInFlight.Add(-1)
		if cb.halfOpenStreak.Add(1) >= cb.opts.HalfOpenSuccessThreshold {
			cb.failures.Store(0)
			cb.halfOpenStreak.Store(0)
			cb.state.Store(int32(CircuitClosed))
		}
	case CircuitClosed:
		cb.failures.Store(0)
	}
}

// OnFailure records a failed backend call and updates state. A failure
// during a half-open probe reopens the breaker immediately and discards
// any partial success streak, rather than waiting for a fresh run of
// FailureThreshold failures to accumulate.
func (cb *CircuitBreaker) OnFailure() {
	if cb == nil {
		return
	}
	if CircuitState(cb.state.Load()) == CircuitHalfOpen {
		cb.halfOpenInFlight.Add(-1)
		cb.halfOpenStreak.Store(0)
		cb.trip()
		return
	}
	failures := cb.failures.Add(1)
	if failures >= cb.opts.FailureThreshold {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	now := time.Now()
	cb.openedAt.Store(now.UnixNano())
	cb.openUntil.Store(now.Add(cb.opts.OpenDuration).UnixNano())
	cb.state.Store(int32(CircuitOpen))
}
