package backend

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitOptions{
		FailureThreshold:         2,
		OpenDuration:             30 * time.Millisecond,
		HalfOpenMaxCalls:         1,
		HalfOpenSuccessThreshold: 1,
	})
	if !cb.Allow() {
		t.Fatalf("expected allow in closed state")
	}
	cb.OnFailure()
	cb.OnFailure()
	if cb.Allow() {
		t.Fatalf("expected breaker to be open")
	}
	time.Sleep(35 * time.Millisecond)
	if !cb.Allow() {
		t.Fatalf("expected breaker to allow in half-open")
	}
	cb.OnSuccess()
	if !cb.Allow() {
		t.Fatalf("expected breaker to close after success")
	}
}

func TestCircuitBreakerHalfOpenLimitsConcurrentProbes(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitOptions{FailureThreshold: 1, OpenDuration: 10 * time.Millisecond, HalfOpenMaxCalls: 1})
	cb.OnFailure()
	time.Sleep(15 * time.Millisecond)
	if !cb.Allow() {
		t.Fatalf("expected first half-open probe to be allowed")
	}
	if cb.Allow() {
		t.Fatalf("expected second concurrent half-open probe to be rejected")
	}
}

func TestCircuitBreakerRequiresConsecutiveHalfOpenSuccesses(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitOptions{
		FailureThreshold:         1,
		OpenDuration:             10 * time.Millisecond,
		HalfOpenMaxCalls:         1,
		HalfOpenSuccessThreshold: 3,
	})
	cb.OnFailure()
	time.Sleep(15 * time.Millisecond)

	cb.Allow()
	cb.OnSuccess()
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected breaker to remain half-open after one success, got %v", cb.State())
	}

	cb.Allow()
	cb.OnSuccess()
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected breaker to remain half-open after two successes, got %v", cb.State())
	}

	cb.Allow()
	cb.OnSuccess()
	if cb.State() != CircuitClosed {
		t.Fatalf("expected breaker to close after three consecutive successes, got %v", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopensImmediately(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitOptions{
		FailureThreshold:         1,
		OpenDuration:             10 * time.Millisecond,
		HalfOpenMaxCalls:         1,
		HalfOpenSuccessThreshold: 3,
	})
	cb.OnFailure()
	time.Sleep(15 * time.Millisecond)

	cb.Allow()
	cb.OnSuccess()
	cb.Allow()
	cb.OnFailure()

	if cb.State() != CircuitOpen {
		t.Fatalf("expected a half-open probe failure to reopen the breaker, got %v", cb.State())
	}
	if cb.Allow() {
		t.Fatalf("expected breaker to reject calls immediately after reopening")
	}
}

func TestCircuitBreakerOpenForReportsElapsedOutage(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitOptions{FailureThreshold: 1, OpenDuration: time.Second})
	if cb.OpenFor() != 0 {
		t.Fatalf("expected zero OpenFor while closed")
	}
	cb.OnFailure()
	time.Sleep(5 * time.Millisecond)
	if cb.OpenFor() <= 0 {
		t.Fatalf("expected a positive OpenFor once tripped")
	}
}
