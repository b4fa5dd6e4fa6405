// Package handler joins the rule matcher, the wire operation, and the
// backend to produce a reply and emit metrics for a single HIT request.
package handler

import (
	"context"
	"errors"
	"time"

	"github.com/celliott/divvy/internal/backend"
	"github.com/celliott/divvy/internal/logging"
	"github.com/celliott/divvy/internal/metrics"
	"github.com/celliott/divvy/internal/rules"
	"github.com/celliott/divvy/internal/wire"
)

// errBreakerOpen is returned by hitBackend when the circuit breaker is
// open. It shares FailPolicy's OK/ERR reply behavior with any other
// backend error, but is counted and logged separately: a rejection by an
// already-open breaker never touched the backend at all, which is a
// different operational signal than a call the backend itself failed.
var errBreakerOpen = errors.New("handler: backend circuit breaker open")

// unmatchedCredit is the sentinel credit value reported when no rule
// matches an operation.
const unmatchedCredit = -1

// Handler resolves HIT requests against a rule table and a backend.
type Handler struct {
	Table      *rules.Table
	Backend    backend.Backend
	Breaker    *backend.CircuitBreaker
	Metrics    metrics.Sink
	Logger     logging.Logger
	FailPolicy FailPolicy
}

// FailPolicy governs what a backend failure (or an open circuit breaker)
// returns.
type FailPolicy int

const (
	// FailOpen replies OK true 0 0 on backend failure.
	FailOpen FailPolicy = iota
	// FailClosed replies ERR backend-unavailable on backend failure.
	FailClosed
)

// New constructs a Handler. A nil Metrics or Logger is replaced with a
// no-op implementation.
func New(table *rules.Table, be backend.Backend, breaker *backend.CircuitBreaker, sink metrics.Sink, logger logging.Logger, policy FailPolicy) *Handler {
	if sink == nil {
		sink = metrics.Nop{}
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Handler{Table: table, Backend: be, Breaker: breaker, Metrics: sink, Logger: logger, FailPolicy: policy}
}

// HandleHit processes one parsed HIT request and returns the reply line.
func (h *Handler) HandleHit(ctx context.Context, req *wire.Request) string {
	op, _, err := req.Operation()
	if err != nil {
		h.Metrics.Increment("error.unknown", 1)
		return wire.FormatErr(wire.KindUnknown, err.Error())
	}

	rule, ok := h.Table.FindRule(op)
	if !ok {
		h.Metrics.Increment("hit.accepted", 1)
		h.Metrics.Increment("hit.accepted.none", 1)
		return wire.FormatOK(true, unmatchedCredit, 0)
	}

	projected := project(rule, op)
	actor := actorOf(rule, op)
	key := bucketKey(rule, projected, actor)

	matchType := "rule"
	if rule.IsDefault() {
		matchType = "default"
	}

	start := time.Now()
	decision, err := h.hitBackend(ctx, key, rule.CreditLimit, rule.ResetSeconds)

	if err != nil {
		// A timing observation here would conflate "the backend answered
		// slowly" with "the backend didn't answer at all" (or wasn't
		// asked, if the breaker was already open); the hit timer is
		// reserved for completed, decided requests.
		if errors.Is(err, errBreakerOpen) {
			h.Metrics.Increment("error.circuit-open", 1)
			h.Logger.Error("circuit breaker open, not calling backend", map[string]any{"openFor": h.Breaker.OpenFor().String()})
		} else {
			h.Metrics.Increment("error.backend-unavailable", 1)
		}
		if h.FailPolicy == FailClosed {
			return wire.FormatErr(wire.KindBackendUnavailable, "backend unavailable")
		}
		return wire.FormatOK(true, 0, 0)
	}
	h.Metrics.Timing("hit", time.Since(start))

	if decision.Allowed {
		h.Metrics.Increment("hit.accepted", 1)
		h.Metrics.Increment("hit.accepted."+matchType, 1)
	} else {
		h.Metrics.Increment("hit.rejected", 1)
		h.Metrics.Increment("hit.rejected."+matchType, 1)
	}
	return wire.FormatOK(decision.Allowed, decision.CurrentCredit, decision.NextResetSeconds)
}

// hitBackend wraps the backend call with the circuit breaker.
func (h *Handler) hitBackend(ctx context.Context, key []byte, limit, ttlSeconds int64) (backend.Decision, error) {
	if h.Breaker != nil && !h.Breaker.Allow() {
		return backend.Decision{}, errBreakerOpen
	}
	decision, err := h.Backend.Hit(ctx, key, limit, ttlSeconds)
	if h.Breaker != nil {
		if err != nil {
			h.Breaker.OnFailure()
		} else {
			h.Breaker.OnSuccess()
		}
	}
	return decision, err
}
