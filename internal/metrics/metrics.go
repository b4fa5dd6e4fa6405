// Package metrics defines divvy's metrics contract and an in-process
// Sink supporting the increment/gauge/timing vocabulary the handler
// and server emit against.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Sink is the metrics contract divvy components emit against. Names are
// dotted strings (e.g. "hit.accepted.rule", "error.backend-unavailable").
type Sink interface {
	Increment(name string, delta int64)
	Gauge(name string, value int64)
	Timing(name string, d time.Duration)
}

// Nop discards everything; used where no sink is configured.
type Nop struct{}

func (Nop) Increment(string, int64)      {}
func (Nop) Gauge(string, int64)          {}
func (Nop) Timing(string, time.Duration) {}

type timingSummary struct {
	count      atomic.Int64
	totalNanos atomic.Int64
	maxNanos   atomic.Int64
}

// InMemorySink accumulates counters, gauges, and timing summaries for
// inspection by tests or a future stats-reporting command.
type InMemorySink struct {
	counters sync.Map // string -> *atomic.Int64
	gauges   sync.Map // string -> *atomic.Int64
	timings  sync.Map // string -> *timingSummary
}

// NewInMemorySink constructs an empty in-memory sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

func (s *InMemorySink) Increment(name string, delta int64) {
	if s == nil || name == "" {
		return
	}
	s.counter(name).Add(delta)
}

func (s *InMemorySink) Gauge(name string, value int64) {
	if s == nil || name == "" {
		return
	}
	s.gaugeCell(name).Store(value)
}

func (s *InMemorySink) Timing(name string, d time.Duration) {
	if s == nil || name == "" {
		return
	}
	entry := s.timing(name)
	nanos := d.Nanoseconds()
	entry.count.Add(1)
	entry.totalNanos.Add(nanos)
	for {
		current := entry.maxNanos.Load()
		if nanos <= current {
			break
		}
		if entry.maxNanos.CompareAndSwap(current, nanos) {
			break
		}
	}
}

// Counter returns the current value of a named counter.
func (s *InMemorySink) Counter(name string) int64 {
	if existing, ok := s.counters.Load(name); ok {
		return existing.(*atomic.Int64).Load()
	}
	return 0
}

// GaugeValue returns the current value of a named gauge.
func (s *InMemorySink) GaugeValue(name string) int64 {
	if existing, ok := s.gauges.Load(name); ok {
		return existing.(*atomic.Int64).Load()
	}
	return 0
}

// TimingCount returns how many observations a named timer has recorded.
func (s *InMemorySink) TimingCount(name string) int64 {
	if existing, ok := s.timings.Load(name); ok {
		return existing.(*timingSummary).count.Load()
	}
	return 0
}

func (s *InMemorySink) counter(name string) *atomic.Int64 {
	if existing, ok := s.counters.Load(name); ok {
		return existing.(*atomic.Int64)
	}
	counter := &atomic.Int64{}
	actual, _ := s.counters.LoadOrStore(name, counter)
	return actual.(*atomic.Int64)
}

func (s *InMemorySink) gaugeCell(name string) *atomic.Int64 {
	if existing, ok := s.gauges.Load(name); ok {
		return existing.(*atomic.Int64)
	}
	cell := &atomic.Int64{}
	actual, _ := s.gauges.LoadOrStore(name, cell)
	return actual.(*atomic.Int64)
}

func (s *InMemorySink) timing(name string) *timingSummary {
	if existing, ok := s.timings.Load(name); ok {
		return existing.(*timingSummary)
	}
	entry := &timingSummary{}
	actual, _ := s.timings.LoadOrStore(name, entry)
	return actual.(*timingSummary)
}
