package metrics

import (
	"testing"
	"time"
)

func TestInMemorySinkIncrement(t *testing.T) {
	t.Parallel()

	s := NewInMemorySink()
	s.Increment("hit.accepted", 1)
	s.Increment("hit.accepted", 1)
	s.Increment("hit.rejected", 1)

	if got := s.Counter("hit.accepted"); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
	if got := s.Counter("hit.rejected"); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	if got := s.Counter("never-touched"); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestInMemorySinkGauge(t *testing.T) {
	t.Parallel()

	s := NewInMemorySink()
	s.Gauge("connections", 3)
	s.Gauge("connections", 5)

	if got := s.GaugeValue("connections"); got != 5 {
		t.Fatalf("got %d, want 5 (gauges overwrite, not accumulate)", got)
	}
}

func TestInMemorySinkTiming(t *testing.T) {
	t.Parallel()

	s := NewInMemorySink()
	s.Timing("hit", 10*time.Millisecond)
	s.Timing("hit", 20*time.Millisecond)

	if got := s.TimingCount("hit"); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
}

func TestNopSinkDiscardsEverything(t *testing.T) {
	t.Parallel()

	var n Nop
	n.Increment("x", 1)
	n.Gauge("y", 1)
	n.Timing("z", time.Second)
}
