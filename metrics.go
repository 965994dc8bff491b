package runloop

import (
	"sync/atomic"
)

// MetricsSnapshot holds a point-in-time copy of the loop's runtime counters.
// All counters are zero unless metrics collection was enabled via
// WithMetrics.
type MetricsSnapshot struct {
	// Cycles is the number of completed execution passes.
	Cycles uint64
	// Scheduled is the number of actions accepted via ScheduleAt and its
	// wrappers.
	Scheduled uint64
	// Cancelled is the number of successful Cancel calls.
	Cancelled uint64
	// Spins is the number of busy-wait iterations (unlock/yield/relock).
	Spins uint64
	// Wakeups is the number of wake signals observed while waiting.
	Wakeups uint64
}

// metrics tracks runtime statistics for the loop. All methods are nil-safe
// and thread-safe: counters the loop increments on hot paths are atomic, so
// observers on other goroutines may snapshot them at any time.
type metrics struct {
	cycles    atomic.Uint64
	scheduled atomic.Uint64
	cancelled atomic.Uint64
	spins     atomic.Uint64
	wakeups   atomic.Uint64
}

func (x *metrics) addCycle() {
	if x != nil {
		x.cycles.Add(1)
	}
}

func (x *metrics) addScheduled() {
	if x != nil {
		x.scheduled.Add(1)
	}
}

func (x *metrics) addCancelled() {
	if x != nil {
		x.cancelled.Add(1)
	}
}

func (x *metrics) addSpin() {
	if x != nil {
		x.spins.Add(1)
	}
}

func (x *metrics) addWakeup() {
	if x != nil {
		x.wakeups.Add(1)
	}
}

// Metrics returns a snapshot of the loop's runtime counters. Safe from any
// goroutine. The zero value is returned when metrics are disabled.
func (x *Loop) Metrics() MetricsSnapshot {
	m := x.metrics
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Cycles:    m.cycles.Load(),
		Scheduled: m.scheduled.Load(),
		Cancelled: m.cancelled.Load(),
		Spins:     m.spins.Load(),
		Wakeups:   m.wakeups.Load(),
	}
}
