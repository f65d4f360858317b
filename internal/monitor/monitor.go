// Package monitor tracks stream liveness and per-frame latency.
//
// Latency is estimated as receive time minus the sender's embedded
// timestamp. That assumes the two clocks are loosely synchronized; it is a
// heuristic for display and alerting, not a measured one-way delay.
package monitor

import (
	"sync/atomic"
	"time"

	"github.com/padlink/padlink/internal/envelope"
)

// DefaultIdleThreshold is how long without frames before the source counts as idle
const DefaultIdleThreshold = 5 * time.Second

// Monitor records accepted frames. Writes come from the receive loop;
// reads may come from any goroutine.
type Monitor struct {
	now func() time.Time

	lastFrame   atomic.Int64 // unix nanos, 0 = never
	lastLatency atomic.Int64 // nanos, -1 = unknown
}

// New creates a monitor using the wall clock
func New() *Monitor {
	return NewWithClock(time.Now)
}

// NewWithClock creates a monitor with an injectable clock
func NewWithClock(now func() time.Time) *Monitor {
	m := &Monitor{now: now}
	m.lastLatency.Store(-1)
	return m
}

// RecordFrame marks a frame as accepted now and returns its latency
// estimate. ok is false when the snapshot carries no timestamp.
func (m *Monitor) RecordFrame(s envelope.InputSnapshot) (latency time.Duration, ok bool) {
	now := m.now()
	m.lastFrame.Store(now.UnixNano())
	if s.Timestamp <= 0 {
		return 0, false
	}
	latency = Latency(now, s.Timestamp)
	m.lastLatency.Store(int64(latency))
	return latency, true
}

// IsIdle reports whether more than threshold has passed since the last
// accepted frame. A monitor that has never seen a frame is idle.
func (m *Monitor) IsIdle(threshold time.Duration) bool {
	last := m.lastFrame.Load()
	if last == 0 {
		return true
	}
	return m.now().Sub(time.Unix(0, last)) > threshold
}

// LastFrame returns when the last frame was accepted, or the zero time
func (m *Monitor) LastFrame() time.Time {
	last := m.lastFrame.Load()
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(0, last)
}

// LastLatency returns the most recent latency estimate
func (m *Monitor) LastLatency() (time.Duration, bool) {
	l := m.lastLatency.Load()
	if l < 0 {
		return 0, false
	}
	return time.Duration(l), true
}

// Latency returns max(0, now - sentMs) where sentMs is Unix milliseconds
func Latency(now time.Time, sentMs int64) time.Duration {
	delta := now.UnixMilli() - sentMs
	if delta < 0 {
		return 0
	}
	return time.Duration(delta) * time.Millisecond
}
