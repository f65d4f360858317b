package monitor

import (
	"testing"
	"time"

	"github.com/padlink/padlink/internal/envelope"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestIsIdle(t *testing.T) {
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	m := NewWithClock(clock.Now)

	if !m.IsIdle(DefaultIdleThreshold) {
		t.Error("monitor without frames should be idle")
	}

	m.RecordFrame(envelope.InputSnapshot{})
	if m.IsIdle(DefaultIdleThreshold) {
		t.Error("expected not idle right after a frame")
	}

	clock.Advance(DefaultIdleThreshold)
	if m.IsIdle(DefaultIdleThreshold) {
		t.Error("elapsed == threshold should not be idle")
	}

	clock.Advance(time.Millisecond)
	if !m.IsIdle(DefaultIdleThreshold) {
		t.Error("elapsed > threshold should be idle")
	}

	m.RecordFrame(envelope.InputSnapshot{})
	if m.IsIdle(DefaultIdleThreshold) {
		t.Error("new frame should reset idle state")
	}
}

func TestRecordFrameLatency(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_500)
	m := NewWithClock(func() time.Time { return now })

	if _, ok := m.LastLatency(); ok {
		t.Error("expected no latency before any frame")
	}

	latency, ok := m.RecordFrame(envelope.InputSnapshot{Timestamp: 1_700_000_000_480})
	if !ok || latency != 20*time.Millisecond {
		t.Errorf("got %v %v, want 20ms", latency, ok)
	}
	if last, ok := m.LastLatency(); !ok || last != 20*time.Millisecond {
		t.Errorf("LastLatency = %v %v", last, ok)
	}

	// Sender clock ahead of ours clamps to zero.
	latency, ok = m.RecordFrame(envelope.InputSnapshot{Timestamp: 1_700_000_009_000})
	if !ok || latency != 0 {
		t.Errorf("expected clamped zero latency, got %v %v", latency, ok)
	}

	if _, ok := m.RecordFrame(envelope.InputSnapshot{}); ok {
		t.Error("snapshot without timestamp should not produce latency")
	}
	if !m.LastFrame().Equal(now) {
		t.Errorf("LastFrame = %v, want %v", m.LastFrame(), now)
	}
}
