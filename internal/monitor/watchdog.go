package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Resetter is reset when the stream goes idle
type Resetter interface {
	Reset()
}

// Watchdog resets a Resetter once each time the monitored stream goes from
// active to idle.
type Watchdog struct {
	monitor   *Monitor
	threshold time.Duration
	target    Resetter
	log       *zap.SugaredLogger

	wasIdle bool
}

// NewWatchdog creates a watchdog. A stream that has never delivered a frame
// starts idle, so nothing is reset until frames have arrived and stopped.
func NewWatchdog(m *Monitor, threshold time.Duration, target Resetter, log *zap.SugaredLogger) *Watchdog {
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Watchdog{
		monitor:   m,
		threshold: threshold,
		target:    target,
		log:       log,
		wasIdle:   true,
	}
}

// Check evaluates idleness once and reports whether a reset was issued.
// Not safe for concurrent use; Run calls it from a single goroutine.
func (w *Watchdog) Check() bool {
	idle := w.monitor.IsIdle(w.threshold)
	transition := idle && !w.wasIdle
	w.wasIdle = idle
	if transition {
		w.log.Infof("watchdog: no input for %v, resetting controller", w.threshold)
		w.target.Reset()
	}
	return transition
}

// Run checks every interval until ctx is done
func (w *Watchdog) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check()
		}
	}
}
