// Package metrics keeps a short in-memory latency history per input device
package metrics

import (
	"sort"
	"sync"
	"time"
)

const (
	// MaxHistoryPoints is the maximum number of samples kept per device
	MaxHistoryPoints = 120

	// CleanupInterval is how often stale devices are purged
	CleanupInterval = time.Minute

	// Retention is how long a device's history survives without new samples
	Retention = 10 * time.Minute
)

// LatencySample is one latency estimate
type LatencySample struct {
	Timestamp int64   `json:"timestamp_ms"`
	LatencyMs float64 `json:"latency_ms"`
}

// deviceHistory stores samples for a single device
type deviceHistory struct {
	samples    []LatencySample
	lastUpdate time.Time
}

// Store holds latency history for every device that has streamed recently
type Store struct {
	devices map[string]*deviceHistory
	mu      sync.RWMutex
	stopCh  chan struct{}
	once    sync.Once
}

// NewStore creates a store with background cleanup
func NewStore() *Store {
	s := &Store{
		devices: make(map[string]*deviceHistory),
		stopCh:  make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Stop stops the background cleanup goroutine
func (s *Store) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

// AddSample records a latency estimate for device
func (s *Store) AddSample(device string, at time.Time, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, exists := s.devices[device]
	if !exists {
		history = &deviceHistory{samples: make([]LatencySample, 0, MaxHistoryPoints)}
		s.devices[device] = history
	}

	history.samples = append(history.samples, LatencySample{
		Timestamp: at.UnixMilli(),
		LatencyMs: float64(latency) / float64(time.Millisecond),
	})

	// Trim to max size
	if len(history.samples) > MaxHistoryPoints {
		excess := len(history.samples) - MaxHistoryPoints
		history.samples = history.samples[excess:]
	}
	history.lastUpdate = time.Now()
}

// GetHistory returns samples for device newer than sinceMs (all when sinceMs <= 0)
func (s *Store) GetHistory(device string, sinceMs int64) []LatencySample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.devices[device]
	if !exists {
		return nil
	}

	var result []LatencySample
	for _, sample := range history.samples {
		if sinceMs <= 0 || sample.Timestamp > sinceMs {
			result = append(result, sample)
		}
	}
	return result
}

// Summary aggregates a device's retained samples
type Summary struct {
	Device      string  `json:"device"`
	SampleCount int     `json:"sample_count"`
	LastSeenMs  int64   `json:"last_seen_ms"`
	LatestMs    float64 `json:"latest_ms"`
	MinMs       float64 `json:"min_ms"`
	MaxMs       float64 `json:"max_ms"`
	AvgMs       float64 `json:"avg_ms"`
}

// GetSummary returns a summary for device, or nil if it has no samples
func (s *Store) GetSummary(device string) *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaryLocked(device)
}

// GetAllSummaries returns summaries for all devices, sorted by name
func (s *Store) GetAllSummaries() []*Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]*Summary, 0, len(s.devices))
	for device := range s.devices {
		if summary := s.summaryLocked(device); summary != nil {
			summaries = append(summaries, summary)
		}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Device < summaries[j].Device })
	return summaries
}

// summaryLocked builds a summary. Caller must hold s.mu.
func (s *Store) summaryLocked(device string) *Summary {
	history, exists := s.devices[device]
	if !exists || len(history.samples) == 0 {
		return nil
	}

	summary := &Summary{
		Device:      device,
		SampleCount: len(history.samples),
		LastSeenMs:  history.samples[len(history.samples)-1].Timestamp,
		LatestMs:    history.samples[len(history.samples)-1].LatencyMs,
		MinMs:       history.samples[0].LatencyMs,
		MaxMs:       history.samples[0].LatencyMs,
	}
	var total float64
	for _, sample := range history.samples {
		total += sample.LatencyMs
		if sample.LatencyMs < summary.MinMs {
			summary.MinMs = sample.LatencyMs
		}
		if sample.LatencyMs > summary.MaxMs {
			summary.MaxMs = sample.LatencyMs
		}
	}
	summary.AvgMs = total / float64(len(history.samples))
	return summary
}

// cleanupLoop periodically removes stale device history
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cleanup(time.Now().Add(-Retention))
		}
	}
}

// cleanup removes devices not updated since cutoff
func (s *Store) cleanup(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for device, history := range s.devices {
		if history.lastUpdate.Before(cutoff) {
			delete(s.devices, device)
		}
	}
}
