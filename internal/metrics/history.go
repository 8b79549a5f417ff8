// Package metrics keeps an in-memory history of device telemetry samples
package metrics

import (
	"sync"
	"time"

	"github.com/edgecli/neurolink/internal/device"
)

const (
	// MaxHistoryPoints is the maximum number of samples to keep
	MaxHistoryPoints = 120 // 4 minutes at one jitter tick every 2s

	// CleanupInterval is how often to run cleanup of old samples
	CleanupInterval = time.Minute

	// MetricsRetention is how long a sample is kept
	MetricsRetention = 10 * time.Minute
)

// Sample is a single telemetry snapshot
type Sample struct {
	Timestamp int64         `json:"timestamp_ms" msgpack:"timestamp_ms"`
	Status    device.Status `json:"status" msgpack:"status"`
	CPULoad   int           `json:"cpu_load" msgpack:"cpu_load"`
	Temp      int           `json:"temp" msgpack:"temp"`
}

// SampleOf converts a device state into a sample taken at t
func SampleOf(s device.State, t time.Time) Sample {
	return Sample{
		Timestamp: t.UnixMilli(),
		Status:    s.Status,
		CPULoad:   s.CPULoad,
		Temp:      s.Temp,
	}
}

// Store holds the sample ring for the device
type Store struct {
	samples    []Sample
	lastUpdate time.Time
	mu         sync.RWMutex
	stopCh     chan struct{}
	stopOnce   sync.Once
	now        func() time.Time
}

// NewStore creates a new store with background cleanup
func NewStore() *Store {
	s := &Store{
		samples: make([]Sample, 0, MaxHistoryPoints),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go s.cleanupLoop()

	return s
}

// Stop stops the background cleanup goroutine
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Record appends the current device state as a sample
func (s *Store) Record(state device.State) {
	s.AddSample(SampleOf(state, s.now()))
}

// AddSample appends a sample, trimming the oldest beyond MaxHistoryPoints
func (s *Store) AddSample(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample)

	if len(s.samples) > MaxHistoryPoints {
		excess := len(s.samples) - MaxHistoryPoints
		s.samples = s.samples[excess:]
	}

	s.lastUpdate = s.now()
}

// History returns samples newer than sinceMs; sinceMs <= 0 returns all
func (s *Store) History(sinceMs int64) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sinceMs <= 0 {
		result := make([]Sample, len(s.samples))
		copy(result, s.samples)
		return result
	}

	var result []Sample
	for _, sample := range s.samples {
		if sample.Timestamp > sinceMs {
			result = append(result, sample)
		}
	}
	return result
}

// Latest returns the most recent sample, or nil
func (s *Store) Latest() *Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.samples) == 0 {
		return nil
	}

	sample := s.samples[len(s.samples)-1]
	return &sample
}

// Clear removes all samples
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = s.samples[:0]
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup drops samples older than MetricsRetention
func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-MetricsRetention).UnixMilli()

	i := 0
	for i < len(s.samples) && s.samples[i].Timestamp < cutoff {
		i++
	}
	if i > 0 {
		s.samples = append(s.samples[:0], s.samples[i:]...)
	}
}

// Summary describes the current telemetry window
type Summary struct {
	Latest       *Sample `json:"latest,omitempty"`
	SampleCount  int     `json:"sample_count"`
	OldestSample int64   `json:"oldest_sample_ms,omitempty"`
	NewestSample int64   `json:"newest_sample_ms,omitempty"`
	AvgCPULoad   float64 `json:"avg_cpu_load"`
	MaxTemp      int     `json:"max_temp"`
}

// Summary returns aggregate figures for the samples taken while online
func (s *Store) Summary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &Summary{SampleCount: len(s.samples)}
	if len(s.samples) == 0 {
		return summary
	}

	latest := s.samples[len(s.samples)-1]
	summary.Latest = &latest
	summary.OldestSample = s.samples[0].Timestamp
	summary.NewestSample = latest.Timestamp

	online := 0
	total := 0
	for _, sample := range s.samples {
		if sample.Status != device.StatusOnline {
			continue
		}
		online++
		total += sample.CPULoad
		if sample.Temp > summary.MaxTemp {
			summary.MaxTemp = sample.Temp
		}
	}
	if online > 0 {
		summary.AvgCPULoad = float64(total) / float64(online)
	}

	return summary
}
