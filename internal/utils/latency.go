package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps the most recent evaluation durations in a ring and
// answers percentile queries over them.
type LatencyTracker struct {
	mu      sync.RWMutex
	ring    []time.Duration
	next    int
	full    bool
	maxSize int
}

// NewLatencyTracker creates a tracker retaining up to maxSize samples.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{ring: make([]time.Duration, maxSize), maxSize: maxSize}
}

// Observe records a duration, overwriting the oldest once the ring is full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ring[l.next] = d
	l.next = (l.next + 1) % l.maxSize
	if l.next == 0 {
		l.full = true
	}
}

// Percentile returns the p-th (0-100) percentile using nearest-rank on the
// retained samples. Zero when empty.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	samples := append([]time.Duration(nil), l.window()...)
	l.mu.RUnlock()

	if len(samples) == 0 {
		return 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	switch {
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	index := int((p / 100.0) * float64(len(samples)-1))
	return samples[index]
}

// Count returns the number of retained samples.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.window())
}

func (l *LatencyTracker) window() []time.Duration {
	if l.full {
		return l.ring
	}
	return l.ring[:l.next]
}
