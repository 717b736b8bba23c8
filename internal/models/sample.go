package models

import (
	"fmt"
	"strings"
	"time"
)

// MetricKind names the scalar a sample measures.
type MetricKind string

const (
	KindLatency    MetricKind = "latency"
	KindThroughput MetricKind = "throughput"
	KindCompute    MetricKind = "compute"
	KindMemory     MetricKind = "memory"
	KindStorage    MetricKind = "storage"
)

// MetricKinds lists every kind in a stable order.
var MetricKinds = []MetricKind{KindLatency, KindThroughput, KindCompute, KindMemory, KindStorage}

// ParseMetricKind accepts a case-insensitive kind name.
func ParseMetricKind(value string) (MetricKind, error) {
	kind := MetricKind(strings.ToLower(strings.TrimSpace(value)))
	for _, k := range MetricKinds {
		if k == kind {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown metric kind %q", value)
}

// SeriesKey identifies one metric series.
type SeriesKey struct {
	Branch    string     `json:"branch"`
	Testbed   string     `json:"testbed"`
	Benchmark string     `json:"benchmark"`
	Kind      MetricKind `json:"kind"`
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Branch, k.Testbed, k.Benchmark, k.Kind)
}

// MetricSample is one stored or incoming measurement. Recency is ordered by
// VersionNumber, then StartTime, then Iteration, all descending.
type MetricSample struct {
	ID            string
	Value         float64
	VersionNumber uint32
	StartTime     time.Time
	Iteration     uint32
}

// NewerThan reports whether s sorts before other in newest-first order.
func (s MetricSample) NewerThan(other MetricSample) bool {
	if s.VersionNumber != other.VersionNumber {
		return s.VersionNumber > other.VersionNumber
	}
	if !s.StartTime.Equal(other.StartTime) {
		return s.StartTime.After(other.StartTime)
	}
	return s.Iteration > other.Iteration
}

// HistoryQuery selects prior samples of a series: StartTime in [Since, Until),
// newest first, at most Limit, never the sample named by ExcludeID.
type HistoryQuery struct {
	Key       SeriesKey
	Since     time.Time
	Until     time.Time
	Limit     uint32
	ExcludeID string
}

// Values extracts sample values preserving order.
func Values(samples []MetricSample) []float64 {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	return values
}
