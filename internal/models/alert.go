package models

import "time"

// Alert is the persisted record of a regressed verdict.
type Alert struct {
	ID        string    `json:"uuid"`
	SampleID  string    `json:"metric"`
	PolicyID  string    `json:"threshold"`
	Key       SeriesKey `json:"series"`
	Side      Side      `json:"side"`
	Bound     float64   `json:"bound"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created"`
}

// ListAlertsRequest filters stored alerts. Empty fields match everything.
type ListAlertsRequest struct {
	Branch    string
	Testbed   string
	Benchmark string
	Kind      MetricKind
	Since     time.Time
	Limit     int
}
