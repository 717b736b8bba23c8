package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Report is one benchmark run submitted for a branch/testbed at a version.
type Report struct {
	ID            string            `json:"uuid,omitempty"`
	Branch        string            `json:"branch" validate:"required"`
	Testbed       string            `json:"testbed" validate:"required"`
	VersionNumber uint32            `json:"version_number"`
	VersionHash   string            `json:"version_hash,omitempty"`
	StartTime     time.Time         `json:"start_time" validate:"required"`
	EndTime       time.Time         `json:"end_time" validate:"required"`
	Results       []BenchmarkResult `json:"results" validate:"required,min=1,dive"`
}

// BenchmarkResult carries the metrics of one benchmark in one iteration.
type BenchmarkResult struct {
	Iteration uint32           `json:"iteration"`
	Benchmark string           `json:"benchmark" validate:"required"`
	Metrics   BenchmarkMetrics `json:"metrics"`
}

// BenchmarkMetrics holds the optional payload per metric kind.
type BenchmarkMetrics struct {
	Latency    *Latency    `json:"latency,omitempty"`
	Throughput *Throughput `json:"throughput,omitempty"`
	Compute    *MinMaxAvg  `json:"compute,omitempty"`
	Memory     *MinMaxAvg  `json:"memory,omitempty"`
	Storage    *MinMaxAvg  `json:"storage,omitempty"`
}

// Latency values are nanoseconds.
type Latency struct {
	Duration      uint64 `json:"duration"`
	LowerVariance uint64 `json:"lower_variance"`
	UpperVariance uint64 `json:"upper_variance"`
}

// Throughput counts Events over UnitTime nanoseconds.
type Throughput struct {
	Events        float64 `json:"events"`
	UnitTime      uint64  `json:"unit_time"`
	LowerVariance float64 `json:"lower_variance"`
	UpperVariance float64 `json:"upper_variance"`
}

// MinMaxAvg is a resource-usage reduction.
type MinMaxAvg struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Validate checks the report is storable.
func (r Report) Validate() error {
	if err := modelValidate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("invalid report: %s failed %q", fieldErrs[0].Namespace(), fieldErrs[0].Tag())
		}
		return fmt.Errorf("invalid report: %w", err)
	}
	if r.EndTime.Before(r.StartTime) {
		return fmt.Errorf("invalid report: end_time precedes start_time")
	}
	return nil
}

// ReportSample is a normalized sample ready for storage and evaluation.
type ReportSample struct {
	Key    SeriesKey
	Sample MetricSample
}

// SampleResult reports what happened to one sample of a submitted report.
type SampleResult struct {
	SampleID  string     `json:"uuid"`
	Benchmark string     `json:"benchmark"`
	Kind      MetricKind `json:"kind"`
	Iteration uint32     `json:"iteration"`
	Verdict   Verdict    `json:"verdict"`
	AlertID   string     `json:"alert,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ReportResult is returned after a report is stored and evaluated.
type ReportResult struct {
	ReportID string         `json:"uuid"`
	Samples  []SampleResult `json:"results"`
}
