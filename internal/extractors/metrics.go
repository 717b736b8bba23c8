package extractors

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/benchguard/benchguard/internal/models"
)

// MetricExtractor flattens a report into one scalar sample per benchmark,
// iteration and metric kind.
type MetricExtractor struct {
	newID func() string
}

// NewMetricExtractor creates an extractor assigning random UUIDs to samples.
func NewMetricExtractor() *MetricExtractor {
	return &MetricExtractor{newID: uuid.NewString}
}

// Extract returns the samples of every populated metric in the report.
func (e *MetricExtractor) Extract(report models.Report) ([]models.ReportSample, error) {
	samples := make([]models.ReportSample, 0, len(report.Results))
	for _, result := range report.Results {
		values, err := Scalars(result.Metrics)
		if err != nil {
			return nil, fmt.Errorf("benchmark %s iteration %d: %w", result.Benchmark, result.Iteration, err)
		}
		for _, kind := range models.MetricKinds {
			value, ok := values[kind]
			if !ok {
				continue
			}
			samples = append(samples, models.ReportSample{
				Key: models.SeriesKey{
					Branch:    report.Branch,
					Testbed:   report.Testbed,
					Benchmark: result.Benchmark,
					Kind:      kind,
				},
				Sample: models.MetricSample{
					ID:            e.newID(),
					Value:         value,
					VersionNumber: report.VersionNumber,
					StartTime:     report.StartTime,
					Iteration:     result.Iteration,
				},
			})
		}
	}
	return samples, nil
}

// Scalars reduces each populated payload to the value tracked for its kind:
// latency duration in nanoseconds, throughput in events per second, and the
// average of resource reductions.
func Scalars(metrics models.BenchmarkMetrics) (map[models.MetricKind]float64, error) {
	values := make(map[models.MetricKind]float64, len(models.MetricKinds))

	if metrics.Latency != nil {
		values[models.KindLatency] = float64(metrics.Latency.Duration)
	}
	if metrics.Throughput != nil {
		if metrics.Throughput.UnitTime == 0 {
			return nil, fmt.Errorf("throughput unit_time must be positive")
		}
		perNano := metrics.Throughput.Events / float64(metrics.Throughput.UnitTime)
		values[models.KindThroughput] = perNano * float64(time.Second)
	}
	if metrics.Compute != nil {
		values[models.KindCompute] = metrics.Compute.Avg
	}
	if metrics.Memory != nil {
		values[models.KindMemory] = metrics.Memory.Avg
	}
	if metrics.Storage != nil {
		values[models.KindStorage] = metrics.Storage.Avg
	}

	for kind, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
			return nil, fmt.Errorf("%s value %v is not a finite non-negative number", kind, value)
		}
	}
	return values, nil
}
