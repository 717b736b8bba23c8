package engine

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/benchguard/benchguard/internal/models"
)

// ComputeBaseline reduces history to its population mean, variance and
// standard deviation. It returns false when fewer than minSampleSize values
// are available, which callers report as a missing baseline rather than an error.
func ComputeBaseline(values []float64, minSampleSize uint32) (*models.Baseline, bool) {
	if len(values) == 0 || uint64(len(values)) < uint64(minSampleSize) {
		return nil, false
	}

	mean, variance := stat.PopMeanVariance(values, nil)
	// The compensated sum can leave a tiny negative residue for constant input.
	variance = math.Max(variance, 0)

	return &models.Baseline{
		Mean:        mean,
		Variance:    variance,
		StdDev:      math.Sqrt(variance),
		SampleCount: uint32(len(values)),
	}, true
}
