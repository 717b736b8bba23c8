package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/utils"
)

// ErrInvertedBoundary reports a computed lower bound above the upper bound.
var ErrInvertedBoundary = errors.New("lower bound exceeds upper bound")

// CalculateBoundary turns a baseline into concrete limits for the sides the
// policy configures.
//
// The z-score test scales the critical value by the population standard
// deviation. The t-test uses n-1 degrees of freedom and scales by the
// standard error of the mean. A zero standard deviation collapses every
// configured side onto the mean.
func CalculateBoundary(policy models.ThresholdPolicy, baseline models.Baseline) (models.Boundary, error) {
	scale, df, err := boundaryScale(policy.Test, baseline)
	if err != nil {
		return models.Boundary{}, utils.ConfigError("engine.CalculateBoundary", "threshold "+policy.ID, err)
	}

	var boundary models.Boundary
	if policy.LeftSide != nil {
		offset, err := sideOffset(policy.Test, *policy.LeftSide, df, scale)
		if err != nil {
			return models.Boundary{}, utils.ConfigError("engine.CalculateBoundary", "left side", err)
		}
		boundary.Lower = models.Float64(baseline.Mean - offset)
	}
	if policy.RightSide != nil {
		offset, err := sideOffset(policy.Test, *policy.RightSide, df, scale)
		if err != nil {
			return models.Boundary{}, utils.ConfigError("engine.CalculateBoundary", "right side", err)
		}
		boundary.Upper = models.Float64(baseline.Mean + offset)
	}

	if boundary.Lower != nil && boundary.Upper != nil && *boundary.Lower > *boundary.Upper {
		return models.Boundary{}, utils.ConfigError("engine.CalculateBoundary", "threshold "+policy.ID,
			fmt.Errorf("%w: %v > %v", ErrInvertedBoundary, *boundary.Lower, *boundary.Upper))
	}
	return boundary, nil
}

func boundaryScale(test models.TestKind, baseline models.Baseline) (scale, df float64, err error) {
	switch test {
	case models.TestZScore:
		return baseline.StdDev, 0, nil
	case models.TestTTest:
		n := float64(baseline.SampleCount)
		if n == 0 {
			return 0, 0, fmt.Errorf("t-test baseline has no samples")
		}
		return baseline.StdDev / math.Sqrt(n), n - 1, nil
	default:
		return 0, 0, fmt.Errorf("unknown statistical test %q", test)
	}
}

func sideOffset(test models.TestKind, p, df, scale float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, fmt.Errorf("tail probability %v outside (0, 1)", p)
	}
	if scale == 0 {
		return 0, nil
	}
	critical, err := CriticalValue(test, p, df)
	if err != nil {
		return 0, err
	}
	return critical * scale, nil
}
