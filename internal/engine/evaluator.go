package engine

import (
	"fmt"

	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/utils"
)

// Classify compares value against boundary. Bounds are exclusive: a value
// equal to a bound is normal.
func Classify(value float64, baseline *models.Baseline, boundary models.Boundary) (models.Verdict, error) {
	if baseline == nil {
		return models.Verdict{Outcome: models.OutcomeNoBaseline, Value: value}, nil
	}

	verdict := models.Verdict{
		Outcome:  models.OutcomeNormal,
		Value:    value,
		Baseline: baseline,
		Boundary: &boundary,
	}

	belowLower := boundary.Lower != nil && value < *boundary.Lower
	aboveUpper := boundary.Upper != nil && value > *boundary.Upper
	switch {
	case belowLower && aboveUpper:
		return models.Verdict{}, utils.ConfigError("engine.Classify", "conflicting bounds",
			fmt.Errorf("%w: value %v is below %v and above %v", ErrInvertedBoundary, value, *boundary.Lower, *boundary.Upper))
	case belowLower:
		verdict.Outcome = models.OutcomeRegressed
		verdict.Side = models.SideLower
		verdict.Bound = *boundary.Lower
	case aboveUpper:
		verdict.Outcome = models.OutcomeRegressed
		verdict.Side = models.SideUpper
		verdict.Bound = *boundary.Upper
	}
	return verdict, nil
}

// EvaluateHistory runs the full computation for value against an explicit,
// newest-first history. Values beyond the policy's max_sample_size are ignored.
func EvaluateHistory(value float64, history []float64, policy models.ThresholdPolicy) (models.Verdict, error) {
	if err := policy.Validate(); err != nil {
		return models.Verdict{}, utils.ConfigError("engine.EvaluateHistory", "threshold "+policy.ID, err)
	}

	if uint64(len(history)) > uint64(policy.MaxSampleSize) {
		history = history[:policy.MaxSampleSize]
	}

	baseline, ok := ComputeBaseline(history, policy.MinSampleSize)
	if !ok {
		return models.Verdict{Outcome: models.OutcomeNoBaseline, Value: value, PolicyID: policy.ID}, nil
	}

	boundary, err := CalculateBoundary(policy, *baseline)
	if err != nil {
		return models.Verdict{}, err
	}

	verdict, err := Classify(value, baseline, boundary)
	if err != nil {
		return models.Verdict{}, err
	}
	verdict.PolicyID = policy.ID
	return verdict, nil
}
