package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/benchguard/benchguard/internal/models"
)

// CriticalValue returns the one-sided critical value for tail probability p:
// the x with P(X > x) = p under the standard normal (z) or Student's t with
// df degrees of freedom (t). Smaller p always yields a larger value.
func CriticalValue(test models.TestKind, p float64, df float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, fmt.Errorf("tail probability %v outside (0, 1)", p)
	}

	// Quantile(p) is evaluated in the lower tail and mirrored, which keeps
	// precision for small p where 1-p would round.
	switch test {
	case models.TestZScore:
		return -distuv.UnitNormal.Quantile(p), nil
	case models.TestTTest:
		if !(df > 0) || math.IsInf(df, 0) {
			return 0, fmt.Errorf("t distribution needs positive degrees of freedom, got %v", df)
		}
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		return -dist.Quantile(p), nil
	default:
		return 0, fmt.Errorf("unknown statistical test %q", test)
	}
}
