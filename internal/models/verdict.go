package models

// Baseline summarises the history a verdict was computed from.
type Baseline struct {
	Mean        float64 `json:"mean"`
	Variance    float64 `json:"variance"`
	StdDev      float64 `json:"std_dev"`
	SampleCount uint32  `json:"sample_count"`
}

// Boundary holds the acceptable limits; a nil side was not configured.
type Boundary struct {
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
}

// Outcome enumerates verdict variants.
type Outcome string

const (
	// OutcomeUnchecked means no threshold policy exists for the series.
	OutcomeUnchecked Outcome = "unchecked"
	// OutcomeNoBaseline means the history is shorter than min_sample_size.
	OutcomeNoBaseline Outcome = "no_baseline"
	OutcomeNormal     Outcome = "normal"
	OutcomeRegressed  Outcome = "regressed"
)

// Side names the bound a regressed value crossed.
type Side string

const (
	SideLower Side = "lower"
	SideUpper Side = "upper"
)

// Verdict is the result of evaluating one value. Side and Bound are
// meaningful only when Outcome is OutcomeRegressed, where a zero Bound is a
// real bound. Baseline and Boundary are set whenever a baseline could be
// computed.
type Verdict struct {
	Outcome  Outcome   `json:"outcome"`
	Side     Side      `json:"side,omitempty"`
	Bound    float64   `json:"bound"`
	Value    float64   `json:"value"`
	PolicyID string    `json:"threshold,omitempty"`
	Baseline *Baseline `json:"baseline,omitempty"`
	Boundary *Boundary `json:"boundary,omitempty"`
}

// Regressed reports whether the verdict should raise an alert.
func (v Verdict) Regressed() bool {
	return v.Outcome == OutcomeRegressed
}
