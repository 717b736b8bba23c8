package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TestKind selects the statistical model used to derive bounds.
type TestKind string

const (
	TestZScore TestKind = "z"
	TestTTest  TestKind = "t"
)

// ParseTestKind accepts "z"/"z_score" and "t"/"t_test".
func ParseTestKind(value string) (TestKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "z", "z_score", "zscore":
		return TestZScore, nil
	case "t", "t_test", "ttest":
		return TestTTest, nil
	}
	return "", fmt.Errorf("unknown statistical test %q", value)
}

// ThresholdPolicy configures regression checking for one (branch, testbed, kind).
// LeftSide and RightSide are one-sided tail probabilities for the lower and
// upper bound; a nil side is not checked.
type ThresholdPolicy struct {
	ID            string        `json:"uuid"`
	Branch        string        `json:"branch" validate:"required"`
	Testbed       string        `json:"testbed" validate:"required"`
	Kind          MetricKind    `json:"kind" validate:"required,oneof=latency throughput compute memory storage"`
	Test          TestKind      `json:"test" validate:"required,oneof=z t"`
	MinSampleSize uint32        `json:"min_sample_size" validate:"gt=0"`
	MaxSampleSize uint32        `json:"max_sample_size" validate:"gt=0,gtefield=MinSampleSize"`
	Window        time.Duration `json:"window" validate:"gt=0"`
	LeftSide      *float64      `json:"left_side,omitempty" validate:"omitempty,gt=0,lt=1"`
	RightSide     *float64      `json:"right_side,omitempty" validate:"omitempty,gt=0,lt=1"`
}

// ErrInvalidPolicy matches every *PolicyError via errors.Is.
var ErrInvalidPolicy = errors.New("invalid threshold policy")

// PolicyError names the offending field of a rejected policy.
type PolicyError struct {
	Field  string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("invalid threshold policy: %s %s", e.Field, e.Reason)
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrInvalidPolicy
}

var modelValidate *validator.Validate

func init() {
	modelValidate = validator.New()
	modelValidate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate enforces the policy invariants. It returns a *PolicyError.
func (p ThresholdPolicy) Validate() error {
	if err := modelValidate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return policyErrorFrom(fieldErrs[0])
		}
		return &PolicyError{Field: "policy", Reason: err.Error()}
	}
	if p.LeftSide == nil && p.RightSide == nil {
		return &PolicyError{Field: "left_side/right_side", Reason: "at least one side must be set"}
	}
	return nil
}

func policyErrorFrom(fe validator.FieldError) *PolicyError {
	reason := fe.Tag()
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "oneof":
		reason = fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gt":
		reason = fmt.Sprintf("must be greater than %s", fe.Param())
	case "lt":
		reason = fmt.Sprintf("must be less than %s", fe.Param())
	case "gtefield":
		reason = "must not be less than min_sample_size"
	}
	return &PolicyError{Field: fe.Field(), Reason: reason}
}

// Float64 returns a pointer to v, for populating optional sides.
func Float64(v float64) *float64 {
	return &v
}
