package models

import (
	"errors"
	"testing"
	"time"
)

func validPolicy() ThresholdPolicy {
	return ThresholdPolicy{
		ID:            "threshold-1",
		Branch:        "main",
		Testbed:       "ci-linux",
		Kind:          KindLatency,
		Test:          TestZScore,
		MinSampleSize: 3,
		MaxSampleSize: 10,
		Window:        24 * time.Hour,
		RightSide:     Float64(0.05),
	}
}

func TestThresholdPolicyValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p *ThresholdPolicy)
		field  string
	}{
		{name: "valid", mutate: func(p *ThresholdPolicy) {}},
		{name: "both sides", mutate: func(p *ThresholdPolicy) { p.LeftSide = Float64(0.1) }},
		{name: "min greater than max", mutate: func(p *ThresholdPolicy) { p.MinSampleSize = 11 }, field: "max_sample_size"},
		{name: "zero min", mutate: func(p *ThresholdPolicy) { p.MinSampleSize = 0 }, field: "min_sample_size"},
		{name: "no sides", mutate: func(p *ThresholdPolicy) { p.RightSide = nil }, field: "left_side/right_side"},
		{name: "side at one", mutate: func(p *ThresholdPolicy) { p.RightSide = Float64(1) }, field: "right_side"},
		{name: "side at zero", mutate: func(p *ThresholdPolicy) { p.LeftSide = Float64(0) }, field: "left_side"},
		{name: "unknown test", mutate: func(p *ThresholdPolicy) { p.Test = "f" }, field: "test"},
		{name: "zero window", mutate: func(p *ThresholdPolicy) { p.Window = 0 }, field: "window"},
		{name: "missing branch", mutate: func(p *ThresholdPolicy) { p.Branch = "" }, field: "branch"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy := validPolicy()
			tc.mutate(&policy)
			err := policy.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid policy, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy, got %v", err)
			}
			var policyErr *PolicyError
			if !errors.As(err, &policyErr) {
				t.Fatalf("expected *PolicyError, got %T", err)
			}
			if policyErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q (%v)", tc.field, policyErr.Field, err)
			}
		})
	}
}

func TestParseKinds(t *testing.T) {
	if kind, err := ParseMetricKind(" Throughput "); err != nil || kind != KindThroughput {
		t.Fatalf("unexpected parse result: %v %v", kind, err)
	}
	if _, err := ParseMetricKind("energy"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if test, err := ParseTestKind("t_test"); err != nil || test != TestTTest {
		t.Fatalf("unexpected parse result: %v %v", test, err)
	}
}

func TestMetricSampleOrdering(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	older := MetricSample{VersionNumber: 3, StartTime: now, Iteration: 5}
	newerVersion := MetricSample{VersionNumber: 4, StartTime: now.Add(-time.Hour), Iteration: 0}
	newerStart := MetricSample{VersionNumber: 3, StartTime: now.Add(time.Second), Iteration: 0}
	newerIteration := MetricSample{VersionNumber: 3, StartTime: now, Iteration: 6}

	for name, s := range map[string]MetricSample{"version": newerVersion, "start": newerStart, "iteration": newerIteration} {
		if !s.NewerThan(older) {
			t.Fatalf("expected %s tie-break to win", name)
		}
		if older.NewerThan(s) {
			t.Fatalf("ordering not antisymmetric for %s", name)
		}
	}
}

func TestReportValidate(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	report := Report{
		Branch:    "main",
		Testbed:   "ci-linux",
		StartTime: start,
		EndTime:   start.Add(time.Minute),
		Results: []BenchmarkResult{{
			Benchmark: "bench_parse",
			Metrics:   BenchmarkMetrics{Latency: &Latency{Duration: 1200}},
		}},
	}
	if err := report.Validate(); err != nil {
		t.Fatalf("expected valid report, got %v", err)
	}

	report.EndTime = start.Add(-time.Second)
	if err := report.Validate(); err == nil {
		t.Fatalf("expected end before start to fail")
	}

	report.EndTime = start
	report.Results[0].Benchmark = ""
	if err := report.Validate(); err == nil {
		t.Fatalf("expected missing benchmark to fail")
	}
}
