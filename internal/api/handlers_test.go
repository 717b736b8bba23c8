package api

import (
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/benchguard/benchguard/internal/models"
)

func mustNewStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

var defaults = models.ThresholdPolicy{MinSampleSize: 2, MaxSampleSize: 64, Window: 720 * time.Hour}

func TestFromEvaluateRequest(t *testing.T) {
	sample, key, err := FromEvaluateRequest(mustNewStruct(t, map[string]any{
		"branch":    "main",
		"testbed":   "ci",
		"benchmark": "bench/sort",
		"kind":      "throughput",
		"value":     42.5,
	}))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if key.Kind != models.KindThroughput || key.Benchmark != "bench/sort" || sample.Value != 42.5 {
		t.Fatalf("unexpected mapping: %+v %+v", key, sample)
	}

	if _, _, err := FromEvaluateRequest(mustNewStruct(t, map[string]any{"branch": "main", "testbed": "ci", "kind": "latency"})); err == nil {
		t.Fatalf("expected error for missing benchmark")
	}
	if _, _, err := FromEvaluateRequest(mustNewStruct(t, map[string]any{
		"branch": "main", "testbed": "ci", "benchmark": "b", "kind": "power",
	})); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, _, err := FromEvaluateRequest(nil); err == nil {
		t.Fatalf("expected error for nil request")
	}
}

func TestFromStructRejectsUnknownFields(t *testing.T) {
	var req EvaluateRequest
	err := FromStruct(mustNewStruct(t, map[string]any{"branch": "main", "colour": "red"}), &req)
	if err == nil || !strings.Contains(err.Error(), "colour") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestFromThresholdRequestAppliesDefaults(t *testing.T) {
	policy, err := FromThresholdRequest(mustNewStruct(t, map[string]any{
		"branch":    "main",
		"testbed":   "ci",
		"kind":      "latency",
		"test":      "t_test",
		"left_side": 0.1,
	}), defaults)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if policy.Test != models.TestTTest || policy.MinSampleSize != 2 || policy.MaxSampleSize != 64 || policy.Window != 720*time.Hour {
		t.Fatalf("defaults not applied: %+v", policy)
	}
	if policy.LeftSide == nil || *policy.LeftSide != 0.1 || policy.RightSide != nil {
		t.Fatalf("unexpected sides: %+v", policy)
	}
}

func TestThresholdWindowForms(t *testing.T) {
	cases := []struct {
		window any
		want   time.Duration
	}{
		{"168h", 168 * time.Hour},
		{float64(3600), time.Hour},
		{"90", 90 * time.Second},
	}
	for _, tc := range cases {
		policy, err := FromThresholdRequest(mustNewStruct(t, map[string]any{
			"branch": "main", "testbed": "ci", "kind": "memory", "test": "z",
			"window": tc.window, "right_side": 0.05, "min_sample_size": 3, "max_sample_size": 8,
		}), defaults)
		if err != nil {
			t.Fatalf("window %v: %v", tc.window, err)
		}
		if policy.Window != tc.want || policy.MinSampleSize != 3 || policy.MaxSampleSize != 8 {
			t.Fatalf("window %v: unexpected policy %+v", tc.window, policy)
		}
	}

	if _, err := FromThresholdRequest(mustNewStruct(t, map[string]any{
		"branch": "main", "testbed": "ci", "kind": "memory", "test": "z", "window": "fortnight",
	}), defaults); err == nil {
		t.Fatalf("expected error for malformed window")
	}
	if _, err := FromThresholdRequest(mustNewStruct(t, map[string]any{
		"branch": "main", "testbed": "ci", "kind": "memory", "test": "anova",
	}), defaults); err == nil {
		t.Fatalf("expected error for unknown test")
	}
}

func TestThresholdMessageRoundTrip(t *testing.T) {
	right := 0.05
	policy := models.ThresholdPolicy{
		ID: "threshold-1", Branch: "main", Testbed: "ci", Kind: models.KindStorage, Test: models.TestZScore,
		MinSampleSize: 2, MaxSampleSize: 10, Window: 48 * time.Hour, RightSide: &right,
	}
	encoded, err := ToStruct(ToThresholdMessage(policy))
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	if got := encoded.GetFields()["window"].GetStringValue(); got != "48h0m0s" {
		t.Fatalf("unexpected window encoding %q", got)
	}
	if _, ok := encoded.GetFields()["left_side"]; ok {
		t.Fatalf("unset side must be omitted")
	}

	decoded, err := FromThresholdRequest(encoded, models.ThresholdPolicy{})
	if err != nil {
		t.Fatalf("FromThresholdRequest: %v", err)
	}
	if decoded.ID != policy.ID || decoded.Window != policy.Window || *decoded.RightSide != right {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestFromGetThresholdRequest(t *testing.T) {
	id, err := FromGetThresholdRequest(mustNewStruct(t, map[string]any{"uuid": "abc"}))
	if err != nil || id != "abc" {
		t.Fatalf("unexpected result %q %v", id, err)
	}
	if _, err := FromGetThresholdRequest(mustNewStruct(t, map[string]any{})); err == nil {
		t.Fatalf("expected error for missing uuid")
	}
}

func TestFromListAlertsRequest(t *testing.T) {
	req, err := FromListAlertsRequest(mustNewStruct(t, map[string]any{
		"branch": "main",
		"kind":   "compute",
		"since":  "2026-05-10T08:00:00Z",
		"limit":  5,
	}))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.Branch != "main" || req.Kind != models.KindCompute || req.Limit != 5 {
		t.Fatalf("unexpected filter: %+v", req)
	}
	if !req.Since.Equal(time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected since: %s", req.Since)
	}

	empty, err := FromListAlertsRequest(nil)
	if err != nil || empty != (models.ListAlertsRequest{}) {
		t.Fatalf("nil request should list everything: %+v %v", empty, err)
	}
	if _, err := FromListAlertsRequest(mustNewStruct(t, map[string]any{"since": "yesterday"})); err == nil {
		t.Fatalf("expected error for malformed since")
	}
}

func TestToStructRendersVerdict(t *testing.T) {
	upper := 11.5
	out, err := ToStruct(models.Verdict{
		Outcome:  models.OutcomeRegressed,
		Side:     models.SideUpper,
		Bound:    upper,
		Value:    12,
		Boundary: &models.Boundary{Upper: &upper},
	})
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	fields := out.GetFields()
	if fields["outcome"].GetStringValue() != "regressed" || fields["side"].GetStringValue() != "upper" {
		t.Fatalf("unexpected encoding: %v", fields)
	}
	if fields["boundary"].GetStructValue().GetFields()["upper"].GetNumberValue() != upper {
		t.Fatalf("boundary not encoded: %v", fields["boundary"])
	}

	zero, err := ToStruct(models.Verdict{Outcome: models.OutcomeRegressed, Side: models.SideUpper, Bound: 0, Value: 1})
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	if bound, ok := zero.GetFields()["bound"]; !ok || bound.GetNumberValue() != 0 {
		t.Fatalf("a zero bound must still be encoded: %v", zero.GetFields())
	}

	if _, err := ToStruct([]int{1}); err == nil {
		t.Fatalf("expected error for non-object payload")
	}
}

func TestHealthResponse(t *testing.T) {
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	resp, err := HealthResponse("SERVING", now)
	if err != nil {
		t.Fatalf("HealthResponse: %v", err)
	}
	if resp.GetFields()["status"].GetStringValue() != "SERVING" || resp.GetFields()["time"].GetStringValue() != "2026-05-10T08:00:00Z" {
		t.Fatalf("unexpected health response: %v", resp)
	}
}
