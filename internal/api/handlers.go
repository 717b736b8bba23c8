package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/utils"
)

// EvaluateRequest asks for a verdict on a single value.
type EvaluateRequest struct {
	SampleID  string  `json:"uuid,omitempty"`
	Branch    string  `json:"branch"`
	Testbed   string  `json:"testbed"`
	Benchmark string  `json:"benchmark"`
	Kind      string  `json:"kind"`
	Value     float64 `json:"value"`
}

// ThresholdMessage is the wire form of a threshold. Window accepts a Go
// duration or a number of seconds and is returned as a Go duration.
type ThresholdMessage struct {
	ID            string   `json:"uuid,omitempty"`
	Branch        string   `json:"branch"`
	Testbed       string   `json:"testbed"`
	Kind          string   `json:"kind"`
	Test          string   `json:"test"`
	MinSampleSize uint32   `json:"min_sample_size,omitempty"`
	MaxSampleSize uint32   `json:"max_sample_size,omitempty"`
	Window        Window   `json:"window,omitempty"`
	LeftSide      *float64 `json:"left_side,omitempty"`
	RightSide     *float64 `json:"right_side,omitempty"`
}

// Window decodes from either a JSON number of seconds or a duration string.
type Window string

// UnmarshalJSON accepts 2592000 or "720h".
func (w *Window) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = Window(s)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("window must be a duration string or seconds: %w", err)
	}
	*w = Window(strconv.FormatFloat(secs, 'f', -1, 64))
	return nil
}

// GetThresholdRequest names a threshold by ID.
type GetThresholdRequest struct {
	ID string `json:"uuid"`
}

// ListAlertsMessage filters alerts; Since is RFC 3339.
type ListAlertsMessage struct {
	Branch    string `json:"branch,omitempty"`
	Testbed   string `json:"testbed,omitempty"`
	Benchmark string `json:"benchmark,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Since     string `json:"since,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ListAlertsResponse wraps stored alerts.
type ListAlertsResponse struct {
	Alerts []models.Alert `json:"alerts"`
}

// FromStruct decodes a Struct payload into v. Unknown fields are rejected.
func FromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return fmt.Errorf("request is nil")
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// ToStruct encodes v, which must marshal to a JSON object, as a Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// FromEvaluateRequest maps the request onto a sample and its series.
func FromEvaluateRequest(in *structpb.Struct) (models.MetricSample, models.SeriesKey, error) {
	var req EvaluateRequest
	if err := FromStruct(in, &req); err != nil {
		return models.MetricSample{}, models.SeriesKey{}, err
	}
	if req.Branch == "" || req.Testbed == "" || req.Benchmark == "" {
		return models.MetricSample{}, models.SeriesKey{}, fmt.Errorf("branch, testbed and benchmark are required")
	}
	kind, err := models.ParseMetricKind(req.Kind)
	if err != nil {
		return models.MetricSample{}, models.SeriesKey{}, err
	}
	key := models.SeriesKey{Branch: req.Branch, Testbed: req.Testbed, Benchmark: req.Benchmark, Kind: kind}
	return models.MetricSample{ID: req.SampleID, Value: req.Value}, key, nil
}

// FromReportRequest decodes a submitted report.
func FromReportRequest(in *structpb.Struct) (models.Report, error) {
	var report models.Report
	if err := FromStruct(in, &report); err != nil {
		return models.Report{}, err
	}
	return report, nil
}

// FromThresholdRequest decodes a threshold, filling unset sample sizes and
// window from defaults. The result is not validated.
func FromThresholdRequest(in *structpb.Struct, defaults models.ThresholdPolicy) (models.ThresholdPolicy, error) {
	var msg ThresholdMessage
	if err := FromStruct(in, &msg); err != nil {
		return models.ThresholdPolicy{}, err
	}
	kind, err := models.ParseMetricKind(msg.Kind)
	if err != nil {
		return models.ThresholdPolicy{}, err
	}
	test, err := models.ParseTestKind(msg.Test)
	if err != nil {
		return models.ThresholdPolicy{}, err
	}

	policy := models.ThresholdPolicy{
		ID:            msg.ID,
		Branch:        msg.Branch,
		Testbed:       msg.Testbed,
		Kind:          kind,
		Test:          test,
		MinSampleSize: msg.MinSampleSize,
		MaxSampleSize: msg.MaxSampleSize,
		Window:        defaults.Window,
		LeftSide:      msg.LeftSide,
		RightSide:     msg.RightSide,
	}
	if policy.MinSampleSize == 0 {
		policy.MinSampleSize = defaults.MinSampleSize
	}
	if policy.MaxSampleSize == 0 {
		policy.MaxSampleSize = defaults.MaxSampleSize
	}
	if strings.TrimSpace(string(msg.Window)) != "" {
		window, err := utils.ParseWindow(string(msg.Window))
		if err != nil {
			return models.ThresholdPolicy{}, err
		}
		policy.Window = window
	}
	return policy, nil
}

// ToThresholdMessage renders a threshold for the wire.
func ToThresholdMessage(policy models.ThresholdPolicy) ThresholdMessage {
	return ThresholdMessage{
		ID:            policy.ID,
		Branch:        policy.Branch,
		Testbed:       policy.Testbed,
		Kind:          string(policy.Kind),
		Test:          string(policy.Test),
		MinSampleSize: policy.MinSampleSize,
		MaxSampleSize: policy.MaxSampleSize,
		Window:        Window(policy.Window.String()),
		LeftSide:      policy.LeftSide,
		RightSide:     policy.RightSide,
	}
}

// FromGetThresholdRequest extracts the requested threshold ID.
func FromGetThresholdRequest(in *structpb.Struct) (string, error) {
	var req GetThresholdRequest
	if err := FromStruct(in, &req); err != nil {
		return "", err
	}
	if req.ID == "" {
		return "", fmt.Errorf("uuid is required")
	}
	return req.ID, nil
}

// FromListAlertsRequest maps alert filters onto the domain request.
func FromListAlertsRequest(in *structpb.Struct) (models.ListAlertsRequest, error) {
	var msg ListAlertsMessage
	if in != nil {
		if err := FromStruct(in, &msg); err != nil {
			return models.ListAlertsRequest{}, err
		}
	}
	req := models.ListAlertsRequest{
		Branch:    msg.Branch,
		Testbed:   msg.Testbed,
		Benchmark: msg.Benchmark,
		Limit:     msg.Limit,
	}
	if msg.Kind != "" {
		kind, err := models.ParseMetricKind(msg.Kind)
		if err != nil {
			return models.ListAlertsRequest{}, err
		}
		req.Kind = kind
	}
	if msg.Since != "" {
		since, err := utils.ParseRFC3339(msg.Since)
		if err != nil {
			return models.ListAlertsRequest{}, err
		}
		req.Since = since
	}
	return req, nil
}

// HealthResponse reports serving status and when it was observed.
func HealthResponse(status string, now time.Time) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"status": status,
		"time":   now.UTC().Format(time.RFC3339Nano),
	})
}
