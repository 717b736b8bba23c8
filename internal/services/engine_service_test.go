package services

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/benchguard/benchguard/internal/alerts"
	"github.com/benchguard/benchguard/internal/api"
	"github.com/benchguard/benchguard/internal/cache"
	"github.com/benchguard/benchguard/internal/config"
	"github.com/benchguard/benchguard/internal/engine"
	"github.com/benchguard/benchguard/internal/grpc/enginev1"
	"github.com/benchguard/benchguard/internal/ingest"
	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/repo"
	"github.com/benchguard/benchguard/internal/utils"
)

var serviceBase = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

var testDefaults = models.ThresholdPolicy{
	MinSampleSize: 3,
	MaxSampleSize: 64,
	Window:        30 * 24 * time.Hour,
}

func newTestService(t *testing.T) *EngineService {
	t.Helper()
	store := repo.NewMemoryStore()
	eng := engine.NewEngine(nil, store, store, engine.WithClock(func() time.Time { return serviceBase.Add(24 * time.Hour) }))
	sink := alerts.NewSink(nil, store, cache.NewMemoryProvider(), time.Hour)
	ing := ingest.NewIngestor(nil, store, eng, sink, 2)
	svc := NewEngineService(nil, Dependencies{
		Evaluator:  eng,
		Reports:    ing,
		Thresholds: store,
		Alerts:     store,
		Defaults:   testDefaults,
	})
	return svc
}

func dialService(t *testing.T, svc enginev1.RegressionEngineServer) enginev1.RegressionEngineClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := api.NewServerOnListener(lis, config.ServerConfig{GracefulTimeout: time.Second}, svc)
	go func() {
		_ = server.Start()
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return enginev1.NewRegressionEngineClient(conn)
}

func mustStruct(t *testing.T, v any) *structpb.Struct {
	t.Helper()
	s, err := api.ToStruct(v)
	if err != nil {
		t.Fatalf("ToStruct: %v", err)
	}
	return s
}

func mustDecode(t *testing.T, s *structpb.Struct, v any) {
	t.Helper()
	if err := api.FromStruct(s, v); err != nil {
		t.Fatalf("FromStruct: %v", err)
	}
}

func report(version uint32, start time.Time, duration uint64) models.Report {
	return models.Report{
		Branch:        "main",
		Testbed:       "ci-linux",
		VersionNumber: version,
		StartTime:     start,
		EndTime:       start.Add(time.Minute),
		Results: []models.BenchmarkResult{{
			Benchmark: "bench/json",
			Metrics:   models.BenchmarkMetrics{Latency: &models.Latency{Duration: duration}},
		}},
	}
}

func TestRoundTripOverGRPC(t *testing.T) {
	svc := newTestService(t)
	client := dialService(t, svc)
	ctx := context.Background()

	putResp, err := client.PutThreshold(ctx, mustStruct(t, map[string]any{
		"branch":     "main",
		"testbed":    "ci-linux",
		"kind":       "latency",
		"test":       "z_score",
		"window":     "720h",
		"right_side": 0.05,
	}))
	if err != nil {
		t.Fatalf("PutThreshold: %v", err)
	}
	var threshold api.ThresholdMessage
	mustDecode(t, putResp, &threshold)
	if threshold.ID == "" || threshold.MinSampleSize != 3 || threshold.MaxSampleSize != 64 || threshold.Window != "720h0m0s" {
		t.Fatalf("unexpected stored threshold: %+v", threshold)
	}

	getResp, err := client.GetThreshold(ctx, mustStruct(t, map[string]any{"uuid": threshold.ID}))
	if err != nil {
		t.Fatalf("GetThreshold: %v", err)
	}
	var fetched api.ThresholdMessage
	mustDecode(t, getResp, &fetched)
	if fetched.Test != "z" || fetched.RightSide == nil || *fetched.RightSide != 0.05 {
		t.Fatalf("unexpected fetched threshold: %+v", fetched)
	}

	for v := uint32(1); v <= 3; v++ {
		if _, err := client.SubmitReport(ctx, mustStruct(t, report(v, serviceBase.Add(time.Duration(v)*time.Hour), 1000))); err != nil {
			t.Fatalf("SubmitReport v%d: %v", v, err)
		}
	}

	submitResp, err := client.SubmitReport(ctx, mustStruct(t, report(4, serviceBase.Add(4*time.Hour), 2000)))
	if err != nil {
		t.Fatalf("SubmitReport: %v", err)
	}
	var result models.ReportResult
	mustDecode(t, submitResp, &result)
	if len(result.Samples) != 1 || !result.Samples[0].Verdict.Regressed() || result.Samples[0].AlertID == "" {
		t.Fatalf("expected regression with alert, got %+v", result)
	}

	evalResp, err := client.Evaluate(ctx, mustStruct(t, api.EvaluateRequest{
		Branch: "main", Testbed: "ci-linux", Benchmark: "bench/json", Kind: "latency", Value: 5000,
	}))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	var verdict models.Verdict
	mustDecode(t, evalResp, &verdict)
	if !verdict.Regressed() || verdict.Side != models.SideUpper || verdict.Baseline == nil || verdict.Baseline.SampleCount != 4 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}

	alertsResp, err := client.ListAlerts(ctx, mustStruct(t, map[string]any{"branch": "main", "kind": "latency"}))
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	var listed api.ListAlertsResponse
	mustDecode(t, alertsResp, &listed)
	if len(listed.Alerts) != 1 || listed.Alerts[0].ID != result.Samples[0].AlertID {
		t.Fatalf("Evaluate must not emit alerts; expected one stored alert, got %+v", listed.Alerts)
	}
	if listed.Alerts[0].Key.Benchmark != "bench/json" {
		t.Fatalf("alert series not populated: %+v", listed.Alerts[0])
	}

	health, err := client.HealthCheck(ctx, &structpb.Struct{})
	if err != nil || health.GetFields()["status"].GetStringValue() != "SERVING" {
		t.Fatalf("HealthCheck: %v %v", health, err)
	}
}

func TestEvaluateUncheckedWithoutThreshold(t *testing.T) {
	svc := newTestService(t)
	resp, err := svc.Evaluate(context.Background(), mustStruct(t, api.EvaluateRequest{
		Branch: "main", Testbed: "ci-linux", Benchmark: "bench/json", Kind: "memory", Value: 1,
	}))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	var verdict models.Verdict
	mustDecode(t, resp, &verdict)
	if verdict.Outcome != models.OutcomeUnchecked {
		t.Fatalf("expected unchecked, got %+v", verdict)
	}
}

func TestErrorCodes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetThreshold(ctx, mustStruct(t, map[string]any{"uuid": "missing"}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = svc.PutThreshold(ctx, mustStruct(t, map[string]any{
		"branch": "main", "testbed": "ci", "kind": "latency", "test": "t",
	}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for threshold without sides, got %v", err)
	}

	_, err = svc.Evaluate(ctx, mustStruct(t, map[string]any{"branch": "main", "unknown": true}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for unknown field, got %v", err)
	}

	_, err = svc.SubmitReport(ctx, mustStruct(t, map[string]any{"branch": "main"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for incomplete report, got %v", err)
	}

	bare := NewEngineService(nil, Dependencies{})
	if _, err := bare.ListAlerts(ctx, &structpb.Struct{}); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
}

type failingEvaluator struct {
	err error
}

func (f failingEvaluator) Evaluate(context.Context, models.MetricSample, models.SeriesKey) (models.Verdict, error) {
	return models.Verdict{}, f.err
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{utils.ConfigError("op", "bad threshold", nil), codes.InvalidArgument},
		{utils.NotFoundError("op", "missing"), codes.NotFound},
		{utils.DataAccessError("op", "locked", errors.New("busy")), codes.Unavailable},
		{errors.New("boom"), codes.Internal},
		{utils.DataAccessError("op", "history", context.Canceled), codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
	}
	for _, tc := range cases {
		if got := status.Code(statusFromError(tc.err)); got != tc.want {
			t.Fatalf("%v: expected %s, got %s", tc.err, tc.want, got)
		}
	}

	svc := NewEngineService(nil, Dependencies{Evaluator: failingEvaluator{err: utils.DataAccessError("repo.History", "query", errors.New("disk"))}})
	_, err := svc.Evaluate(context.Background(), mustStruct(t, api.EvaluateRequest{
		Branch: "main", Testbed: "ci", Benchmark: "b", Kind: "latency", Value: 1,
	}))
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected unavailable for store failure, got %v", err)
	}
}
