package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/benchguard/benchguard/internal/api"
	"github.com/benchguard/benchguard/internal/grpc/enginev1"
	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/utils"
)

// Evaluator classifies a sample against its series history.
type Evaluator interface {
	Evaluate(ctx context.Context, sample models.MetricSample, key models.SeriesKey) (models.Verdict, error)
}

// ReportSubmitter stores and evaluates benchmark reports.
type ReportSubmitter interface {
	SubmitReport(ctx context.Context, report models.Report) (models.ReportResult, error)
}

// ThresholdStore manages thresholds.
type ThresholdStore interface {
	PutPolicy(ctx context.Context, policy models.ThresholdPolicy) (models.ThresholdPolicy, error)
	GetPolicy(ctx context.Context, id string) (models.ThresholdPolicy, error)
}

// AlertLister lists stored alerts.
type AlertLister interface {
	ListAlerts(ctx context.Context, req models.ListAlertsRequest) ([]models.Alert, error)
}

// EngineService implements the RegressionEngine gRPC service.
type EngineService struct {
	enginev1.UnimplementedRegressionEngineServer

	logger     *slog.Logger
	evaluator  Evaluator
	reports    ReportSubmitter
	thresholds ThresholdStore
	alerts     AlertLister
	defaults   models.ThresholdPolicy
	latencies  *utils.LatencyTracker
}

// Dependencies groups the collaborators of EngineService. Nil members make
// the corresponding methods fail with FailedPrecondition.
type Dependencies struct {
	Evaluator  Evaluator
	Reports    ReportSubmitter
	Thresholds ThresholdStore
	Alerts     AlertLister
	// Defaults supplies sample sizes and window for thresholds that omit them.
	Defaults models.ThresholdPolicy
}

// NewEngineService constructs the service facade.
func NewEngineService(logger *slog.Logger, deps Dependencies) *EngineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EngineService{
		logger:     logger,
		evaluator:  deps.Evaluator,
		reports:    deps.Reports,
		thresholds: deps.Thresholds,
		alerts:     deps.Alerts,
		defaults:   deps.Defaults,
		latencies:  utils.NewLatencyTracker(1024),
	}
}

// Evaluate returns the verdict for an ad hoc value. It neither stores the
// value nor emits alerts.
func (s *EngineService) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.evaluator == nil {
		return nil, status.Error(codes.FailedPrecondition, "evaluator not configured")
	}
	sample, key, err := api.FromEvaluateRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	start := time.Now()
	verdict, err := s.evaluator.Evaluate(ctx, sample, key)
	if err != nil {
		s.logger.Error("evaluate failed", slog.String("series", key.String()), slog.Any("error", err))
		return nil, statusFromError(err)
	}
	s.observeLatency(time.Since(start))

	return encode(verdict)
}

// SubmitReport stores a report and returns the per-sample verdicts.
func (s *EngineService) SubmitReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.reports == nil {
		return nil, status.Error(codes.FailedPrecondition, "report ingestion not configured")
	}
	report, err := api.FromReportRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.reports.SubmitReport(ctx, report)
	if err != nil {
		s.logger.Error("submit report failed", slog.String("branch", report.Branch), slog.Any("error", err))
		return nil, statusFromError(err)
	}
	return encode(result)
}

// PutThreshold creates or replaces the threshold of a (branch, testbed, kind).
func (s *EngineService) PutThreshold(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.thresholds == nil {
		return nil, status.Error(codes.FailedPrecondition, "threshold store not configured")
	}
	policy, err := api.FromThresholdRequest(req, s.defaults)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	stored, err := s.thresholds.PutPolicy(ctx, policy)
	if err != nil {
		return nil, statusFromError(err)
	}
	s.logger.Info("threshold stored",
		slog.String("threshold", stored.ID),
		slog.String("branch", stored.Branch),
		slog.String("testbed", stored.Testbed),
		slog.String("kind", string(stored.Kind)),
	)
	return encode(api.ToThresholdMessage(stored))
}

// GetThreshold returns a threshold by ID.
func (s *EngineService) GetThreshold(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.thresholds == nil {
		return nil, status.Error(codes.FailedPrecondition, "threshold store not configured")
	}
	id, err := api.FromGetThresholdRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	policy, err := s.thresholds.GetPolicy(ctx, id)
	if err != nil {
		return nil, statusFromError(err)
	}
	return encode(api.ToThresholdMessage(policy))
}

// ListAlerts returns stored alerts, newest first.
func (s *EngineService) ListAlerts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.alerts == nil {
		return nil, status.Error(codes.FailedPrecondition, "alert store not configured")
	}
	filter, err := api.FromListAlertsRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	alerts, err := s.alerts.ListAlerts(ctx, filter)
	if err != nil {
		s.logger.Error("list alerts failed", slog.Any("error", err))
		return nil, statusFromError(err)
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return encode(api.ListAlertsResponse{Alerts: alerts})
}

// HealthCheck returns the current health state.
func (s *EngineService) HealthCheck(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	resp, err := api.HealthResponse("SERVING", time.Now())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// LatencyP95 returns the current p95 evaluation latency.
func (s *EngineService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func (s *EngineService) observeLatency(d time.Duration) {
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= 100 && count%100 == 0 {
		s.logger.Info("evaluation latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
}

func encode(v any) (*structpb.Struct, error) {
	out, err := api.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// statusFromError maps error kinds onto gRPC codes.
func statusFromError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	switch utils.KindOf(err) {
	case utils.KindConfig:
		return status.Error(codes.InvalidArgument, err.Error())
	case utils.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case utils.KindDataAccess:
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
