package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/benchguard/benchguard/internal/alerts"
	"github.com/benchguard/benchguard/internal/extractors"
	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/utils"
)

// Evaluator classifies one sample against its series history.
type Evaluator interface {
	Evaluate(ctx context.Context, sample models.MetricSample, key models.SeriesKey) (models.Verdict, error)
}

// ReportStore persists reports and the bounds their samples were checked against.
type ReportStore interface {
	InsertReport(ctx context.Context, report models.Report, samples []models.ReportSample) error
	UpdateBounds(ctx context.Context, sampleID string, boundary models.Boundary) error
}

// AlertSink receives alerts for regressed samples.
type AlertSink interface {
	Emit(ctx context.Context, alert models.Alert) (models.Alert, bool, error)
}

// Ingestor stores benchmark reports and evaluates every sample they carry.
type Ingestor struct {
	logger      *slog.Logger
	store       ReportStore
	evaluator   Evaluator
	sink        AlertSink
	extractor   *extractors.MetricExtractor
	concurrency int
}

// NewIngestor wires the ingestion pipeline. concurrency bounds parallel
// evaluations per report; values below one mean one.
func NewIngestor(logger *slog.Logger, store ReportStore, evaluator Evaluator, sink AlertSink, concurrency int) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Ingestor{
		logger:      logger,
		store:       store,
		evaluator:   evaluator,
		sink:        sink,
		extractor:   extractors.NewMetricExtractor(),
		concurrency: concurrency,
	}
}

// SubmitReport stores report and evaluates its samples. Only validation and
// storage failures fail the call; per-sample evaluation or alerting errors
// are logged and reported on the sample result, and the stored metrics stay.
func (i *Ingestor) SubmitReport(ctx context.Context, report models.Report) (models.ReportResult, error) {
	if err := report.Validate(); err != nil {
		return models.ReportResult{}, utils.ConfigError("ingest.SubmitReport", "report rejected", err)
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	samples, err := i.extractor.Extract(report)
	if err != nil {
		return models.ReportResult{}, utils.ConfigError("ingest.SubmitReport", "extract metrics", err)
	}
	if err := i.store.InsertReport(ctx, report, samples); err != nil {
		return models.ReportResult{}, err
	}

	start := time.Now()
	results := make([]models.SampleResult, len(samples))
	var g errgroup.Group
	g.SetLimit(i.concurrency)
	for idx, rs := range samples {
		g.Go(func() error {
			results[idx] = i.processSample(ctx, rs)
			return nil
		})
	}
	_ = g.Wait()

	regressed := 0
	failed := 0
	for _, r := range results {
		if r.Verdict.Regressed() {
			regressed++
		}
		if r.Error != "" {
			failed++
		}
	}
	i.logger.Info("report processed",
		slog.String("report", report.ID),
		slog.String("branch", report.Branch),
		slog.String("testbed", report.Testbed),
		slog.Int("samples", len(samples)),
		slog.Int("regressed", regressed),
		slog.Int("failed", failed),
		slog.Duration("took", time.Since(start)),
	)

	return models.ReportResult{ReportID: report.ID, Samples: results}, nil
}

func (i *Ingestor) processSample(ctx context.Context, rs models.ReportSample) models.SampleResult {
	result := models.SampleResult{
		SampleID:  rs.Sample.ID,
		Benchmark: rs.Key.Benchmark,
		Kind:      rs.Key.Kind,
		Iteration: rs.Sample.Iteration,
	}
	var problems []string

	verdict, err := i.evaluator.Evaluate(ctx, rs.Sample, rs.Key)
	if err != nil {
		i.logger.Error("sample evaluation failed",
			slog.String("series", rs.Key.String()),
			slog.String("sample", rs.Sample.ID),
			slog.String("kind", string(utils.KindOf(err))),
			slog.Any("error", err),
		)
		result.Error = err.Error()
		return result
	}
	result.Verdict = verdict

	if verdict.Boundary != nil {
		if err := i.store.UpdateBounds(ctx, rs.Sample.ID, *verdict.Boundary); err != nil {
			i.logger.Warn("storing sample bounds failed", slog.String("sample", rs.Sample.ID), slog.Any("error", err))
			problems = append(problems, err.Error())
		}
	}

	if verdict.Regressed() && i.sink != nil {
		alert, err := alerts.FromVerdict(rs.Key, rs.Sample.ID, verdict)
		if err == nil {
			alert, _, err = i.sink.Emit(ctx, alert)
		}
		if err != nil {
			i.logger.Error("alert emission failed", slog.String("sample", rs.Sample.ID), slog.Any("error", err))
			problems = append(problems, err.Error())
		} else {
			result.AlertID = alert.ID
		}
	}

	result.Error = strings.Join(problems, "; ")
	return result
}
