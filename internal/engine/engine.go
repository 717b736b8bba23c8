package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/benchguard/benchguard/internal/metrics"
	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/utils"
)

// SeriesStore supplies metric history. Implementations must return at most
// q.Limit samples, newest first, with StartTime in [q.Since, q.Until), and
// must never include q.ExcludeID. The result must be a point-in-time read.
type SeriesStore interface {
	History(ctx context.Context, q models.HistoryQuery) ([]models.MetricSample, error)
}

// PolicyLookup resolves the active threshold of a series. A nil policy with a
// nil error means regression checking is not configured.
type PolicyLookup interface {
	LookupPolicy(ctx context.Context, branch, testbed string, kind models.MetricKind) (*models.ThresholdPolicy, error)
}

// Engine evaluates new samples against their series history.
type Engine struct {
	logger   *slog.Logger
	store    SeriesStore
	policies PolicyLookup
	now      func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the clock used to anchor history windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine constructs an Engine over the given collaborators.
func NewEngine(logger *slog.Logger, store SeriesStore, policies PolicyLookup, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:   logger,
		store:    store,
		policies: policies,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate classifies sample against the history of key under the series'
// active threshold. The history window is [now-window, now) and excludes the
// sample itself. Store failures abort the evaluation and are never retried here.
func (e *Engine) Evaluate(ctx context.Context, sample models.MetricSample, key models.SeriesKey) (models.Verdict, error) {
	start := time.Now()
	verdict, err := e.evaluate(ctx, sample, key)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveEvaluation(duration, metrics.OutcomeError)
		return models.Verdict{}, err
	}
	metrics.ObserveEvaluation(duration, string(verdict.Outcome))

	e.logger.Debug("sample evaluated",
		slog.String("series", key.String()),
		slog.String("sample", sample.ID),
		slog.String("outcome", string(verdict.Outcome)),
		slog.Duration("took", duration),
	)
	return verdict, nil
}

func (e *Engine) evaluate(ctx context.Context, sample models.MetricSample, key models.SeriesKey) (models.Verdict, error) {
	if e.store == nil || e.policies == nil {
		return models.Verdict{}, utils.NewAppError("engine.Evaluate", "engine collaborators not configured", nil)
	}

	policy, err := e.policies.LookupPolicy(ctx, key.Branch, key.Testbed, key.Kind)
	if err != nil {
		return models.Verdict{}, utils.DataAccessError("engine.Evaluate", "resolve threshold for "+key.String(), err)
	}
	if policy == nil {
		return models.Verdict{Outcome: models.OutcomeUnchecked, Value: sample.Value}, nil
	}
	if err := policy.Validate(); err != nil {
		return models.Verdict{}, utils.ConfigError("engine.Evaluate", "threshold "+policy.ID, err)
	}

	now := e.now()
	history, err := e.store.History(ctx, models.HistoryQuery{
		Key:       key,
		Since:     now.Add(-policy.Window),
		Until:     now,
		Limit:     policy.MaxSampleSize,
		ExcludeID: sample.ID,
	})
	if err != nil {
		return models.Verdict{}, utils.DataAccessError("engine.Evaluate", "read history for "+key.String(), err)
	}
	metrics.ObserveHistory(len(history))

	return EvaluateHistory(sample.Value, models.Values(history), *policy)
}
