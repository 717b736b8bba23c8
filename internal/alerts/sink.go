package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/benchguard/benchguard/internal/cache"
	"github.com/benchguard/benchguard/internal/metrics"
	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/utils"
)

// Store persists alerts at most once per (sample, threshold).
type Store interface {
	SaveAlert(ctx context.Context, alert models.Alert) (bool, error)
}

// Sink emits alerts for regressed verdicts. The cache claim suppresses
// repeats within one process; the store's uniqueness guarantees them across
// restarts and replicas.
type Sink struct {
	logger *slog.Logger
	store  Store
	cache  cache.Provider
	ttl    time.Duration
	now    func() time.Time
}

// NewSink constructs a Sink. A nil provider relies on the store alone.
func NewSink(logger *slog.Logger, store Store, provider cache.Provider, claimTTL time.Duration) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &Sink{
		logger: logger,
		store:  store,
		cache:  provider,
		ttl:    claimTTL,
		now:    time.Now,
	}
}

// FromVerdict builds the alert for a regressed verdict of a sample.
func FromVerdict(key models.SeriesKey, sampleID string, verdict models.Verdict) (models.Alert, error) {
	if !verdict.Regressed() {
		return models.Alert{}, fmt.Errorf("verdict %s does not raise an alert", verdict.Outcome)
	}
	return models.Alert{
		SampleID: sampleID,
		PolicyID: verdict.PolicyID,
		Key:      key,
		Side:     verdict.Side,
		Bound:    verdict.Bound,
		Value:    verdict.Value,
	}, nil
}

// Emit stores alert unless it was already emitted. It returns the alert with
// its ID and creation time assigned and whether this call emitted it. A
// suppressed duplicate comes back with an empty ID since nothing was stored.
func (s *Sink) Emit(ctx context.Context, alert models.Alert) (models.Alert, bool, error) {
	if alert.SampleID == "" || alert.PolicyID == "" {
		return models.Alert{}, false, utils.ConfigError("alerts.Emit", "alert needs sample and threshold ids", nil)
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = s.now().UTC()
	}

	claim := claimKey(alert.SampleID, alert.PolicyID)
	claimed, err := s.cache.SetNX(ctx, claim, []byte(alert.ID), s.ttl)
	if err != nil {
		s.logger.Warn("alert claim failed, falling back to store", slog.String("key", claim), slog.Any("error", err))
		claimed = true
	}
	if !claimed {
		return s.duplicate(alert), false, nil
	}

	inserted, err := s.store.SaveAlert(ctx, alert)
	if err != nil {
		// Release the claim so a later attempt can persist the alert.
		_ = s.cache.Del(ctx, claim)
		metrics.ObserveAlert(metrics.AlertFailed)
		return models.Alert{}, false, err
	}
	if !inserted {
		return s.duplicate(alert), false, nil
	}

	metrics.ObserveAlert(metrics.AlertEmitted)
	s.logger.Info("regression alert emitted",
		slog.String("alert", alert.ID),
		slog.String("series", alert.Key.String()),
		slog.String("sample", alert.SampleID),
		slog.String("side", string(alert.Side)),
		slog.Float64("bound", alert.Bound),
		slog.Float64("value", alert.Value),
	)
	return alert, true, nil
}

func (s *Sink) duplicate(alert models.Alert) models.Alert {
	metrics.ObserveAlert(metrics.AlertDuplicate)
	s.logger.Debug("duplicate alert suppressed",
		slog.String("sample", alert.SampleID),
		slog.String("threshold", alert.PolicyID),
	)
	alert.ID = ""
	return alert
}

func claimKey(sampleID, policyID string) string {
	return "alert:" + sampleID + ":" + policyID
}
