package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/benchguard/benchguard/internal/cache"
	"github.com/benchguard/benchguard/internal/models"
)

// Store persists reports, metric samples, thresholds and alerts.
type Store interface {
	// History returns prior samples of a series, newest first.
	History(ctx context.Context, q models.HistoryQuery) ([]models.MetricSample, error)
	// LookupPolicy returns the active threshold or nil when none is configured.
	LookupPolicy(ctx context.Context, branch, testbed string, kind models.MetricKind) (*models.ThresholdPolicy, error)
	// PutPolicy creates or replaces the threshold for the policy's series.
	PutPolicy(ctx context.Context, policy models.ThresholdPolicy) (models.ThresholdPolicy, error)
	GetPolicy(ctx context.Context, id string) (models.ThresholdPolicy, error)
	// InsertReport stores a report and all of its samples atomically.
	InsertReport(ctx context.Context, report models.Report, samples []models.ReportSample) error
	// UpdateBounds records the boundary a sample was evaluated against.
	UpdateBounds(ctx context.Context, sampleID string, boundary models.Boundary) error
	// SaveAlert stores an alert once per (sample, threshold) and reports
	// whether this call inserted it.
	SaveAlert(ctx context.Context, alert models.Alert) (bool, error)
	ListAlerts(ctx context.Context, req models.ListAlertsRequest) ([]models.Alert, error)
	Close() error
}

var (
	errDuplicate     = errors.New("duplicate id")
	errUnknownMetric = errors.New("unknown metric")
)

// Drivers understood by Open.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Options configures Open.
type Options struct {
	Driver    string
	SQLite    SQLiteConfig
	Cache     cache.Provider
	PolicyTTL time.Duration
	Logger    *slog.Logger
}

// Open constructs the store selected by opts.Driver.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite:
		return NewSQLiteStore(opts.SQLite, opts.Cache, opts.PolicyTTL, opts.Logger)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// policyKey identifies the single active threshold of a series family.
type policyKey struct {
	branch  string
	testbed string
	kind    models.MetricKind
}

func policyKeyOf(policy models.ThresholdPolicy) policyKey {
	return policyKey{branch: policy.Branch, testbed: policy.Testbed, kind: policy.Kind}
}

// matches reports whether policy belongs to k.
func (k policyKey) matches(policy models.ThresholdPolicy) bool {
	return policyKeyOf(policy) == k
}

// cacheKey quotes each part so names containing separators cannot collide.
func (k policyKey) cacheKey() string {
	return "threshold:" + strconv.Quote(k.branch) + "/" + strconv.Quote(k.testbed) + "/" + strconv.Quote(string(k.kind))
}

func defaultAlertLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
