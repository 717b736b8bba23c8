package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/utils"
)

type memoryMetric struct {
	key      models.SeriesKey
	sample   models.MetricSample
	reportID string
	boundary models.Boundary
}

type alertClaim struct {
	sampleID string
	policyID string
}

// MemoryStore is an in-process Store. Reads hold the lock for the whole
// query, which gives the same snapshot semantics as the SQLite store.
type MemoryStore struct {
	mu         sync.RWMutex
	reports    map[string]models.Report
	metrics    map[string]*memoryMetric
	thresholds map[policyKey]models.ThresholdPolicy
	alerts     []models.Alert
	claimed    map[alertClaim]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:    make(map[string]models.Report),
		metrics:    make(map[string]*memoryMetric),
		thresholds: make(map[policyKey]models.ThresholdPolicy),
		claimed:    make(map[alertClaim]struct{}),
	}
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// History filters and orders samples like the SQLite query.
func (m *MemoryStore) History(ctx context.Context, q models.HistoryQuery) ([]models.MetricSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.DataAccessError("repo.History", "query "+q.Key.String(), err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.MetricSample
	for _, metric := range m.metrics {
		if metric.key != q.Key || metric.sample.ID == q.ExcludeID {
			continue
		}
		start := metric.sample.StartTime
		if !q.Since.IsZero() && start.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !start.Before(q.Until) {
			continue
		}
		out = append(out, metric.sample)
	}
	sort.Slice(out, func(i, j int) bool {
		switch {
		case out[i].NewerThan(out[j]):
			return true
		case out[j].NewerThan(out[i]):
			return false
		}
		return out[i].ID < out[j].ID
	})
	if uint64(len(out)) > uint64(q.Limit) {
		out = out[:q.Limit]
	}
	return out, nil
}

// LookupPolicy returns a copy of the active threshold, or nil.
func (m *MemoryStore) LookupPolicy(ctx context.Context, branch, testbed string, kind models.MetricKind) (*models.ThresholdPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	policy, ok := m.thresholds[policyKey{branch: branch, testbed: testbed, kind: kind}]
	if !ok {
		return nil, nil
	}
	return &policy, nil
}

// PutPolicy upserts on (branch, testbed, kind), keeping an existing ID.
func (m *MemoryStore) PutPolicy(ctx context.Context, policy models.ThresholdPolicy) (models.ThresholdPolicy, error) {
	if err := policy.Validate(); err != nil {
		return models.ThresholdPolicy{}, utils.ConfigError("repo.PutPolicy", "threshold rejected", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := policyKeyOf(policy)
	if existing, ok := m.thresholds[key]; ok {
		policy.ID = existing.ID
	} else if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	m.thresholds[key] = policy
	return policy, nil
}

// GetPolicy returns the threshold with the given ID.
func (m *MemoryStore) GetPolicy(ctx context.Context, id string) (models.ThresholdPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, policy := range m.thresholds {
		if policy.ID == id {
			return policy, nil
		}
	}
	return models.ThresholdPolicy{}, utils.NotFoundError("repo.GetPolicy", "threshold "+id+" not found")
}

// InsertReport stores the report and samples; it fails without side effects
// on duplicate IDs.
func (m *MemoryStore) InsertReport(ctx context.Context, report models.Report, samples []models.ReportSample) error {
	if report.ID == "" {
		return utils.ConfigError("repo.InsertReport", "report id is required", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reports[report.ID]; exists {
		return utils.DataAccessError("repo.InsertReport", "report "+report.ID, errDuplicate)
	}
	seen := make(map[string]struct{}, len(samples))
	for _, rs := range samples {
		if _, exists := m.metrics[rs.Sample.ID]; exists {
			return utils.DataAccessError("repo.InsertReport", "metric "+rs.Sample.ID, errDuplicate)
		}
		if _, dup := seen[rs.Sample.ID]; dup {
			return utils.DataAccessError("repo.InsertReport", "metric "+rs.Sample.ID, errDuplicate)
		}
		seen[rs.Sample.ID] = struct{}{}
	}

	m.reports[report.ID] = report
	for _, rs := range samples {
		sample := rs.Sample
		sample.VersionNumber = report.VersionNumber
		sample.StartTime = report.StartTime
		key := rs.Key
		key.Branch, key.Testbed = report.Branch, report.Testbed
		m.metrics[sample.ID] = &memoryMetric{key: key, sample: sample, reportID: report.ID}
	}
	return nil
}

// UpdateBounds records the boundary on a stored sample.
func (m *MemoryStore) UpdateBounds(ctx context.Context, sampleID string, boundary models.Boundary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	metric, ok := m.metrics[sampleID]
	if !ok {
		return utils.NotFoundError("repo.UpdateBounds", "metric "+sampleID+" not found")
	}
	metric.boundary = boundary
	return nil
}

// Bounds returns the boundary stored for a sample.
func (m *MemoryStore) Bounds(sampleID string) (models.Boundary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metric, ok := m.metrics[sampleID]
	if !ok {
		return models.Boundary{}, false
	}
	return metric.boundary, true
}

// SaveAlert stores the alert unless one exists for the same sample and threshold.
func (m *MemoryStore) SaveAlert(ctx context.Context, alert models.Alert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metric, ok := m.metrics[alert.SampleID]
	if !ok {
		return false, utils.DataAccessError("repo.SaveAlert", "metric "+alert.SampleID, errUnknownMetric)
	}
	claim := alertClaim{sampleID: alert.SampleID, policyID: alert.PolicyID}
	if _, exists := m.claimed[claim]; exists {
		return false, nil
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	alert.Key = metric.key
	m.claimed[claim] = struct{}{}
	m.alerts = append(m.alerts, alert)
	return true, nil
}

// ListAlerts returns the newest alerts matching req.
func (m *MemoryStore) ListAlerts(ctx context.Context, req models.ListAlertsRequest) ([]models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Alert
	for _, alert := range m.alerts {
		switch {
		case req.Branch != "" && alert.Key.Branch != req.Branch,
			req.Testbed != "" && alert.Key.Testbed != req.Testbed,
			req.Benchmark != "" && alert.Key.Benchmark != req.Benchmark,
			req.Kind != "" && alert.Key.Kind != req.Kind,
			!req.Since.IsZero() && alert.CreatedAt.Before(req.Since):
			continue
		}
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit := defaultAlertLimit(req.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
