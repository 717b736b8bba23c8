package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/benchguard/benchguard/internal/cache"
	"github.com/benchguard/benchguard/internal/models"
	"github.com/benchguard/benchguard/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id             TEXT PRIMARY KEY,
	branch         TEXT NOT NULL,
	testbed        TEXT NOT NULL,
	version_number INTEGER NOT NULL,
	version_hash   TEXT,
	start_time     INTEGER NOT NULL,
	end_time       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_series ON reports (branch, testbed, start_time);

CREATE TABLE IF NOT EXISTS metrics (
	id          TEXT PRIMARY KEY,
	report_id   TEXT NOT NULL,
	iteration   INTEGER NOT NULL,
	benchmark   TEXT NOT NULL,
	kind        TEXT NOT NULL,
	value       REAL NOT NULL,
	lower_bound REAL,
	upper_bound REAL,
	FOREIGN KEY (report_id) REFERENCES reports(id)
);

CREATE INDEX IF NOT EXISTS idx_metrics_series ON metrics (benchmark, kind, report_id);

CREATE TABLE IF NOT EXISTS thresholds (
	id              TEXT PRIMARY KEY,
	branch          TEXT NOT NULL,
	testbed         TEXT NOT NULL,
	kind            TEXT NOT NULL,
	test            TEXT NOT NULL,
	min_sample_size INTEGER NOT NULL,
	max_sample_size INTEGER NOT NULL,
	window_ns       INTEGER NOT NULL,
	left_side       REAL,
	right_side      REAL,
	UNIQUE (branch, testbed, kind)
);

CREATE TABLE IF NOT EXISTS alerts (
	id           TEXT PRIMARY KEY,
	metric_id    TEXT NOT NULL,
	threshold_id TEXT NOT NULL,
	side         TEXT NOT NULL,
	bound        REAL NOT NULL,
	value        REAL NOT NULL,
	created_at   INTEGER NOT NULL,
	UNIQUE (metric_id, threshold_id),
	FOREIGN KEY (metric_id) REFERENCES metrics(id)
);
`

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path to the database file.
	Path string
	// BusyTimeout is how long SQLite waits on a lock before SQLITE_BUSY.
	BusyTimeout time.Duration
	// MaxConnections caps open connections.
	MaxConnections int
	// MaxRetries bounds attempts on SQLITE_BUSY after the busy timeout expires.
	MaxRetries uint
}

// DefaultSQLiteConfig returns the defaults used when fields are unset.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path:           "benchguard.db",
		BusyTimeout:    5 * time.Second,
		MaxConnections: 4,
		MaxRetries:     5,
	}
}

// SQLiteStore implements Store on modernc.org/sqlite.
type SQLiteStore struct {
	db        *sql.DB
	cfg       SQLiteConfig
	cache     cache.Provider
	policyTTL time.Duration
	logger    *slog.Logger

	// policyMu orders cache fills against invalidations; policyGen counts
	// threshold writes so a fill started before a write is dropped.
	policyMu  sync.Mutex
	policyGen uint64
	// afterPolicyRead runs between the thresholds read and the cache fill.
	afterPolicyRead func()
}

// NewSQLiteStore opens the database and runs migrations. A nil cache
// disables threshold caching.
func NewSQLiteStore(cfg SQLiteConfig, cacheProvider cache.Provider, policyTTL time.Duration, logger *slog.Logger) (*SQLiteStore, error) {
	defaults := DefaultSQLiteConfig()
	if cfg.Path == "" {
		cfg.Path = defaults.Path
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaults.BusyTimeout
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaults.MaxConnections
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{
		db:        db,
		cfg:       cfg,
		cache:     cacheProvider,
		policyTTL: policyTTL,
		logger:    logger,
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// History answers with a single SELECT so the result is one snapshot.
func (s *SQLiteStore) History(ctx context.Context, q models.HistoryQuery) ([]models.MetricSample, error) {
	if q.Limit == 0 {
		return nil, nil
	}
	samples, err := retry(ctx, s, func() ([]models.MetricSample, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT m.id, m.value, r.version_number, r.start_time, m.iteration
			FROM metrics m
			JOIN reports r ON r.id = m.report_id
			WHERE r.branch = ? AND r.testbed = ? AND m.benchmark = ? AND m.kind = ?
			  AND r.start_time >= ? AND r.start_time < ?
			  AND m.id <> ?
			ORDER BY r.version_number DESC, r.start_time DESC, m.iteration DESC
			LIMIT ?`,
			q.Key.Branch, q.Key.Testbed, q.Key.Benchmark, string(q.Key.Kind),
			unixNanos(q.Since, math.MinInt64), unixNanos(q.Until, math.MaxInt64),
			q.ExcludeID, int64(q.Limit),
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []models.MetricSample
		for rows.Next() {
			var (
				sample models.MetricSample
				start  int64
			)
			if err := rows.Scan(&sample.ID, &sample.Value, &sample.VersionNumber, &start, &sample.Iteration); err != nil {
				return nil, fmt.Errorf("scan sample: %w", err)
			}
			sample.StartTime = time.Unix(0, start).UTC()
			out = append(out, sample)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, utils.DataAccessError("repo.History", "query "+q.Key.String(), err)
	}
	return samples, nil
}

// LookupPolicy consults the cache before the thresholds table. Misses are
// not cached so a newly put threshold is seen immediately.
func (s *SQLiteStore) LookupPolicy(ctx context.Context, branch, testbed string, kind models.MetricKind) (*models.ThresholdPolicy, error) {
	pk := policyKey{branch: branch, testbed: testbed, kind: kind}
	key := pk.cacheKey()
	if data, err := s.cache.Get(ctx, key); err == nil {
		var cached models.ThresholdPolicy
		if err := json.Unmarshal(data, &cached); err == nil && pk.matches(cached) {
			return &cached, nil
		}
	}

	s.policyMu.Lock()
	gen := s.policyGen
	s.policyMu.Unlock()

	policy, err := retry(ctx, s, func() (*models.ThresholdPolicy, error) {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, branch, testbed, kind, test, min_sample_size, max_sample_size, window_ns, left_side, right_side
			FROM thresholds WHERE branch = ? AND testbed = ? AND kind = ?`,
			branch, testbed, string(kind))
		p, err := scanPolicy(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return p, err
	})
	if err != nil {
		return nil, utils.DataAccessError("repo.LookupPolicy", key, err)
	}
	if policy == nil {
		return nil, nil
	}
	if s.afterPolicyRead != nil {
		s.afterPolicyRead()
	}

	if s.policyTTL > 0 {
		if payload, err := json.Marshal(policy); err == nil {
			s.policyMu.Lock()
			if s.policyGen == gen {
				_ = s.cache.Set(ctx, key, payload, s.policyTTL)
			}
			s.policyMu.Unlock()
		}
	}
	return policy, nil
}

// PutPolicy upserts on (branch, testbed, kind). Replacing keeps the existing ID.
func (s *SQLiteStore) PutPolicy(ctx context.Context, policy models.ThresholdPolicy) (models.ThresholdPolicy, error) {
	if err := policy.Validate(); err != nil {
		return models.ThresholdPolicy{}, utils.ConfigError("repo.PutPolicy", "threshold rejected", err)
	}
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}

	id, err := retry(ctx, s, func() (string, error) {
		var id string
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO thresholds (id, branch, testbed, kind, test, min_sample_size, max_sample_size, window_ns, left_side, right_side)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (branch, testbed, kind) DO UPDATE SET
				test = excluded.test,
				min_sample_size = excluded.min_sample_size,
				max_sample_size = excluded.max_sample_size,
				window_ns = excluded.window_ns,
				left_side = excluded.left_side,
				right_side = excluded.right_side
			RETURNING id`,
			policy.ID, policy.Branch, policy.Testbed, string(policy.Kind), string(policy.Test),
			policy.MinSampleSize, policy.MaxSampleSize, int64(policy.Window),
			nullFloat(policy.LeftSide), nullFloat(policy.RightSide),
		).Scan(&id)
		return id, err
	})
	if err != nil {
		return models.ThresholdPolicy{}, utils.DataAccessError("repo.PutPolicy", "upsert threshold", err)
	}
	policy.ID = id

	s.policyMu.Lock()
	s.policyGen++
	err = s.cache.Del(ctx, policyKeyOf(policy).cacheKey())
	s.policyMu.Unlock()
	if err != nil {
		s.logger.Warn("threshold cache invalidation failed", slog.String("threshold", id), slog.Any("error", err))
	}
	return policy, nil
}

// GetPolicy returns the threshold with the given ID.
func (s *SQLiteStore) GetPolicy(ctx context.Context, id string) (models.ThresholdPolicy, error) {
	policy, err := retry(ctx, s, func() (*models.ThresholdPolicy, error) {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, branch, testbed, kind, test, min_sample_size, max_sample_size, window_ns, left_side, right_side
			FROM thresholds WHERE id = ?`, id)
		p, err := scanPolicy(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return p, err
	})
	if err != nil {
		return models.ThresholdPolicy{}, utils.DataAccessError("repo.GetPolicy", id, err)
	}
	if policy == nil {
		return models.ThresholdPolicy{}, utils.NotFoundError("repo.GetPolicy", "threshold "+id+" not found")
	}
	return *policy, nil
}

// InsertReport writes the report row and every sample in one transaction.
func (s *SQLiteStore) InsertReport(ctx context.Context, report models.Report, samples []models.ReportSample) error {
	if report.ID == "" {
		return utils.ConfigError("repo.InsertReport", "report id is required", nil)
	}
	_, err := retry(ctx, s, func() (struct{}, error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return struct{}{}, fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reports (id, branch, testbed, version_number, version_hash, start_time, end_time)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			report.ID, report.Branch, report.Testbed, report.VersionNumber, report.VersionHash,
			report.StartTime.UnixNano(), report.EndTime.UnixNano(),
		); err != nil {
			return struct{}{}, fmt.Errorf("insert report: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO metrics (id, report_id, iteration, benchmark, kind, value)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return struct{}{}, fmt.Errorf("prepare metric insert: %w", err)
		}
		defer stmt.Close()

		for _, rs := range samples {
			if _, err := stmt.ExecContext(ctx, rs.Sample.ID, report.ID, rs.Sample.Iteration,
				rs.Key.Benchmark, string(rs.Key.Kind), rs.Sample.Value); err != nil {
				return struct{}{}, fmt.Errorf("insert metric %s: %w", rs.Sample.ID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return struct{}{}, fmt.Errorf("commit: %w", err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return utils.DataAccessError("repo.InsertReport", "report "+report.ID, err)
	}
	return nil
}

// UpdateBounds stores the evaluated boundary next to the sample's value.
func (s *SQLiteStore) UpdateBounds(ctx context.Context, sampleID string, boundary models.Boundary) error {
	affected, err := retry(ctx, s, func() (int64, error) {
		res, err := s.db.ExecContext(ctx,
			`UPDATE metrics SET lower_bound = ?, upper_bound = ? WHERE id = ?`,
			nullFloat(boundary.Lower), nullFloat(boundary.Upper), sampleID)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return utils.DataAccessError("repo.UpdateBounds", "metric "+sampleID, err)
	}
	if affected == 0 {
		return utils.NotFoundError("repo.UpdateBounds", "metric "+sampleID+" not found")
	}
	return nil
}

// SaveAlert relies on the (metric_id, threshold_id) constraint for at-most-once storage.
func (s *SQLiteStore) SaveAlert(ctx context.Context, alert models.Alert) (bool, error) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	affected, err := retry(ctx, s, func() (int64, error) {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO alerts (id, metric_id, threshold_id, side, bound, value, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (metric_id, threshold_id) DO NOTHING`,
			alert.ID, alert.SampleID, alert.PolicyID, string(alert.Side), alert.Bound, alert.Value,
			alert.CreatedAt.UnixNano())
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return false, utils.DataAccessError("repo.SaveAlert", "metric "+alert.SampleID, err)
	}
	return affected == 1, nil
}

// ListAlerts returns the newest alerts matching req.
func (s *SQLiteStore) ListAlerts(ctx context.Context, req models.ListAlertsRequest) ([]models.Alert, error) {
	var (
		where []string
		args  []any
	)
	addFilter := func(clause, value string) {
		if value != "" {
			where = append(where, clause)
			args = append(args, value)
		}
	}
	addFilter("r.branch = ?", req.Branch)
	addFilter("r.testbed = ?", req.Testbed)
	addFilter("m.benchmark = ?", req.Benchmark)
	addFilter("m.kind = ?", string(req.Kind))
	if !req.Since.IsZero() {
		where = append(where, "a.created_at >= ?")
		args = append(args, req.Since.UnixNano())
	}

	query := `
		SELECT a.id, a.metric_id, a.threshold_id, a.side, a.bound, a.value, a.created_at,
		       r.branch, r.testbed, m.benchmark, m.kind
		FROM alerts a
		JOIN metrics m ON m.id = a.metric_id
		JOIN reports r ON r.id = m.report_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY a.created_at DESC, a.id ASC\n\t\tLIMIT ?"
	args = append(args, defaultAlertLimit(req.Limit))

	alerts, err := retry(ctx, s, func() ([]models.Alert, error) {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []models.Alert
		for rows.Next() {
			var (
				alert   models.Alert
				side    string
				kind    string
				created int64
			)
			if err := rows.Scan(&alert.ID, &alert.SampleID, &alert.PolicyID, &side, &alert.Bound, &alert.Value, &created,
				&alert.Key.Branch, &alert.Key.Testbed, &alert.Key.Benchmark, &kind); err != nil {
				return nil, fmt.Errorf("scan alert: %w", err)
			}
			alert.Side = models.Side(side)
			alert.Key.Kind = models.MetricKind(kind)
			alert.CreatedAt = time.Unix(0, created).UTC()
			out = append(out, alert)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, utils.DataAccessError("repo.ListAlerts", "query alerts", err)
	}
	return alerts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*models.ThresholdPolicy, error) {
	var (
		p           models.ThresholdPolicy
		kind, test  string
		window      int64
		left, right sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.Branch, &p.Testbed, &kind, &test, &p.MinSampleSize, &p.MaxSampleSize, &window, &left, &right); err != nil {
		return nil, err
	}
	p.Kind = models.MetricKind(kind)
	p.Test = models.TestKind(test)
	p.Window = time.Duration(window)
	if left.Valid {
		p.LeftSide = models.Float64(left.Float64)
	}
	if right.Valid {
		p.RightSide = models.Float64(right.Float64)
	}
	return &p, nil
}

// retry runs op until it succeeds, fails with a non-busy error, or the
// configured attempts are exhausted.
func retry[T any](ctx context.Context, s *SQLiteStore, op func() (T, error)) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		value, err := op()
		if err == nil {
			return value, nil
		}
		if !isBusy(err) {
			return value, backoff.Permanent(err)
		}
		s.logger.Debug("sqlite busy, retrying", slog.Int("attempt", attempt), slog.Any("error", err))
		return value, err
	},
		backoff.WithBackOff(newBusyBackOff()),
		backoff.WithMaxTries(s.cfg.MaxRetries),
	)
}

func newBusyBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}

func isBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func unixNanos(t time.Time, fallback int64) int64 {
	if t.IsZero() {
		return fallback
	}
	return t.UnixNano()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
