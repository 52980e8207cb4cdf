package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go-estimate/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// InstanceReport is one row of the concluded-instance mirror.
type InstanceReport struct {
	InstanceID      string     `json:"instance_id"`
	TenantID        string     `json:"tenant_id"`
	WorkflowID      string     `json:"workflow_id"`
	Family          string     `json:"family"`
	RecordType      string     `json:"record_type"`
	RecordID        string     `json:"record_id"`
	Status          string     `json:"status"`
	Outcome         string     `json:"outcome"`
	DecisionCount   int        `json:"decision_count"`
	StartedAt       time.Time  `json:"started_at"`
	ConcludedAt     *time.Time `json:"concluded_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
}

// StatusCount aggregates mirrored instances per terminal status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// ReportingStore mirrors concluded instances into an external SQL
// database so BI tooling can query them without touching Mongo.
// A store with no DSN configured is disabled and ignores writes.
type ReportingStore struct {
	dbType string // "postgresql" or "mysql"
	db     *sql.DB
	logger *zap.Logger
}

func NewReportingStore(cfg *config.Config, logger *zap.Logger) (*ReportingStore, error) {
	store := &ReportingStore{
		dbType: cfg.ReportingDB,
		logger: logger,
	}
	if cfg.ReportingDSN == "" {
		logger.Info("reporting store disabled, no DSN configured")
		return store, nil
	}

	driver := cfg.ReportingDB
	if driver == "postgresql" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, cfg.ReportingDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open reporting database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	store.db = db
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to prepare reporting schema: %w", err)
	}

	logger.Info("reporting store connected", zap.String("driver", driver))
	return store, nil
}

// Enabled reports whether a reporting database is configured.
func (s *ReportingStore) Enabled() bool {
	return s != nil && s.db != nil
}

func (s *ReportingStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *ReportingStore) ensureSchema(ctx context.Context) error {
	textType := "TEXT"
	if s.dbType == "mysql" {
		textType = "VARCHAR(64)"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS instance_reports (
			instance_id      %s PRIMARY KEY,
			tenant_id        %s,
			workflow_id      %s,
			family           %s,
			record_type      %s,
			record_id        %s,
			status           %s,
			outcome          %s,
			decision_count   INTEGER,
			started_at       TIMESTAMP,
			concluded_at     TIMESTAMP NULL,
			duration_seconds BIGINT
		)
	`, textType, textType, textType, textType, textType, textType, textType, textType)

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Upsert writes or replaces the mirror row for one instance.
func (s *ReportingStore) Upsert(ctx context.Context, report InstanceReport) error {
	if !s.Enabled() {
		return nil
	}

	var query string
	if s.dbType == "postgresql" {
		query = `
			INSERT INTO instance_reports
				(instance_id, tenant_id, workflow_id, family, record_type, record_id,
				 status, outcome, decision_count, started_at, concluded_at, duration_seconds)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (instance_id) DO UPDATE SET
				status = EXCLUDED.status,
				outcome = EXCLUDED.outcome,
				decision_count = EXCLUDED.decision_count,
				concluded_at = EXCLUDED.concluded_at,
				duration_seconds = EXCLUDED.duration_seconds
		`
	} else { // mysql
		query = `
			INSERT INTO instance_reports
				(instance_id, tenant_id, workflow_id, family, record_type, record_id,
				 status, outcome, decision_count, started_at, concluded_at, duration_seconds)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				status = VALUES(status),
				outcome = VALUES(outcome),
				decision_count = VALUES(decision_count),
				concluded_at = VALUES(concluded_at),
				duration_seconds = VALUES(duration_seconds)
		`
	}

	_, err := s.db.ExecContext(ctx, query,
		report.InstanceID, report.TenantID, report.WorkflowID, report.Family,
		report.RecordType, report.RecordID, report.Status, report.Outcome,
		report.DecisionCount, report.StartedAt, report.ConcludedAt, report.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert instance report: %w", err)
	}
	return nil
}

// CountByStatus aggregates mirrored instances for one tenant.
func (s *ReportingStore) CountByStatus(ctx context.Context, tenantID string) ([]StatusCount, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("reporting store not configured")
	}

	query := fmt.Sprintf(
		"SELECT status, COUNT(*) FROM instance_reports WHERE tenant_id = %s GROUP BY status",
		s.placeholder(1),
	)

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate instance reports: %w", err)
	}
	defer rows.Close()

	counts := []StatusCount{}
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Recent returns the most recently concluded instances for one tenant.
func (s *ReportingStore) Recent(ctx context.Context, tenantID string, limit int) ([]InstanceReport, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("reporting store not configured")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT instance_id, tenant_id, workflow_id, family, record_type, record_id,
		       status, outcome, decision_count, started_at, concluded_at, duration_seconds
		FROM instance_reports
		WHERE tenant_id = %s
		ORDER BY concluded_at DESC
		LIMIT %d
	`, s.placeholder(1), limit)

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instance reports: %w", err)
	}
	defer rows.Close()

	reports := []InstanceReport{}
	for rows.Next() {
		var r InstanceReport
		var concluded sql.NullTime
		if err := rows.Scan(
			&r.InstanceID, &r.TenantID, &r.WorkflowID, &r.Family, &r.RecordType,
			&r.RecordID, &r.Status, &r.Outcome, &r.DecisionCount, &r.StartedAt,
			&concluded, &r.DurationSeconds,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		if concluded.Valid {
			t := concluded.Time
			r.ConcludedAt = &t
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *ReportingStore) placeholder(index int) string {
	if s.dbType == "postgresql" {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}
