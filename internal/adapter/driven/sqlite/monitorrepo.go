package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MonitorStore = (*MonitorRepo)(nil)

// MonitorRepo is the SQLite implementation of the MonitorStore port interface.
type MonitorRepo struct {
	db *DB
}

// NewMonitorRepo creates a new MonitorRepo backed by the given DB.
func NewMonitorRepo(db *DB) *MonitorRepo {
	return &MonitorRepo{db: db}
}

const instanceColumns = `id, company_id, name, url, api_key, active, check_interval, last_checked_at, created_at`

// CreateInstance inserts a monitored instance.
func (r *MonitorRepo) CreateInstance(ctx context.Context, inst model.MonitoredInstance) error {
	const query = `INSERT INTO monitored_instances (` + instanceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		inst.ID, inst.CompanyID, inst.Name, inst.URL, inst.APIKey, boolToInt(inst.Active),
		inst.CheckInterval, formatNullTime(inst.LastCheckedAt), formatTime(inst.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create instance %q: %w", inst.Name, err)
	}
	return nil
}

// GetInstance returns the instance with id, or (nil, nil).
func (r *MonitorRepo) GetInstance(ctx context.Context, id string) (*model.MonitoredInstance, error) {
	const query = `SELECT ` + instanceColumns + ` FROM monitored_instances WHERE id = ?`

	inst, err := scanInstance(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance %s: %w", id, err)
	}
	return &inst, nil
}

// ListInstances returns every instance of a company ordered by name.
func (r *MonitorRepo) ListInstances(ctx context.Context, companyID string) ([]model.MonitoredInstance, error) {
	const query = `SELECT ` + instanceColumns + ` FROM monitored_instances WHERE company_id = ? ORDER BY name, id`
	return r.queryInstances(ctx, query, companyID)
}

// ListActiveInstances returns active instances across all companies.
func (r *MonitorRepo) ListActiveInstances(ctx context.Context) ([]model.MonitoredInstance, error) {
	const query = `SELECT ` + instanceColumns + ` FROM monitored_instances WHERE active = 1 ORDER BY company_id, id`
	return r.queryInstances(ctx, query)
}

func (r *MonitorRepo) queryInstances(ctx context.Context, query string, args ...any) ([]model.MonitoredInstance, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []model.MonitoredInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return instances, nil
}

// DeactivateInstance stops monitoring an instance. Its errors are kept.
func (r *MonitorRepo) DeactivateInstance(ctx context.Context, companyID, id string) error {
	const query = `UPDATE monitored_instances SET active = 0 WHERE company_id = ? AND id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, companyID, id)
	if err != nil {
		return fmt.Errorf("deactivate instance %s: %w", id, err)
	}
	return requireAffected(result, "instance", id)
}

// TouchInstance records the time of the last keep-alive check.
func (r *MonitorRepo) TouchInstance(ctx context.Context, id string, checkedAt time.Time) error {
	const query = `UPDATE monitored_instances SET last_checked_at = ? WHERE id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, formatTime(checkedAt), id); err != nil {
		return fmt.Errorf("touch instance %s: %w", id, err)
	}
	return nil
}

const errorColumns = `id, company_id, instance_id, severity, message, workflow, occurred_at, resolved, resolved_at`

// RecordError appends an error event.
func (r *MonitorRepo) RecordError(ctx context.Context, e model.MonitoredError) error {
	const query = `INSERT INTO monitored_errors (` + errorColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		e.ID, e.CompanyID, e.InstanceID, string(e.Severity), e.Message, e.Workflow,
		formatTime(e.Timestamp), boolToInt(e.Resolved), formatNullTime(e.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("record error for instance %s: %w", e.InstanceID, err)
	}
	return nil
}

// ListErrors returns errors of a company that occurred at or after since,
// newest first. A non-positive limit returns every match.
func (r *MonitorRepo) ListErrors(ctx context.Context, companyID string, since time.Time, limit int) ([]model.MonitoredError, error) {
	const query = `SELECT ` + errorColumns + ` FROM monitored_errors
		WHERE company_id = ? AND occurred_at >= ?
		ORDER BY occurred_at DESC, id
		LIMIT ?`

	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, companyID, formatTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("list errors: %w", err)
	}
	defer rows.Close()

	var errs []model.MonitoredError
	for rows.Next() {
		var (
			e                    model.MonitoredError
			severity, occurredAt string
			resolved             int
			resolvedAt           sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.InstanceID, &severity, &e.Message, &e.Workflow,
			&occurredAt, &resolved, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		e.Severity = model.Severity(severity)
		e.Resolved = resolved == 1
		if e.Timestamp, err = parseTime(occurredAt); err != nil {
			return nil, fmt.Errorf("parse occurred_at: %w", err)
		}
		if e.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
			return nil, fmt.Errorf("parse resolved_at: %w", err)
		}
		errs = append(errs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate errors: %w", err)
	}
	return errs, nil
}

// ResolveError marks an error resolved.
func (r *MonitorRepo) ResolveError(ctx context.Context, companyID, id string, resolvedAt time.Time) error {
	const query = `UPDATE monitored_errors SET resolved = 1, resolved_at = ? WHERE company_id = ? AND id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(resolvedAt), companyID, id)
	if err != nil {
		return fmt.Errorf("resolve error %s: %w", id, err)
	}
	return requireAffected(result, "error", id)
}

func scanInstance(s rowScanner) (model.MonitoredInstance, error) {
	var (
		inst          model.MonitoredInstance
		active        int
		lastCheckedAt sql.NullString
		createdAt     string
	)
	if err := s.Scan(&inst.ID, &inst.CompanyID, &inst.Name, &inst.URL, &inst.APIKey, &active,
		&inst.CheckInterval, &lastCheckedAt, &createdAt); err != nil {
		return model.MonitoredInstance{}, err
	}
	inst.Active = active == 1

	var err error
	if inst.LastCheckedAt, err = parseNullTime(lastCheckedAt); err != nil {
		return model.MonitoredInstance{}, fmt.Errorf("parse last_checked_at: %w", err)
	}
	if inst.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.MonitoredInstance{}, fmt.Errorf("parse created_at: %w", err)
	}
	return inst, nil
}
