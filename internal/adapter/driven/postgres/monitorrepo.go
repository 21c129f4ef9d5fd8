package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

var _ driven.MonitorStore = (*MonitorRepo)(nil)

// MonitorRepo is the PostgreSQL implementation of MonitorStore.
type MonitorRepo struct {
	db *sql.DB
}

// NewMonitorRepo creates a MonitorRepo on db.
func NewMonitorRepo(db *sql.DB) *MonitorRepo {
	return &MonitorRepo{db: db}
}

const (
	instanceColumns = `id, company_id, name, url, api_key, active, check_interval, last_checked_at, created_at`
	errorColumns    = `id, company_id, instance_id, severity, message, workflow, occurred_at, resolved, resolved_at`
)

func (r *MonitorRepo) CreateInstance(ctx context.Context, inst model.MonitoredInstance) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO monitored_instances (`+instanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inst.ID, inst.CompanyID, inst.Name, inst.URL, inst.APIKey, inst.Active,
		inst.CheckInterval, nullTime(inst.LastCheckedAt), inst.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create instance %q: %w", inst.Name, err)
	}
	return nil
}

func (r *MonitorRepo) GetInstance(ctx context.Context, id string) (*model.MonitoredInstance, error) {
	inst, err := scanInstance(r.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM monitored_instances WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance %s: %w", id, err)
	}
	return &inst, nil
}

func (r *MonitorRepo) ListInstances(ctx context.Context, companyID string) ([]model.MonitoredInstance, error) {
	return r.queryInstances(ctx, `SELECT `+instanceColumns+` FROM monitored_instances
		WHERE company_id = $1 ORDER BY name, id`, companyID)
}

func (r *MonitorRepo) ListActiveInstances(ctx context.Context) ([]model.MonitoredInstance, error) {
	return r.queryInstances(ctx, `SELECT `+instanceColumns+` FROM monitored_instances
		WHERE active ORDER BY company_id, id`)
}

func (r *MonitorRepo) queryInstances(ctx context.Context, query string, args ...any) ([]model.MonitoredInstance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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
	return instances, rows.Err()
}

func (r *MonitorRepo) DeactivateInstance(ctx context.Context, companyID, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE monitored_instances SET active = FALSE
		WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return fmt.Errorf("deactivate instance %s: %w", id, err)
	}
	return requireAffected(result, "instance", id)
}

func (r *MonitorRepo) TouchInstance(ctx context.Context, id string, checkedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE monitored_instances SET last_checked_at = $1 WHERE id = $2`,
		checkedAt.UTC(), id); err != nil {
		return fmt.Errorf("touch instance %s: %w", id, err)
	}
	return nil
}

func (r *MonitorRepo) RecordError(ctx context.Context, e model.MonitoredError) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO monitored_errors (`+errorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.CompanyID, e.InstanceID, string(e.Severity), e.Message, e.Workflow,
		e.Timestamp.UTC(), e.Resolved, nullTime(e.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("record error for instance %s: %w", e.InstanceID, err)
	}
	return nil
}

// ListErrors returns errors at or after since, newest first. LIMIT NULL is
// unbounded in PostgreSQL, which is what a non-positive limit maps to.
func (r *MonitorRepo) ListErrors(ctx context.Context, companyID string, since time.Time, limit int) ([]model.MonitoredError, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+errorColumns+` FROM monitored_errors
		WHERE company_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC, id
		LIMIT $3`, companyID, since.UTC(), lim)
	if err != nil {
		return nil, fmt.Errorf("list errors: %w", err)
	}
	defer rows.Close()

	var errs []model.MonitoredError
	for rows.Next() {
		var (
			e          model.MonitoredError
			severity   string
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.InstanceID, &severity, &e.Message, &e.Workflow,
			&e.Timestamp, &e.Resolved, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		e.Severity = model.Severity(severity)
		e.Timestamp = e.Timestamp.UTC()
		e.ResolvedAt = timePtr(resolvedAt)
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

func (r *MonitorRepo) ResolveError(ctx context.Context, companyID, id string, resolvedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE monitored_errors SET resolved = TRUE, resolved_at = $1
		WHERE company_id = $2 AND id = $3`, resolvedAt.UTC(), companyID, id)
	if err != nil {
		return fmt.Errorf("resolve error %s: %w", id, err)
	}
	return requireAffected(result, "error", id)
}

func scanInstance(s rowScanner) (model.MonitoredInstance, error) {
	var (
		inst          model.MonitoredInstance
		lastCheckedAt sql.NullTime
	)
	if err := s.Scan(&inst.ID, &inst.CompanyID, &inst.Name, &inst.URL, &inst.APIKey, &inst.Active,
		&inst.CheckInterval, &lastCheckedAt, &inst.CreatedAt); err != nil {
		return model.MonitoredInstance{}, err
	}
	inst.LastCheckedAt = timePtr(lastCheckedAt)
	inst.CreatedAt = inst.CreatedAt.UTC()
	return inst, nil
}
