package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BusinessHoursStore = (*BusinessHoursRepo)(nil)

// BusinessHoursRepo is the SQLite implementation of the BusinessHoursStore
// port interface.
type BusinessHoursRepo struct {
	db *DB
}

// NewBusinessHoursRepo creates a new BusinessHoursRepo backed by the given DB.
func NewBusinessHoursRepo(db *DB) *BusinessHoursRepo {
	return &BusinessHoursRepo{db: db}
}

// List returns the stored rows of a company ordered by day of week.
func (r *BusinessHoursRepo) List(ctx context.Context, companyID string) ([]model.BusinessHours, error) {
	const query = `SELECT company_id, day_of_week, is_enabled, start_time, end_time, timezone
		FROM business_hours WHERE company_id = ? ORDER BY day_of_week`

	rows, err := r.db.Reader.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list business hours: %w", err)
	}
	defer rows.Close()

	var result []model.BusinessHours
	for rows.Next() {
		var (
			bh      model.BusinessHours
			enabled int
		)
		if err := rows.Scan(&bh.CompanyID, &bh.DayOfWeek, &enabled, &bh.StartTime, &bh.EndTime, &bh.Timezone); err != nil {
			return nil, fmt.Errorf("scan business hours: %w", err)
		}
		bh.IsEnabled = enabled == 1
		result = append(result, bh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate business hours: %w", err)
	}
	return result, nil
}

// InsertMissing inserts the given rows, skipping any (company, day) pair that
// already exists. Concurrent seeders therefore never produce duplicates.
func (r *BusinessHoursRepo) InsertMissing(ctx context.Context, rows []model.BusinessHours) error {
	const query = `INSERT INTO business_hours (company_id, day_of_week, is_enabled, start_time, end_time, timezone)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, day_of_week) DO NOTHING`

	return r.execEach(ctx, query, rows, "seed business hours")
}

// ReplaceDays upserts the given rows in one transaction.
func (r *BusinessHoursRepo) ReplaceDays(ctx context.Context, companyID string, rows []model.BusinessHours) error {
	const query = `INSERT INTO business_hours (company_id, day_of_week, is_enabled, start_time, end_time, timezone)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, day_of_week) DO UPDATE SET
			is_enabled = excluded.is_enabled,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			timezone = excluded.timezone`

	owned := make([]model.BusinessHours, len(rows))
	for i, bh := range rows {
		bh.CompanyID = companyID
		owned[i] = bh
	}
	return r.execEach(ctx, query, owned, "replace business hours")
}

func (r *BusinessHoursRepo) execEach(ctx context.Context, query string, rows []model.BusinessHours, op string) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: prepare: %w", op, err)
	}
	defer stmt.Close()

	for _, bh := range rows {
		if _, err := stmt.ExecContext(ctx,
			bh.CompanyID, bh.DayOfWeek, boolToInt(bh.IsEnabled), bh.StartTime, bh.EndTime, bh.Timezone,
		); err != nil {
			return fmt.Errorf("%s: day %d: %w", op, bh.DayOfWeek, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
