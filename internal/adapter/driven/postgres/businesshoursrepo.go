package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

var _ driven.BusinessHoursStore = (*BusinessHoursRepo)(nil)

// BusinessHoursRepo is the PostgreSQL implementation of BusinessHoursStore.
type BusinessHoursRepo struct {
	db *sql.DB
}

// NewBusinessHoursRepo creates a BusinessHoursRepo on db.
func NewBusinessHoursRepo(db *sql.DB) *BusinessHoursRepo {
	return &BusinessHoursRepo{db: db}
}

const businessHoursInsert = `INSERT INTO business_hours (company_id, day_of_week, is_enabled, start_time, end_time, timezone)
	VALUES ($1, $2, $3, $4, $5, $6)`

func (r *BusinessHoursRepo) List(ctx context.Context, companyID string) ([]model.BusinessHours, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT company_id, day_of_week, is_enabled, start_time, end_time, timezone
		FROM business_hours WHERE company_id = $1 ORDER BY day_of_week`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list business hours: %w", err)
	}
	defer rows.Close()

	var result []model.BusinessHours
	for rows.Next() {
		var bh model.BusinessHours
		if err := rows.Scan(&bh.CompanyID, &bh.DayOfWeek, &bh.IsEnabled, &bh.StartTime, &bh.EndTime, &bh.Timezone); err != nil {
			return nil, fmt.Errorf("scan business hours: %w", err)
		}
		result = append(result, bh)
	}
	return result, rows.Err()
}

func (r *BusinessHoursRepo) InsertMissing(ctx context.Context, rows []model.BusinessHours) error {
	return r.inTx(ctx, "seed business hours", businessHoursInsert+`
		ON CONFLICT (company_id, day_of_week) DO NOTHING`, rows)
}

func (r *BusinessHoursRepo) ReplaceDays(ctx context.Context, companyID string, rows []model.BusinessHours) error {
	owned := make([]model.BusinessHours, len(rows))
	for i, bh := range rows {
		bh.CompanyID = companyID
		owned[i] = bh
	}
	return r.inTx(ctx, "replace business hours", businessHoursInsert+`
		ON CONFLICT (company_id, day_of_week) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			timezone = EXCLUDED.timezone`, owned)
}

func (r *BusinessHoursRepo) inTx(ctx context.Context, op, query string, rows []model.BusinessHours) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, bh := range rows {
		if _, err := tx.ExecContext(ctx, query,
			bh.CompanyID, bh.DayOfWeek, bh.IsEnabled, bh.StartTime, bh.EndTime, bh.Timezone,
		); err != nil {
			return fmt.Errorf("%s: day %d: %w", op, bh.DayOfWeek, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
