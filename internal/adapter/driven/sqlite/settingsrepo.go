package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AutomationSettingsStore = (*SettingsRepo)(nil)

// SettingsRepo is the SQLite implementation of the AutomationSettingsStore
// port interface.
type SettingsRepo struct {
	db *DB
}

// NewSettingsRepo creates a new SettingsRepo backed by the given DB.
func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Get returns the settings of a company, or (nil, nil) if none are saved.
func (r *SettingsRepo) Get(ctx context.Context, companyID string) (*model.AutomationSettings, error) {
	const query = `SELECT company_id, welcome_enabled, welcome_message, away_enabled, away_message,
			after_hours_enabled, after_hours_message, availability_status, updated_at
		FROM automation_settings WHERE company_id = ?`

	var (
		s                         model.AutomationSettings
		welcome, away, afterHours int
		status, updatedAt         string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, companyID).Scan(
		&s.CompanyID, &welcome, &s.WelcomeMessage, &away, &s.AwayMessage,
		&afterHours, &s.AfterHoursMessage, &status, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get automation settings: %w", err)
	}

	s.WelcomeEnabled = welcome == 1
	s.AwayEnabled = away == 1
	s.AfterHoursEnabled = afterHours == 1
	s.AvailabilityStatus = model.AvailabilityStatus(status)
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &s, nil
}

// Upsert inserts or replaces the settings of a company.
func (r *SettingsRepo) Upsert(ctx context.Context, s model.AutomationSettings) error {
	const query = `INSERT INTO automation_settings (company_id, welcome_enabled, welcome_message,
			away_enabled, away_message, after_hours_enabled, after_hours_message, availability_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			welcome_enabled = excluded.welcome_enabled,
			welcome_message = excluded.welcome_message,
			away_enabled = excluded.away_enabled,
			away_message = excluded.away_message,
			after_hours_enabled = excluded.after_hours_enabled,
			after_hours_message = excluded.after_hours_message,
			availability_status = excluded.availability_status,
			updated_at = excluded.updated_at`

	_, err := r.db.Writer.ExecContext(ctx, query,
		s.CompanyID, boolToInt(s.WelcomeEnabled), s.WelcomeMessage,
		boolToInt(s.AwayEnabled), s.AwayMessage, boolToInt(s.AfterHoursEnabled), s.AfterHoursMessage,
		string(s.AvailabilityStatus), formatTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert automation settings: %w", err)
	}
	return nil
}
