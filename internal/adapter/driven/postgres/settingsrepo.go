package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

var (
	_ driven.AutomationSettingsStore = (*SettingsRepo)(nil)
	_ driven.IntegrationStore        = (*IntegrationRepo)(nil)
)

// SettingsRepo is the PostgreSQL implementation of AutomationSettingsStore.
type SettingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo creates a SettingsRepo on db.
func NewSettingsRepo(db *sql.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) Get(ctx context.Context, companyID string) (*model.AutomationSettings, error) {
	var (
		s      model.AutomationSettings
		status string
	)
	err := r.db.QueryRowContext(ctx, `SELECT company_id, welcome_enabled, welcome_message, away_enabled, away_message,
			after_hours_enabled, after_hours_message, availability_status, updated_at
		FROM automation_settings WHERE company_id = $1`, companyID).Scan(
		&s.CompanyID, &s.WelcomeEnabled, &s.WelcomeMessage, &s.AwayEnabled, &s.AwayMessage,
		&s.AfterHoursEnabled, &s.AfterHoursMessage, &status, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get automation settings: %w", err)
	}
	s.AvailabilityStatus = model.AvailabilityStatus(status)
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func (r *SettingsRepo) Upsert(ctx context.Context, s model.AutomationSettings) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO automation_settings (company_id, welcome_enabled, welcome_message,
			away_enabled, away_message, after_hours_enabled, after_hours_message, availability_status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (company_id) DO UPDATE SET
			welcome_enabled = EXCLUDED.welcome_enabled,
			welcome_message = EXCLUDED.welcome_message,
			away_enabled = EXCLUDED.away_enabled,
			away_message = EXCLUDED.away_message,
			after_hours_enabled = EXCLUDED.after_hours_enabled,
			after_hours_message = EXCLUDED.after_hours_message,
			availability_status = EXCLUDED.availability_status,
			updated_at = EXCLUDED.updated_at`,
		s.CompanyID, s.WelcomeEnabled, s.WelcomeMessage, s.AwayEnabled, s.AwayMessage,
		s.AfterHoursEnabled, s.AfterHoursMessage, string(s.AvailabilityStatus), s.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert automation settings: %w", err)
	}
	return nil
}

// IntegrationRepo is the PostgreSQL implementation of IntegrationStore.
type IntegrationRepo struct {
	db *sql.DB
}

// NewIntegrationRepo creates an IntegrationRepo on db.
func NewIntegrationRepo(db *sql.DB) *IntegrationRepo {
	return &IntegrationRepo{db: db}
}

func (r *IntegrationRepo) GetGateway(ctx context.Context, companyID string) (*model.GatewayConfig, error) {
	var cfg model.GatewayConfig
	err := r.db.QueryRowContext(ctx, `SELECT company_id, instance_url, instance_name, token, updated_at
		FROM gateway_configs WHERE company_id = $1`, companyID).Scan(
		&cfg.CompanyID, &cfg.InstanceURL, &cfg.InstanceName, &cfg.Token, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get gateway config: %w", err)
	}
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return &cfg, nil
}

func (r *IntegrationRepo) UpsertGateway(ctx context.Context, cfg model.GatewayConfig) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO gateway_configs (company_id, instance_url, instance_name, token, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id) DO UPDATE SET
			instance_url = EXCLUDED.instance_url,
			instance_name = EXCLUDED.instance_name,
			token = EXCLUDED.token,
			updated_at = EXCLUDED.updated_at`,
		cfg.CompanyID, cfg.InstanceURL, cfg.InstanceName, cfg.Token, cfg.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert gateway config: %w", err)
	}
	return nil
}

func (r *IntegrationRepo) GetAIProvider(ctx context.Context, companyID string) (*model.AIProviderConfig, error) {
	var cfg model.AIProviderConfig
	err := r.db.QueryRowContext(ctx, `SELECT company_id, provider, model, api_key, updated_at
		FROM ai_provider_configs WHERE company_id = $1`, companyID).Scan(
		&cfg.CompanyID, &cfg.Provider, &cfg.Model, &cfg.APIKey, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ai provider config: %w", err)
	}
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return &cfg, nil
}

func (r *IntegrationRepo) UpsertAIProvider(ctx context.Context, cfg model.AIProviderConfig) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO ai_provider_configs (company_id, provider, model, api_key, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			api_key = EXCLUDED.api_key,
			updated_at = EXCLUDED.updated_at`,
		cfg.CompanyID, cfg.Provider, cfg.Model, cfg.APIKey, cfg.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert ai provider config: %w", err)
	}
	return nil
}
