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
var _ driven.IntegrationStore = (*IntegrationRepo)(nil)

// IntegrationRepo is the SQLite implementation of the IntegrationStore port
// interface. Secrets arrive already encrypted.
type IntegrationRepo struct {
	db *DB
}

// NewIntegrationRepo creates a new IntegrationRepo backed by the given DB.
func NewIntegrationRepo(db *DB) *IntegrationRepo {
	return &IntegrationRepo{db: db}
}

// GetGateway returns the gateway configuration, or (nil, nil).
func (r *IntegrationRepo) GetGateway(ctx context.Context, companyID string) (*model.GatewayConfig, error) {
	const query = `SELECT company_id, instance_url, instance_name, token, updated_at
		FROM gateway_configs WHERE company_id = ?`

	var (
		cfg       model.GatewayConfig
		updatedAt string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, companyID).Scan(
		&cfg.CompanyID, &cfg.InstanceURL, &cfg.InstanceName, &cfg.Token, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get gateway config: %w", err)
	}
	if cfg.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &cfg, nil
}

// UpsertGateway inserts or replaces the gateway configuration.
func (r *IntegrationRepo) UpsertGateway(ctx context.Context, cfg model.GatewayConfig) error {
	const query = `INSERT INTO gateway_configs (company_id, instance_url, instance_name, token, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			instance_url = excluded.instance_url,
			instance_name = excluded.instance_name,
			token = excluded.token,
			updated_at = excluded.updated_at`

	_, err := r.db.Writer.ExecContext(ctx, query,
		cfg.CompanyID, cfg.InstanceURL, cfg.InstanceName, cfg.Token, formatTime(cfg.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert gateway config: %w", err)
	}
	return nil
}

// GetAIProvider returns the AI provider configuration, or (nil, nil).
func (r *IntegrationRepo) GetAIProvider(ctx context.Context, companyID string) (*model.AIProviderConfig, error) {
	const query = `SELECT company_id, provider, model, api_key, updated_at
		FROM ai_provider_configs WHERE company_id = ?`

	var (
		cfg       model.AIProviderConfig
		updatedAt string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, companyID).Scan(
		&cfg.CompanyID, &cfg.Provider, &cfg.Model, &cfg.APIKey, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ai provider config: %w", err)
	}
	if cfg.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &cfg, nil
}

// UpsertAIProvider inserts or replaces the AI provider configuration.
func (r *IntegrationRepo) UpsertAIProvider(ctx context.Context, cfg model.AIProviderConfig) error {
	const query = `INSERT INTO ai_provider_configs (company_id, provider, model, api_key, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			provider = excluded.provider,
			model = excluded.model,
			api_key = excluded.api_key,
			updated_at = excluded.updated_at`

	_, err := r.db.Writer.ExecContext(ctx, query,
		cfg.CompanyID, cfg.Provider, cfg.Model, cfg.APIKey, formatTime(cfg.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert ai provider config: %w", err)
	}
	return nil
}
