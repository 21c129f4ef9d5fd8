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

var _ driven.WebhookAgentStore = (*WebhookAgentRepo)(nil)

// WebhookAgentRepo is the PostgreSQL implementation of WebhookAgentStore.
type WebhookAgentRepo struct {
	db *sql.DB
}

// NewWebhookAgentRepo creates a WebhookAgentRepo on db.
func NewWebhookAgentRepo(db *sql.DB) *WebhookAgentRepo {
	return &WebhookAgentRepo{db: db}
}

const agentColumns = `id, company_id, name, webhook_id, webhook_secret, active, created_at, updated_at`

func (r *WebhookAgentRepo) Create(ctx context.Context, agent model.WebhookAgent) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO webhook_agents (`+agentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		agent.ID, agent.CompanyID, agent.Name, agent.WebhookID, agent.WebhookSecret,
		agent.Active, agent.CreatedAt.UTC(), agent.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("create webhook agent %q: %w", agent.Name, driven.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("create webhook agent %q: %w", agent.Name, err)
	}
	return nil
}

func (r *WebhookAgentRepo) GetByWebhookID(ctx context.Context, webhookID string) (*model.WebhookAgent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM webhook_agents WHERE webhook_id = $1`, webhookID)
	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook agent by webhook id: %w", err)
	}
	return &agent, nil
}

func (r *WebhookAgentRepo) Get(ctx context.Context, companyID, id string) (*model.WebhookAgent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM webhook_agents WHERE company_id = $1 AND id = $2`, companyID, id)
	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook agent %s: %w", id, err)
	}
	return &agent, nil
}

func (r *WebhookAgentRepo) ListByCompany(ctx context.Context, companyID string) ([]model.WebhookAgent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM webhook_agents
		WHERE company_id = $1 ORDER BY created_at DESC, id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list webhook agents: %w", err)
	}
	defer rows.Close()

	var agents []model.WebhookAgent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook agent: %w", err)
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func (r *WebhookAgentRepo) Deactivate(ctx context.Context, companyID, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE webhook_agents SET active = FALSE, updated_at = $1
		WHERE company_id = $2 AND id = $3`, time.Now().UTC(), companyID, id)
	if err != nil {
		return fmt.Errorf("deactivate webhook agent %s: %w", id, err)
	}
	return requireAffected(result, "webhook agent", id)
}

func scanAgent(s rowScanner) (model.WebhookAgent, error) {
	var a model.WebhookAgent
	if err := s.Scan(&a.ID, &a.CompanyID, &a.Name, &a.WebhookID, &a.WebhookSecret,
		&a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return model.WebhookAgent{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}
