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
var _ driven.WebhookAgentStore = (*WebhookAgentRepo)(nil)

// WebhookAgentRepo is the SQLite implementation of the WebhookAgentStore port interface.
type WebhookAgentRepo struct {
	db *DB
}

// NewWebhookAgentRepo creates a new WebhookAgentRepo backed by the given DB.
func NewWebhookAgentRepo(db *DB) *WebhookAgentRepo {
	return &WebhookAgentRepo{db: db}
}

const agentColumns = `id, company_id, name, webhook_id, webhook_secret, active, created_at, updated_at`

// Create inserts a new agent. Returns driven.ErrAlreadyExists if the webhook id is taken.
func (r *WebhookAgentRepo) Create(ctx context.Context, agent model.WebhookAgent) error {
	const query = `INSERT INTO webhook_agents (` + agentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		agent.ID, agent.CompanyID, agent.Name, agent.WebhookID, agent.WebhookSecret,
		boolToInt(agent.Active), formatTime(agent.CreatedAt), formatTime(agent.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("create webhook agent %q: %w", agent.Name, driven.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("create webhook agent %q: %w", agent.Name, err)
	}
	return nil
}

// GetByWebhookID resolves an agent by its public token. Returns (nil, nil) if absent.
func (r *WebhookAgentRepo) GetByWebhookID(ctx context.Context, webhookID string) (*model.WebhookAgent, error) {
	const query = `SELECT ` + agentColumns + ` FROM webhook_agents WHERE webhook_id = ?`

	agent, err := scanAgent(r.db.Reader.QueryRowContext(ctx, query, webhookID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook agent by webhook id: %w", err)
	}
	return &agent, nil
}

// Get returns the agent with id owned by companyID, or (nil, nil).
func (r *WebhookAgentRepo) Get(ctx context.Context, companyID, id string) (*model.WebhookAgent, error) {
	const query = `SELECT ` + agentColumns + ` FROM webhook_agents WHERE company_id = ? AND id = ?`

	agent, err := scanAgent(r.db.Reader.QueryRowContext(ctx, query, companyID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook agent %s: %w", id, err)
	}
	return &agent, nil
}

// ListByCompany returns all agents of a company, newest first.
func (r *WebhookAgentRepo) ListByCompany(ctx context.Context, companyID string) ([]model.WebhookAgent, error) {
	const query = `SELECT ` + agentColumns + ` FROM webhook_agents WHERE company_id = ? ORDER BY created_at DESC, id`

	rows, err := r.db.Reader.QueryContext(ctx, query, companyID)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook agents: %w", err)
	}
	return agents, nil
}

// Deactivate marks the agent inactive. The row is kept for audit.
func (r *WebhookAgentRepo) Deactivate(ctx context.Context, companyID, id string) error {
	const query = `UPDATE webhook_agents SET active = 0, updated_at = ? WHERE company_id = ? AND id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(nowUTC()), companyID, id)
	if err != nil {
		return fmt.Errorf("deactivate webhook agent %s: %w", id, err)
	}
	return requireAffected(result, "webhook agent", id)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(s rowScanner) (model.WebhookAgent, error) {
	var (
		agent                model.WebhookAgent
		active               int
		createdAt, updatedAt string
	)
	if err := s.Scan(&agent.ID, &agent.CompanyID, &agent.Name, &agent.WebhookID, &agent.WebhookSecret,
		&active, &createdAt, &updatedAt); err != nil {
		return model.WebhookAgent{}, err
	}
	agent.Active = active == 1

	var err error
	if agent.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.WebhookAgent{}, fmt.Errorf("parse created_at: %w", err)
	}
	if agent.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.WebhookAgent{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return agent, nil
}
