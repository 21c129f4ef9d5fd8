package driven

import (
	"context"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// WebhookAgentStore persists payment webhook channels.
type WebhookAgentStore interface {
	Create(ctx context.Context, agent model.WebhookAgent) error

	// GetByWebhookID resolves a channel by its public token, regardless of
	// company. Returns (nil, nil) when no channel matches.
	GetByWebhookID(ctx context.Context, webhookID string) (*model.WebhookAgent, error)

	// Get returns (nil, nil) when the agent is absent or owned by another company.
	Get(ctx context.Context, companyID, id string) (*model.WebhookAgent, error)
	ListByCompany(ctx context.Context, companyID string) ([]model.WebhookAgent, error)

	// Deactivate returns ErrNotFound when no agent of companyID matches id.
	Deactivate(ctx context.Context, companyID, id string) error
}
