package driven

import (
	"context"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// IntegrationStore persists per-company third-party credentials. Secret
// fields are stored exactly as given; callers encrypt them with a SecretVault.
type IntegrationStore interface {
	// GetGateway returns (nil, nil) when the company has no gateway configured.
	GetGateway(ctx context.Context, companyID string) (*model.GatewayConfig, error)
	UpsertGateway(ctx context.Context, cfg model.GatewayConfig) error

	// GetAIProvider returns (nil, nil) when the company has no AI provider configured.
	GetAIProvider(ctx context.Context, companyID string) (*model.AIProviderConfig, error)
	UpsertAIProvider(ctx context.Context, cfg model.AIProviderConfig) error
}
