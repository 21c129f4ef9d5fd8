package driven

import (
	"context"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// ChargeStore persists charges reconciled from payment webhooks.
type ChargeStore interface {
	// Upsert atomically inserts the charge or, when a row with the same
	// ExternalID exists, replaces its mutable fields. The returned charge
	// carries the persisted ID and CreatedAt.
	Upsert(ctx context.Context, charge model.Charge) (model.Charge, error)

	// GetByExternalID returns (nil, nil) when the charge is absent or owned by
	// another company.
	GetByExternalID(ctx context.Context, companyID, externalID string) (*model.Charge, error)
	ListByAgent(ctx context.Context, companyID, agentID string) ([]model.Charge, error)
	CountByExternalID(ctx context.Context, externalID string) (int, error)
}
