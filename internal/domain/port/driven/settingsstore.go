package driven

import (
	"context"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// AutomationSettingsStore persists per-company automation templates.
type AutomationSettingsStore interface {
	// Get returns (nil, nil) when the company has not saved settings yet.
	Get(ctx context.Context, companyID string) (*model.AutomationSettings, error)
	Upsert(ctx context.Context, settings model.AutomationSettings) error
}
