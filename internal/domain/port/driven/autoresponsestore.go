package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// AutoResponseStore persists keyword auto-response rules. Every method is
// scoped to companyID.
type AutoResponseStore interface {
	List(ctx context.Context, companyID string) ([]model.AutoResponseRule, error)

	// ListActive returns active rules ordered by priority descending, then
	// creation time and id ascending.
	ListActive(ctx context.Context, companyID string) ([]model.AutoResponseRule, error)

	// Get returns (nil, nil) when the rule is absent or owned by another company.
	Get(ctx context.Context, companyID, id string) (*model.AutoResponseRule, error)
	Create(ctx context.Context, rule model.AutoResponseRule) error

	// Update, Delete, SetActive and RecordTrigger return ErrNotFound when no
	// rule of companyID matches.
	Update(ctx context.Context, rule model.AutoResponseRule) error
	Delete(ctx context.Context, companyID, id string) error
	SetActive(ctx context.Context, companyID, id string, active bool) error
	RecordTrigger(ctx context.Context, companyID, id string, at time.Time) error
}
