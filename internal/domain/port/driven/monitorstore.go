package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// MonitorStore persists monitored automation instances and their error events.
type MonitorStore interface {
	CreateInstance(ctx context.Context, instance model.MonitoredInstance) error

	// GetInstance resolves an instance by id regardless of company, for
	// telemetry ingestion. Returns (nil, nil) when absent.
	GetInstance(ctx context.Context, id string) (*model.MonitoredInstance, error)
	ListInstances(ctx context.Context, companyID string) ([]model.MonitoredInstance, error)
	ListActiveInstances(ctx context.Context) ([]model.MonitoredInstance, error)

	// DeactivateInstance returns ErrNotFound when no instance of companyID matches.
	DeactivateInstance(ctx context.Context, companyID, id string) error
	TouchInstance(ctx context.Context, id string, checkedAt time.Time) error

	// RecordError appends an error event; errors are never updated in place
	// except for resolution.
	RecordError(ctx context.Context, e model.MonitoredError) error
	ListErrors(ctx context.Context, companyID string, since time.Time, limit int) ([]model.MonitoredError, error)

	// ResolveError returns ErrNotFound when no error of companyID matches.
	ResolveError(ctx context.Context, companyID, id string, resolvedAt time.Time) error
}
