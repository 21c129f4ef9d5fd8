package driven

import (
	"context"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// BusinessHoursStore persists the weekly operating windows of a company.
type BusinessHoursStore interface {
	// List returns the stored rows ordered by day of week.
	List(ctx context.Context, companyID string) ([]model.BusinessHours, error)

	// InsertMissing inserts rows whose (company, day) pair does not exist yet
	// and leaves existing rows untouched.
	InsertMissing(ctx context.Context, rows []model.BusinessHours) error

	// ReplaceDays upserts every row in a single transaction.
	ReplaceDays(ctx context.Context, companyID string, rows []model.BusinessHours) error
}
