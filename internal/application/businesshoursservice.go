package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/reliability/reconnect"
)

const daysPerWeek = 7

// BusinessHoursService manages the weekly operating windows of a company.
type BusinessHoursService struct {
	store driven.BusinessHoursStore
	retry reconnect.Options
}

// NewBusinessHoursService wires the business hours store.
func NewBusinessHoursService(store driven.BusinessHoursStore, retry reconnect.Options) *BusinessHoursService {
	return &BusinessHoursService{store: store, retry: retry}
}

func (s *BusinessHoursService) list(ctx context.Context, companyID string) ([]model.BusinessHours, error) {
	return reconnect.Do(ctx, retryFor(s.retry, "list_business_hours"), func(ctx context.Context) ([]model.BusinessHours, error) {
		return s.store.List(ctx, companyID)
	})
}

// List returns all seven days, seeding defaults for days never configured.
// Seeding is idempotent, so concurrent first reads converge on the same rows.
func (s *BusinessHoursService) List(ctx context.Context, p *model.Principal, companyID string) ([]model.BusinessHours, error) {
	companyID, err := memberScope(p, companyID)
	if err != nil {
		return nil, err
	}
	rows, err := s.list(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if len(rows) >= daysPerWeek {
		return rows, nil
	}

	missing := missingDays(companyID, rows)
	if err := reconnect.Exec(ctx, retryFor(s.retry, "seed_business_hours"), func(ctx context.Context) error {
		return s.store.InsertMissing(ctx, missing)
	}); err != nil {
		return nil, err
	}
	slog.Info("business hours seeded", "company_id", companyID, "days", len(missing))
	return s.list(ctx, companyID)
}

func missingDays(companyID string, rows []model.BusinessHours) []model.BusinessHours {
	present := make(map[int]bool, len(rows))
	for _, r := range rows {
		present[r.DayOfWeek] = true
	}
	var missing []model.BusinessHours
	for day := range daysPerWeek {
		if !present[day] {
			missing = append(missing, model.DefaultBusinessHours(companyID, day))
		}
	}
	return missing
}

// Update validates every row and writes them in one transaction. Any invalid
// row rejects the whole update.
func (s *BusinessHoursService) Update(ctx context.Context, p *model.Principal, companyID string, rows []model.BusinessHours) ([]model.BusinessHours, error) {
	companyID, err := adminScope(p, companyID)
	if err != nil {
		return nil, err
	}
	cleaned, err := validateBusinessHours(rows)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceDays(ctx, companyID, cleaned); err != nil {
		return nil, err
	}
	slog.Info("business hours updated", "company_id", companyID, "days", len(cleaned))
	return s.List(ctx, p, companyID)
}

func validateBusinessHours(rows []model.BusinessHours) ([]model.BusinessHours, error) {
	if len(rows) == 0 {
		return nil, invalid("days", "at least one day is required")
	}
	seen := make(map[int]bool, len(rows))
	cleaned := make([]model.BusinessHours, 0, len(rows))
	for i, r := range rows {
		field := fmt.Sprintf("days[%d]", i)
		if r.DayOfWeek < 0 || r.DayOfWeek >= daysPerWeek {
			return nil, invalid(field+".dayOfWeek", "must be between 0 and 6")
		}
		if seen[r.DayOfWeek] {
			return nil, invalid(field+".dayOfWeek", "day %d appears more than once", r.DayOfWeek)
		}
		seen[r.DayOfWeek] = true

		start, err := model.ParseClock(r.StartTime)
		if err != nil {
			return nil, invalid(field+".startTime", "must be HH:MM")
		}
		end, err := model.ParseClock(r.EndTime)
		if err != nil {
			return nil, invalid(field+".endTime", "must be HH:MM")
		}
		if end <= start {
			return nil, invalid(field+".endTime", "must be after startTime")
		}

		r.Timezone = strings.TrimSpace(r.Timezone)
		if r.Timezone == "" {
			r.Timezone = model.DefaultTimezone
		}
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			return nil, invalid(field+".timezone", "unknown timezone %q", r.Timezone)
		}
		cleaned = append(cleaned, r)
	}
	return cleaned, nil
}

// isOpen reports whether now falls inside today's window of companyID. Today
// is resolved in the company's timezone; days never configured use defaults.
func (s *BusinessHoursService) isOpen(ctx context.Context, companyID string, now time.Time) (bool, error) {
	rows, err := s.list(ctx, companyID)
	if err != nil {
		return false, err
	}
	tz := model.DefaultTimezone
	if len(rows) > 0 && rows[0].Timezone != "" {
		tz = rows[0].Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return false, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	local := now.In(loc)

	today := model.DefaultBusinessHours(companyID, int(local.Weekday()))
	today.Timezone = tz
	for _, r := range rows {
		if r.DayOfWeek == int(local.Weekday()) {
			today = r
			break
		}
	}
	if today.Timezone != tz {
		if rowLoc, err := time.LoadLocation(today.Timezone); err == nil {
			local = now.In(rowLoc)
		}
	}
	return today.Contains(local)
}
