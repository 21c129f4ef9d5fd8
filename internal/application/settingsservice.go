package application

import (
	"context"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/reliability/reconnect"
)

const maxTemplateLength = 1000

// UpdateSettingsInput changes the automation settings. Nil fields keep their
// current value.
type UpdateSettingsInput struct {
	CompanyID          string
	WelcomeEnabled     *bool
	WelcomeMessage     *string
	AwayEnabled        *bool
	AwayMessage        *string
	AfterHoursEnabled  *bool
	AfterHoursMessage  *string
	AvailabilityStatus *string
}

// SettingsService manages per-company automation templates and toggles.
type SettingsService struct {
	store     driven.AutomationSettingsStore
	sanitizer *bluemonday.Policy
	retry     reconnect.Options
	now       func() time.Time
}

// NewSettingsService wires the settings store. Templates are stripped of all
// markup before they are stored.
func NewSettingsService(store driven.AutomationSettingsStore, retry reconnect.Options) *SettingsService {
	return &SettingsService{
		store:     store,
		sanitizer: bluemonday.StrictPolicy(),
		retry:     retry,
		now:       time.Now,
	}
}

func (s *SettingsService) load(ctx context.Context, companyID string) (model.AutomationSettings, error) {
	stored, err := reconnect.Do(ctx, retryFor(s.retry, "get_automation_settings"), func(ctx context.Context) (*model.AutomationSettings, error) {
		return s.store.Get(ctx, companyID)
	})
	if err != nil {
		return model.AutomationSettings{}, err
	}
	if stored == nil {
		return model.DefaultAutomationSettings(companyID), nil
	}
	return *stored, nil
}

// Get returns the stored settings or the defaults.
func (s *SettingsService) Get(ctx context.Context, p *model.Principal, companyID string) (model.AutomationSettings, error) {
	companyID, err := memberScope(p, companyID)
	if err != nil {
		return model.AutomationSettings{}, err
	}
	return s.load(ctx, companyID)
}

// Update merges in over the current settings and stores the result.
func (s *SettingsService) Update(ctx context.Context, p *model.Principal, in UpdateSettingsInput) (model.AutomationSettings, error) {
	companyID, err := adminScope(p, in.CompanyID)
	if err != nil {
		return model.AutomationSettings{}, err
	}
	settings, err := s.load(ctx, companyID)
	if err != nil {
		return model.AutomationSettings{}, err
	}

	if in.WelcomeEnabled != nil {
		settings.WelcomeEnabled = *in.WelcomeEnabled
	}
	if in.AwayEnabled != nil {
		settings.AwayEnabled = *in.AwayEnabled
	}
	if in.AfterHoursEnabled != nil {
		settings.AfterHoursEnabled = *in.AfterHoursEnabled
	}
	templates := []struct {
		field string
		in    *string
		dst   *string
	}{
		{"welcomeMessage", in.WelcomeMessage, &settings.WelcomeMessage},
		{"awayMessage", in.AwayMessage, &settings.AwayMessage},
		{"afterHoursMessage", in.AfterHoursMessage, &settings.AfterHoursMessage},
	}
	for _, t := range templates {
		if t.in == nil {
			continue
		}
		clean := stripMarkup(s.sanitizer, *t.in)
		if utf8.RuneCountInString(clean) > maxTemplateLength {
			return model.AutomationSettings{}, invalid(t.field, "must be at most %d characters", maxTemplateLength)
		}
		*t.dst = clean
	}
	if in.AvailabilityStatus != nil {
		status, err := model.ParseAvailabilityStatus(strings.TrimSpace(*in.AvailabilityStatus))
		if err != nil {
			return model.AutomationSettings{}, invalid("availabilityStatus", "must be one of available, away, busy, offline")
		}
		settings.AvailabilityStatus = status
	}

	switch {
	case settings.WelcomeEnabled && settings.WelcomeMessage == "":
		return model.AutomationSettings{}, invalid("welcomeMessage", "is required when the welcome message is enabled")
	case settings.AwayEnabled && settings.AwayMessage == "":
		return model.AutomationSettings{}, invalid("awayMessage", "is required when the away message is enabled")
	case settings.AfterHoursEnabled && settings.AfterHoursMessage == "":
		return model.AutomationSettings{}, invalid("afterHoursMessage", "is required when the after-hours message is enabled")
	}

	settings.CompanyID = companyID
	settings.UpdatedAt = s.now().UTC()
	if err := s.store.Upsert(ctx, settings); err != nil {
		return model.AutomationSettings{}, err
	}
	slog.Info("automation settings updated", "company_id", companyID)
	return settings, nil
}

// sanitize strips markup but keeps the text readable as a chat message.
// stripMarkup removes every tag from a message template and decodes the
// entities the policy escaped.
func stripMarkup(policy *bluemonday.Policy, template string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(template)))
}
