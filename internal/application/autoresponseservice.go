package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/idgen"
	"github.com/ericfisherdev/leadinbox/internal/reliability/reconnect"
)

const (
	maxRuleName     = 120
	maxRuleKeywords = 50
	maxRulePriority = 1000
)

// RuleInput is the writable part of an auto-response rule.
type RuleInput struct {
	CompanyID       string
	Name            string
	Keywords        []string
	MatchType       string
	CaseSensitive   bool
	ResponseMessage string
	Priority        int
	IsActive        *bool
}

// SplitKeywords turns a comma separated keyword list into its parts.
func SplitKeywords(s string) []string {
	return strings.Split(s, ",")
}

// AutoResponseService manages keyword rules.
type AutoResponseService struct {
	store     driven.AutoResponseStore
	sanitizer *bluemonday.Policy
	retry     reconnect.Options
	now       func() time.Time
}

// NewAutoResponseService wires the rule store. Response messages are stripped
// of markup like the settings templates.
func NewAutoResponseService(store driven.AutoResponseStore, retry reconnect.Options) *AutoResponseService {
	return &AutoResponseService{
		store:     store,
		sanitizer: bluemonday.StrictPolicy(),
		retry:     retry,
		now:       time.Now,
	}
}

// List returns every rule of the company in evaluation order.
func (s *AutoResponseService) List(ctx context.Context, p *model.Principal, companyID string) ([]model.AutoResponseRule, error) {
	companyID, err := memberScope(p, companyID)
	if err != nil {
		return nil, err
	}
	return reconnect.Do(ctx, retryFor(s.retry, "list_rules"), func(ctx context.Context) ([]model.AutoResponseRule, error) {
		return s.store.List(ctx, companyID)
	})
}

// Get returns one rule or ErrNotFound.
func (s *AutoResponseService) Get(ctx context.Context, p *model.Principal, companyID, id string) (*model.AutoResponseRule, error) {
	companyID, err := memberScope(p, companyID)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, companyID, id)
}

func (s *AutoResponseService) get(ctx context.Context, companyID, id string) (*model.AutoResponseRule, error) {
	rule, err := reconnect.Do(ctx, retryFor(s.retry, "get_rule"), func(ctx context.Context) (*model.AutoResponseRule, error) {
		return s.store.Get(ctx, companyID, id)
	})
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, fmt.Errorf("rule %s: %w", id, driven.ErrNotFound)
	}
	return rule, nil
}

// Create validates and stores a new rule. Rules are active unless IsActive is false.
func (s *AutoResponseService) Create(ctx context.Context, p *model.Principal, in RuleInput) (*model.AutoResponseRule, error) {
	companyID, err := adminScope(p, in.CompanyID)
	if err != nil {
		return nil, err
	}
	rule, err := s.applyInput(model.AutoResponseRule{IsActive: true}, in)
	if err != nil {
		return nil, err
	}
	if rule.ID, err = idgen.New(idgen.PrefixRule); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rule.CompanyID = companyID
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := s.store.Create(ctx, rule); err != nil {
		return nil, err
	}
	slog.Info("auto-response rule created", "company_id", companyID, "rule_id", rule.ID)
	return &rule, nil
}

// Update replaces the writable fields of a rule. Trigger statistics are kept.
func (s *AutoResponseService) Update(ctx context.Context, p *model.Principal, id string, in RuleInput) (*model.AutoResponseRule, error) {
	companyID, err := adminScope(p, in.CompanyID)
	if err != nil {
		return nil, err
	}
	existing, err := s.get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	rule, err := s.applyInput(*existing, in)
	if err != nil {
		return nil, err
	}
	rule.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Delete removes a rule.
func (s *AutoResponseService) Delete(ctx context.Context, p *model.Principal, companyID, id string) error {
	companyID, err := adminScope(p, companyID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, companyID, id); err != nil {
		return err
	}
	slog.Info("auto-response rule deleted", "company_id", companyID, "rule_id", id)
	return nil
}

// SetActive toggles a rule without touching its content.
func (s *AutoResponseService) SetActive(ctx context.Context, p *model.Principal, companyID, id string, active bool) (*model.AutoResponseRule, error) {
	companyID, err := adminScope(p, companyID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetActive(ctx, companyID, id, active); err != nil {
		return nil, err
	}
	return s.get(ctx, companyID, id)
}

func (s *AutoResponseService) applyInput(rule model.AutoResponseRule, in RuleInput) (model.AutoResponseRule, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return rule, invalid("name", "is required")
	}
	if len(name) > maxRuleName {
		return rule, invalid("name", "must be at most %d characters", maxRuleName)
	}

	keywords := make([]string, 0, len(in.Keywords))
	for _, kw := range in.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return rule, invalid("keywords", "at least one keyword is required")
	}
	if len(keywords) > maxRuleKeywords {
		return rule, invalid("keywords", "at most %d keywords are allowed", maxRuleKeywords)
	}

	matchType, err := model.ParseMatchType(strings.TrimSpace(in.MatchType))
	if err != nil {
		return rule, invalid("matchType", "must be one of contains, exact, starts_with, ends_with")
	}
	response := stripMarkup(s.sanitizer, in.ResponseMessage)
	if response == "" {
		return rule, invalid("responseMessage", "is required")
	}
	if utf8.RuneCountInString(response) > maxTemplateLength {
		return rule, invalid("responseMessage", "must be at most %d characters", maxTemplateLength)
	}
	if in.Priority < 0 || in.Priority > maxRulePriority {
		return rule, invalid("priority", "must be between 0 and %d", maxRulePriority)
	}

	rule.Name = name
	rule.Keywords = keywords
	rule.MatchType = matchType
	rule.CaseSensitive = in.CaseSensitive
	rule.ResponseMessage = response
	rule.Priority = in.Priority
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}
	return rule, nil
}
