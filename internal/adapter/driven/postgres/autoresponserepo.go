package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

var _ driven.AutoResponseStore = (*AutoResponseRepo)(nil)

// AutoResponseRepo is the PostgreSQL implementation of AutoResponseStore.
// Keywords map to a TEXT[] column.
type AutoResponseRepo struct {
	db *sql.DB
}

// NewAutoResponseRepo creates an AutoResponseRepo on db.
func NewAutoResponseRepo(db *sql.DB) *AutoResponseRepo {
	return &AutoResponseRepo{db: db}
}

const (
	ruleColumns = `id, company_id, name, keywords, match_type, case_sensitive, response_message, priority,
	is_active, trigger_count, last_triggered_at, created_at, updated_at`
	ruleOrder = `ORDER BY priority DESC, created_at ASC, id ASC`
)

func (r *AutoResponseRepo) List(ctx context.Context, companyID string) ([]model.AutoResponseRule, error) {
	return r.queryRules(ctx, `SELECT `+ruleColumns+` FROM auto_response_rules
		WHERE company_id = $1 `+ruleOrder, companyID)
}

func (r *AutoResponseRepo) ListActive(ctx context.Context, companyID string) ([]model.AutoResponseRule, error) {
	return r.queryRules(ctx, `SELECT `+ruleColumns+` FROM auto_response_rules
		WHERE company_id = $1 AND is_active `+ruleOrder, companyID)
}

func (r *AutoResponseRepo) Get(ctx context.Context, companyID, id string) (*model.AutoResponseRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM auto_response_rules
		WHERE company_id = $1 AND id = $2`, companyID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule %s: %w", id, err)
	}
	return &rule, nil
}

func (r *AutoResponseRepo) Create(ctx context.Context, rule model.AutoResponseRule) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO auto_response_rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rule.ID, rule.CompanyID, rule.Name, pq.Array(keywordsOrEmpty(rule.Keywords)), string(rule.MatchType),
		rule.CaseSensitive, rule.ResponseMessage, rule.Priority, rule.IsActive, rule.TriggerCount,
		nullTime(rule.LastTriggeredAt), rule.CreatedAt.UTC(), rule.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

func (r *AutoResponseRepo) Update(ctx context.Context, rule model.AutoResponseRule) error {
	result, err := r.db.ExecContext(ctx, `UPDATE auto_response_rules SET
			name = $1, keywords = $2, match_type = $3, case_sensitive = $4, response_message = $5,
			priority = $6, is_active = $7, updated_at = $8
		WHERE company_id = $9 AND id = $10`,
		rule.Name, pq.Array(keywordsOrEmpty(rule.Keywords)), string(rule.MatchType), rule.CaseSensitive,
		rule.ResponseMessage, rule.Priority, rule.IsActive, rule.UpdatedAt.UTC(),
		rule.CompanyID, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule %s: %w", rule.ID, err)
	}
	return requireAffected(result, "rule", rule.ID)
}

func (r *AutoResponseRepo) Delete(ctx context.Context, companyID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM auto_response_rules WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return requireAffected(result, "rule", id)
}

func (r *AutoResponseRepo) SetActive(ctx context.Context, companyID, id string, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE auto_response_rules SET is_active = $1, updated_at = $2
		WHERE company_id = $3 AND id = $4`, active, time.Now().UTC(), companyID, id)
	if err != nil {
		return fmt.Errorf("set rule %s active: %w", id, err)
	}
	return requireAffected(result, "rule", id)
}

// RecordTrigger increments the counter server-side so concurrent matches are
// never lost.
func (r *AutoResponseRepo) RecordTrigger(ctx context.Context, companyID, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE auto_response_rules
		SET trigger_count = trigger_count + 1, last_triggered_at = $1
		WHERE company_id = $2 AND id = $3`, at.UTC(), companyID, id)
	if err != nil {
		return fmt.Errorf("record trigger for rule %s: %w", id, err)
	}
	return requireAffected(result, "rule", id)
}

func (r *AutoResponseRepo) queryRules(ctx context.Context, query string, args ...any) ([]model.AutoResponseRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []model.AutoResponseRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func keywordsOrEmpty(keywords []string) []string {
	if keywords == nil {
		return []string{}
	}
	return keywords
}

func scanRule(s rowScanner) (model.AutoResponseRule, error) {
	var (
		rule            model.AutoResponseRule
		matchType       string
		lastTriggeredAt sql.NullTime
	)
	if err := s.Scan(&rule.ID, &rule.CompanyID, &rule.Name, pq.Array(&rule.Keywords), &matchType,
		&rule.CaseSensitive, &rule.ResponseMessage, &rule.Priority, &rule.IsActive, &rule.TriggerCount,
		&lastTriggeredAt, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return model.AutoResponseRule{}, err
	}
	rule.MatchType = model.MatchType(matchType)
	rule.LastTriggeredAt = timePtr(lastTriggeredAt)
	rule.CreatedAt = rule.CreatedAt.UTC()
	rule.UpdatedAt = rule.UpdatedAt.UTC()
	return rule, nil
}
