package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AutoResponseStore = (*AutoResponseRepo)(nil)

// AutoResponseRepo is the SQLite implementation of the AutoResponseStore port
// interface. Keywords are serialized as a JSON array in the TEXT column.
type AutoResponseRepo struct {
	db *DB
}

// NewAutoResponseRepo creates a new AutoResponseRepo backed by the given DB.
func NewAutoResponseRepo(db *DB) *AutoResponseRepo {
	return &AutoResponseRepo{db: db}
}

const ruleColumns = `id, company_id, name, keywords, match_type, case_sensitive, response_message, priority,
	is_active, trigger_count, last_triggered_at, created_at, updated_at`

// List returns every rule of a company in evaluation order.
func (r *AutoResponseRepo) List(ctx context.Context, companyID string) ([]model.AutoResponseRule, error) {
	const query = `SELECT ` + ruleColumns + ` FROM auto_response_rules
		WHERE company_id = ?
		ORDER BY priority DESC, created_at ASC, id ASC`
	return r.queryRules(ctx, query, companyID)
}

// ListActive returns the active rules of a company in evaluation order.
func (r *AutoResponseRepo) ListActive(ctx context.Context, companyID string) ([]model.AutoResponseRule, error) {
	const query = `SELECT ` + ruleColumns + ` FROM auto_response_rules
		WHERE company_id = ? AND is_active = 1
		ORDER BY priority DESC, created_at ASC, id ASC`
	return r.queryRules(ctx, query, companyID)
}

// Get returns the rule owned by companyID, or (nil, nil).
func (r *AutoResponseRepo) Get(ctx context.Context, companyID, id string) (*model.AutoResponseRule, error) {
	const query = `SELECT ` + ruleColumns + ` FROM auto_response_rules WHERE company_id = ? AND id = ?`

	rule, err := scanRule(r.db.Reader.QueryRowContext(ctx, query, companyID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule %s: %w", id, err)
	}
	return &rule, nil
}

// Create inserts a rule.
func (r *AutoResponseRepo) Create(ctx context.Context, rule model.AutoResponseRule) error {
	const query = `INSERT INTO auto_response_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	keywords, err := marshalKeywords(rule.Keywords)
	if err != nil {
		return err
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		rule.ID, rule.CompanyID, rule.Name, keywords, string(rule.MatchType), boolToInt(rule.CaseSensitive),
		rule.ResponseMessage, rule.Priority, boolToInt(rule.IsActive), rule.TriggerCount,
		formatNullTime(rule.LastTriggeredAt), formatTime(rule.CreatedAt), formatTime(rule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

// Update replaces the editable fields of a rule. Counters are left untouched.
func (r *AutoResponseRepo) Update(ctx context.Context, rule model.AutoResponseRule) error {
	const query = `UPDATE auto_response_rules SET
			name = ?, keywords = ?, match_type = ?, case_sensitive = ?, response_message = ?,
			priority = ?, is_active = ?, updated_at = ?
		WHERE company_id = ? AND id = ?`

	keywords, err := marshalKeywords(rule.Keywords)
	if err != nil {
		return err
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		rule.Name, keywords, string(rule.MatchType), boolToInt(rule.CaseSensitive), rule.ResponseMessage,
		rule.Priority, boolToInt(rule.IsActive), formatTime(rule.UpdatedAt),
		rule.CompanyID, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule %s: %w", rule.ID, err)
	}
	return requireAffected(result, "rule", rule.ID)
}

// Delete removes a rule.
func (r *AutoResponseRepo) Delete(ctx context.Context, companyID, id string) error {
	const query = `DELETE FROM auto_response_rules WHERE company_id = ? AND id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, companyID, id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return requireAffected(result, "rule", id)
}

// SetActive toggles a rule on or off.
func (r *AutoResponseRepo) SetActive(ctx context.Context, companyID, id string, active bool) error {
	const query = `UPDATE auto_response_rules SET is_active = ?, updated_at = ? WHERE company_id = ? AND id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, boolToInt(active), formatTime(nowUTC()), companyID, id)
	if err != nil {
		return fmt.Errorf("set rule %s active: %w", id, err)
	}
	return requireAffected(result, "rule", id)
}

// RecordTrigger increments the trigger counter in a single statement.
func (r *AutoResponseRepo) RecordTrigger(ctx context.Context, companyID, id string, at time.Time) error {
	const query = `UPDATE auto_response_rules
		SET trigger_count = trigger_count + 1, last_triggered_at = ?
		WHERE company_id = ? AND id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(at), companyID, id)
	if err != nil {
		return fmt.Errorf("record trigger for rule %s: %w", id, err)
	}
	return requireAffected(result, "rule", id)
}

func (r *AutoResponseRepo) queryRules(ctx context.Context, query string, args ...any) ([]model.AutoResponseRule, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

func marshalKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("marshal keywords: %w", err)
	}
	return string(data), nil
}

func scanRule(s rowScanner) (model.AutoResponseRule, error) {
	var (
		rule                    model.AutoResponseRule
		keywords, matchType     string
		caseSensitive, isActive int
		lastTriggeredAt         sql.NullString
		createdAt, updatedAt    string
	)
	if err := s.Scan(&rule.ID, &rule.CompanyID, &rule.Name, &keywords, &matchType, &caseSensitive,
		&rule.ResponseMessage, &rule.Priority, &isActive, &rule.TriggerCount, &lastTriggeredAt,
		&createdAt, &updatedAt); err != nil {
		return model.AutoResponseRule{}, err
	}

	if err := json.Unmarshal([]byte(keywords), &rule.Keywords); err != nil {
		return model.AutoResponseRule{}, fmt.Errorf("unmarshal keywords: %w", err)
	}
	rule.MatchType = model.MatchType(matchType)
	rule.CaseSensitive = caseSensitive == 1
	rule.IsActive = isActive == 1

	var err error
	if rule.LastTriggeredAt, err = parseNullTime(lastTriggeredAt); err != nil {
		return model.AutoResponseRule{}, fmt.Errorf("parse last_triggered_at: %w", err)
	}
	if rule.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.AutoResponseRule{}, fmt.Errorf("parse created_at: %w", err)
	}
	if rule.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.AutoResponseRule{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return rule, nil
}
