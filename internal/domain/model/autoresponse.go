package model

import (
	"fmt"
	"time"
)

// MatchType selects how a rule keyword is compared against a message.
type MatchType string

const (
	MatchContains   MatchType = "contains"
	MatchExact      MatchType = "exact"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
)

// ParseMatchType validates s as a MatchType. An empty string defaults to contains.
func ParseMatchType(s string) (MatchType, error) {
	switch MatchType(s) {
	case "":
		return MatchContains, nil
	case MatchContains, MatchExact, MatchStartsWith, MatchEndsWith:
		return MatchType(s), nil
	}
	return "", fmt.Errorf("unknown match type %q", s)
}

// AutoResponseRule is a keyword-triggered canned reply owned by a company.
// Rules are evaluated by descending Priority; the first active match wins.
type AutoResponseRule struct {
	ID              string
	CompanyID       string
	Name            string
	Keywords        []string
	MatchType       MatchType
	CaseSensitive   bool
	ResponseMessage string
	Priority        int
	IsActive        bool
	TriggerCount    int64
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
