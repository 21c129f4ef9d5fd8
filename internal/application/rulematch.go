package application

import (
	"strings"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// matchRule reports whether any keyword of rule matches text. Keywords are
// OR-ed; blank keywords never match.
func matchRule(rule model.AutoResponseRule, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, kw := range rule.Keywords {
		if matchKeyword(rule.MatchType, kw, text, rule.CaseSensitive) {
			return true
		}
	}
	return false
}

func matchKeyword(matchType model.MatchType, keyword, text string, caseSensitive bool) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return false
	}
	if !caseSensitive {
		keyword = strings.ToLower(keyword)
		text = strings.ToLower(text)
	}
	switch matchType {
	case model.MatchExact:
		return text == keyword
	case model.MatchStartsWith:
		return strings.HasPrefix(text, keyword)
	case model.MatchEndsWith:
		return strings.HasSuffix(text, keyword)
	default:
		return strings.Contains(text, keyword)
	}
}
