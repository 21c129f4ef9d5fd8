package application

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

func TestMatchKeyword(t *testing.T) {
	tests := []struct {
		name          string
		matchType     model.MatchType
		keyword       string
		text          string
		caseSensitive bool
		want          bool
	}{
		{name: "contains", matchType: model.MatchContains, keyword: "preço", text: "qual o preço?", want: true},
		{name: "contains ignores case", matchType: model.MatchContains, keyword: "PRECO", text: "o preco é", want: true},
		{name: "contains respects case", matchType: model.MatchContains, keyword: "PRECO", text: "o preco é", caseSensitive: true, want: false},
		{name: "exact", matchType: model.MatchExact, keyword: "oi", text: "oi", want: true},
		{name: "exact rejects longer text", matchType: model.MatchExact, keyword: "oi", text: "oi tudo bem", want: false},
		{name: "starts with", matchType: model.MatchStartsWith, keyword: "bom dia", text: "Bom dia, pessoal", want: true},
		{name: "starts with miss", matchType: model.MatchStartsWith, keyword: "dia", text: "bom dia", want: false},
		{name: "ends with", matchType: model.MatchEndsWith, keyword: "obrigado", text: "muito obrigado", want: true},
		{name: "ends with respects case", matchType: model.MatchEndsWith, keyword: "Obrigado", text: "muito obrigado", caseSensitive: true, want: false},
		{name: "blank keyword never matches", matchType: model.MatchContains, keyword: "  ", text: "anything", want: false},
		{name: "unknown type falls back to contains", matchType: "", keyword: "pix", text: "aceita pix?", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchKeyword(tt.matchType, tt.keyword, tt.text, tt.caseSensitive))
		})
	}
}

func TestMatchRule_KeywordsAreOred(t *testing.T) {
	rule := model.AutoResponseRule{Keywords: []string{"boleto", "pix"}, MatchType: model.MatchContains}

	assert.True(t, matchRule(rule, "posso pagar no pix?"))
	assert.True(t, matchRule(rule, "manda o boleto"))
	assert.False(t, matchRule(rule, "cartão de crédito"))
	assert.False(t, matchRule(rule, "   "))
}
