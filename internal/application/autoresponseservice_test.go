package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

func TestAutoResponseService_CRUD(t *testing.T) {
	store := newMockRuleStore()
	svc := NewAutoResponseService(store, testRetry)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	created, err := svc.Create(ctx, admin("co_1"), RuleInput{
		Name:            "Preço",
		Keywords:        SplitKeywords("preço, valor ,, quanto custa"),
		ResponseMessage: "Nossa tabela está em example.com/precos",
		Priority:        5,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"preço", "valor", "quanto custa"}, created.Keywords)
	assert.Equal(t, model.MatchContains, created.MatchType)
	assert.True(t, created.IsActive)
	assert.Equal(t, "co_1", created.CompanyID)

	require.NoError(t, store.RecordTrigger(ctx, "co_1", created.ID, now))
	<-store.triggers

	updated, err := svc.Update(ctx, admin("co_1"), created.ID, RuleInput{
		Name:            "Preço",
		Keywords:        []string{"preço"},
		MatchType:       "starts_with",
		CaseSensitive:   true,
		ResponseMessage: "Veja os preços",
		Priority:        9,
		IsActive:        ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, model.MatchStartsWith, updated.MatchType)
	assert.False(t, updated.IsActive)
	assert.Equal(t, int64(1), updated.TriggerCount, "update keeps trigger statistics")
	assert.Equal(t, int64(1), store.rule(created.ID).TriggerCount)

	toggled, err := svc.SetActive(ctx, admin("co_1"), "", created.ID, true)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)

	rules, err := svc.List(ctx, member("co_1"), "")
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	require.NoError(t, svc.Delete(ctx, admin("co_1"), "", created.ID))
	_, err = svc.Get(ctx, member("co_1"), "", created.ID)
	assert.ErrorIs(t, err, driven.ErrNotFound)
}

func TestAutoResponseService_TenantIsolation(t *testing.T) {
	store := newMockRuleStore(rule("ar_1", 1, time.Now(), "oi"))
	svc := NewAutoResponseService(store, testRetry)
	ctx := context.Background()
	in := RuleInput{Name: "x", Keywords: []string{"oi"}, ResponseMessage: "olá"}

	_, err := svc.Get(ctx, member("co_2"), "", "ar_1")
	assert.ErrorIs(t, err, driven.ErrNotFound)

	_, err = svc.Update(ctx, admin("co_2"), "ar_1", in)
	assert.ErrorIs(t, err, driven.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, admin("co_2"), "", "ar_1"), driven.ErrNotFound)

	_, err = svc.SetActive(ctx, admin("co_2"), "", "ar_1", false)
	assert.ErrorIs(t, err, driven.ErrNotFound)

	_, err = svc.List(ctx, member("co_2"), "co_1")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(ctx, member("co_1"), in)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.True(t, store.rule("ar_1").IsActive)
}

func TestAutoResponseService_Validation(t *testing.T) {
	svc := NewAutoResponseService(newMockRuleStore(), testRetry)

	tests := []struct {
		name      string
		in        RuleInput
		wantField string
	}{
		{name: "missing name", in: RuleInput{Keywords: []string{"a"}, ResponseMessage: "r"}, wantField: "name"},
		{name: "blank keywords", in: RuleInput{Name: "n", Keywords: []string{" ", ""}, ResponseMessage: "r"}, wantField: "keywords"},
		{name: "bad match type", in: RuleInput{Name: "n", Keywords: []string{"a"}, MatchType: "regex", ResponseMessage: "r"}, wantField: "matchType"},
		{name: "missing response", in: RuleInput{Name: "n", Keywords: []string{"a"}}, wantField: "responseMessage"},
		{name: "markup only response", in: RuleInput{Name: "n", Keywords: []string{"a"}, ResponseMessage: "<p> </p>"}, wantField: "responseMessage"},
		{name: "response too long", in: RuleInput{Name: "n", Keywords: []string{"a"}, ResponseMessage: strings.Repeat("a", maxTemplateLength+1)}, wantField: "responseMessage"},
		{name: "negative priority", in: RuleInput{Name: "n", Keywords: []string{"a"}, ResponseMessage: "r", Priority: -1}, wantField: "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), admin("co_1"), tt.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestAutoResponseService_StripsMarkup(t *testing.T) {
	store := newMockRuleStore()
	svc := NewAutoResponseService(store, testRetry)
	ctx := context.Background()

	created, err := svc.Create(ctx, admin("co_1"), RuleInput{
		Name:            "Horário",
		Keywords:        []string{"horário"},
		ResponseMessage: `<script>alert(1)</script><b>Abrimos</b> às 9h & fechamos às 18h`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Abrimos às 9h & fechamos às 18h", created.ResponseMessage)
	assert.Equal(t, created.ResponseMessage, store.rule(created.ID).ResponseMessage)

	updated, err := svc.Update(ctx, admin("co_1"), created.ID, RuleInput{
		Name:            "Horário",
		Keywords:        []string{"horário"},
		ResponseMessage: `<a href="javascript:x()">Veja</a> o site`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Veja o site", updated.ResponseMessage)
}
