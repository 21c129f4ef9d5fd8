package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

func testRule(id string, priority int, created time.Time) model.AutoResponseRule {
	return model.AutoResponseRule{
		ID:              id,
		CompanyID:       "co-1",
		Name:            "rule " + id,
		Keywords:        []string{"preço", "valor"},
		MatchType:       model.MatchContains,
		ResponseMessage: "Nossos preços estão no site.",
		Priority:        priority,
		IsActive:        true,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func TestAutoResponseRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAutoResponseRepo(db)
	ctx := context.Background()

	rule := testRule("ar_1", 5, fixedTime(0))
	rule.CaseSensitive = true
	require.NoError(t, repo.Create(ctx, rule))

	got, err := repo.Get(ctx, "co-1", "ar_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rule, *got)

	foreign, err := repo.Get(ctx, "co-2", "ar_1")
	require.NoError(t, err)
	assert.Nil(t, foreign)
}

func TestAutoResponseRepo_EvaluationOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAutoResponseRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRule("ar_low", 1, fixedTime(0))))
	require.NoError(t, repo.Create(ctx, testRule("ar_high_late", 10, fixedTime(time.Hour))))
	require.NoError(t, repo.Create(ctx, testRule("ar_high_early", 10, fixedTime(0))))
	inactive := testRule("ar_off", 99, fixedTime(0))
	inactive.IsActive = false
	require.NoError(t, repo.Create(ctx, inactive))

	active, err := repo.ListActive(ctx, "co-1")
	require.NoError(t, err)
	ids := make([]string, 0, len(active))
	for _, r := range active {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"ar_high_early", "ar_high_late", "ar_low"}, ids)

	all, err := repo.List(ctx, "co-1")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "ar_off", all[0].ID)
}

func TestAutoResponseRepo_UpdateKeepsCounters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAutoResponseRepo(db)
	ctx := context.Background()

	rule := testRule("ar_1", 1, fixedTime(0))
	require.NoError(t, repo.Create(ctx, rule))
	require.NoError(t, repo.RecordTrigger(ctx, "co-1", "ar_1", fixedTime(time.Minute)))

	rule.Keywords = []string{"horário"}
	rule.MatchType = model.MatchExact
	rule.UpdatedAt = fixedTime(time.Hour)
	require.NoError(t, repo.Update(ctx, rule))

	got, err := repo.Get(ctx, "co-1", "ar_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"horário"}, got.Keywords)
	assert.Equal(t, model.MatchExact, got.MatchType)
	assert.Equal(t, int64(1), got.TriggerCount)

	rule.CompanyID = "co-2"
	require.ErrorIs(t, repo.Update(ctx, rule), driven.ErrNotFound)
}

func TestAutoResponseRepo_SetActiveAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAutoResponseRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRule("ar_1", 1, fixedTime(0))))

	require.NoError(t, repo.SetActive(ctx, "co-1", "ar_1", false))
	active, err := repo.ListActive(ctx, "co-1")
	require.NoError(t, err)
	assert.Empty(t, active)

	require.ErrorIs(t, repo.Delete(ctx, "co-2", "ar_1"), driven.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "co-1", "ar_1"))
	require.ErrorIs(t, repo.Delete(ctx, "co-1", "ar_1"), driven.ErrNotFound)
}

func TestAutoResponseRepo_RecordTriggerConcurrent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAutoResponseRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRule("ar_1", 1, fixedTime(0))))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.RecordTrigger(ctx, "co-1", "ar_1", fixedTime(time.Minute)))
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, "co-1", "ar_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(n), got.TriggerCount)
	require.NotNil(t, got.LastTriggeredAt)
	assert.Equal(t, fixedTime(time.Minute), *got.LastTriggeredAt)

	require.ErrorIs(t, repo.RecordTrigger(ctx, "co-1", "missing", fixedTime(0)), driven.ErrNotFound)
}
