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

func testCharge(id, companyID, externalID string, status model.ChargeStatus, at time.Time) model.Charge {
	return model.Charge{
		ID:          id,
		CompanyID:   companyID,
		AgentID:     "agt_1",
		ExternalID:  externalID,
		Event:       "PAYMENT_CREATED",
		Status:      status,
		AmountCents: 15000,
		Customer:    model.Customer{Name: "Maria Silva", Email: "maria@example.com", CPFCNPJ: "12345678900"},
		RawPayload:  `{"event":"PAYMENT_CREATED"}`,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func TestChargeRepo_UpsertInserts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChargeRepo(db)
	ctx := context.Background()

	due := fixedTime(72 * time.Hour)
	charge := testCharge("chg_1", "co-1", "pay_1", model.ChargeStatusPending, fixedTime(0))
	charge.DueDate = &due

	saved, err := repo.Upsert(ctx, charge)
	require.NoError(t, err)
	assert.Equal(t, "chg_1", saved.ID)
	assert.Equal(t, fixedTime(0), saved.CreatedAt)

	got, err := repo.GetByExternalID(ctx, "co-1", "pay_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ChargeStatusPending, got.Status)
	assert.Equal(t, int64(15000), got.AmountCents)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, due, *got.DueDate)
	assert.Nil(t, got.PaidAt)
	assert.Equal(t, "Maria Silva", got.Customer.Name)
}

func TestChargeRepo_UpsertIsIdempotentPerExternalID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChargeRepo(db)
	ctx := context.Background()

	due := fixedTime(72 * time.Hour)
	first := testCharge("chg_1", "co-1", "pay_1", model.ChargeStatusPending, fixedTime(0))
	first.DueDate = &due
	_, err := repo.Upsert(ctx, first)
	require.NoError(t, err)

	paid := fixedTime(time.Hour)
	second := testCharge("chg_2", "co-1", "pay_1", model.ChargeStatusReceived, fixedTime(time.Hour))
	second.Event = "PAYMENT_RECEIVED"
	second.PaidAt = &paid

	saved, err := repo.Upsert(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "chg_1", saved.ID, "existing row keeps its id")
	assert.Equal(t, fixedTime(0), saved.CreatedAt)

	n, err := repo.CountByExternalID(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.GetByExternalID(ctx, "co-1", "pay_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ChargeStatusReceived, got.Status)
	assert.Equal(t, "PAYMENT_RECEIVED", got.Event)
	require.NotNil(t, got.DueDate, "due date survives a delivery without one")
	assert.Equal(t, due, *got.DueDate)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, paid, *got.PaidAt)
}

func TestChargeRepo_UpsertConcurrentDuplicates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChargeRepo(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := testCharge("chg_"+string(rune('a'+i)), "co-1", "pay_dup", model.ChargeStatusPending, fixedTime(0))
			_, errs[i] = repo.Upsert(ctx, c)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	n, err := repo.CountByExternalID(ctx, "pay_dup")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChargeRepo_UpsertOtherCompanyConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChargeRepo(db)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, testCharge("chg_1", "co-1", "pay_1", model.ChargeStatusPending, fixedTime(0)))
	require.NoError(t, err)

	_, err = repo.Upsert(ctx, testCharge("chg_2", "co-2", "pay_1", model.ChargeStatusReceived, fixedTime(time.Hour)))
	require.ErrorIs(t, err, driven.ErrAlreadyExists)

	got, err := repo.GetByExternalID(ctx, "co-1", "pay_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ChargeStatusPending, got.Status, "foreign delivery must not modify the row")
}

func TestChargeRepo_ListByAgent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChargeRepo(db)
	ctx := context.Background()

	older := testCharge("chg_1", "co-1", "pay_1", model.ChargeStatusPending, fixedTime(0))
	newer := testCharge("chg_2", "co-1", "pay_2", model.ChargeStatusPending, fixedTime(time.Hour))
	otherAgent := testCharge("chg_3", "co-1", "pay_3", model.ChargeStatusPending, fixedTime(0))
	otherAgent.AgentID = "agt_2"
	for _, c := range []model.Charge{older, newer, otherAgent} {
		_, err := repo.Upsert(ctx, c)
		require.NoError(t, err)
	}

	charges, err := repo.ListByAgent(ctx, "co-1", "agt_1")
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Equal(t, "pay_2", charges[0].ExternalID)
	assert.Equal(t, "pay_1", charges[1].ExternalID)

	foreign, err := repo.ListByAgent(ctx, "co-2", "agt_1")
	require.NoError(t, err)
	assert.Empty(t, foreign)
}

func TestChargeRepo_GetByExternalIDMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChargeRepo(db)

	got, err := repo.GetByExternalID(context.Background(), "co-1", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}
