package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

func TestBusinessHoursService_List_SeedsDefaults(t *testing.T) {
	store := newMockHoursStore()
	svc := NewBusinessHoursService(store, testRetry)
	ctx := context.Background()

	rows, err := svc.List(ctx, member("co_1"), "")
	require.NoError(t, err)
	require.Len(t, rows, 7)
	for day, r := range rows {
		assert.Equal(t, day, r.DayOfWeek)
		assert.Equal(t, "co_1", r.CompanyID)
		assert.Equal(t, "09:00", r.StartTime)
		assert.Equal(t, "18:00", r.EndTime)
		assert.Equal(t, model.DefaultTimezone, r.Timezone)
		assert.Equal(t, day != 0 && day != 6, r.IsEnabled, "day %d", day)
	}

	again, err := svc.List(ctx, member("co_1"), "co_1")
	require.NoError(t, err)
	assert.Equal(t, rows, again)
	assert.Equal(t, 1, store.insertCalls, "second read must not seed again")
}

func TestBusinessHoursService_List_KeepsConfiguredDays(t *testing.T) {
	store := newMockHoursStore()
	store.rows["co_1"] = map[int]model.BusinessHours{
		6: {CompanyID: "co_1", DayOfWeek: 6, IsEnabled: true, StartTime: "08:00", EndTime: "12:00", Timezone: "America/Manaus"},
	}
	svc := NewBusinessHoursService(store, testRetry)

	rows, err := svc.List(context.Background(), member("co_1"), "")
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "08:00", rows[6].StartTime)
	assert.True(t, rows[6].IsEnabled)
}

func TestBusinessHoursService_Update(t *testing.T) {
	store := newMockHoursStore()
	svc := NewBusinessHoursService(store, testRetry)
	ctx := context.Background()

	rows, err := svc.Update(ctx, admin("co_1"), "", []model.BusinessHours{
		{DayOfWeek: 6, IsEnabled: true, StartTime: "10:00", EndTime: "14:00"},
		{DayOfWeek: 1, IsEnabled: true, StartTime: "07:30", EndTime: "19:00", Timezone: "America/Recife"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "07:30", rows[1].StartTime)
	assert.Equal(t, "America/Recife", rows[1].Timezone)
	assert.Equal(t, model.DefaultTimezone, rows[6].Timezone)
	assert.True(t, rows[6].IsEnabled)

	_, err = svc.Update(ctx, member("co_1"), "", rows)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestBusinessHoursService_Update_Validation(t *testing.T) {
	store := newMockHoursStore()
	svc := NewBusinessHoursService(store, testRetry)
	valid := model.BusinessHours{DayOfWeek: 1, StartTime: "09:00", EndTime: "18:00"}

	tests := []struct {
		name      string
		rows      []model.BusinessHours
		wantField string
	}{
		{name: "empty", rows: nil, wantField: "days"},
		{name: "day out of range", rows: []model.BusinessHours{{DayOfWeek: 9, StartTime: "09:00", EndTime: "18:00"}}, wantField: "days[0].dayOfWeek"},
		{name: "duplicate day", rows: []model.BusinessHours{valid, valid}, wantField: "days[1].dayOfWeek"},
		{name: "bad start", rows: []model.BusinessHours{{DayOfWeek: 1, StartTime: "9am", EndTime: "18:00"}}, wantField: "days[0].startTime"},
		{name: "bad end", rows: []model.BusinessHours{{DayOfWeek: 1, StartTime: "09:00", EndTime: "25:00"}}, wantField: "days[0].endTime"},
		{name: "end before start", rows: []model.BusinessHours{{DayOfWeek: 1, StartTime: "18:00", EndTime: "09:00"}}, wantField: "days[0].endTime"},
		{name: "unknown timezone", rows: []model.BusinessHours{{DayOfWeek: 1, StartTime: "09:00", EndTime: "18:00", Timezone: "Mars/Olympus"}}, wantField: "days[0].timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), admin("co_1"), "", tt.rows)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
	assert.Empty(t, store.rows, "invalid updates never reach the store")
}

func TestBusinessHoursService_Update_StoreFailure(t *testing.T) {
	store := newMockHoursStore()
	store.replaceErr = errors.New("disk full")
	svc := NewBusinessHoursService(store, testRetry)

	_, err := svc.Update(context.Background(), admin("co_1"), "", []model.BusinessHours{
		{DayOfWeek: 1, IsEnabled: true, StartTime: "09:00", EndTime: "18:00"},
	})
	assert.EqualError(t, err, "disk full")
}
