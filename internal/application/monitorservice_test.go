package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

var monitorNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type monitorFixture struct {
	svc        *MonitorService
	store      *mockMonitorStore
	pinger     *mockPinger
	publisher  *mockPublisher
	dispatcher *Dispatcher
}

func newMonitorFixture() *monitorFixture {
	f := &monitorFixture{
		store:      newMockMonitorStore(),
		pinger:     &mockPinger{fail: map[string]error{}},
		publisher:  &mockPublisher{},
		dispatcher: newTestDispatcher(),
	}
	f.svc = NewMonitorService(f.store, &mockVault{}, f.pinger, f.publisher, f.dispatcher, testRetry)
	f.svc.now = func() time.Time { return monitorNow }
	return f
}

func (f *monitorFixture) createInstance(t *testing.T, companyID, name string) *model.MonitoredInstance {
	t.Helper()
	inst, err := f.svc.CreateInstance(context.Background(), admin(companyID), CreateInstanceInput{
		Name:   name,
		URL:    "https://" + name + ".example.com/",
		APIKey: "key-" + name,
	})
	require.NoError(t, err)
	return inst
}

func telemetry(t *testing.T, payload map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func TestMonitorService_CreateInstance(t *testing.T) {
	f := newMonitorFixture()

	inst := f.createInstance(t, "co_1", "n8n")

	assert.Equal(t, "https://n8n.example.com", inst.URL)
	assert.Equal(t, "enc:key-n8n", inst.APIKey)
	assert.Equal(t, defaultCheckInterval, inst.CheckInterval)
	assert.True(t, inst.Active)

	tests := []struct {
		name      string
		in        CreateInstanceInput
		wantField string
	}{
		{name: "missing name", in: CreateInstanceInput{URL: "https://x.io", APIKey: "k"}, wantField: "name"},
		{name: "relative url", in: CreateInstanceInput{Name: "x", URL: "/webhook", APIKey: "k"}, wantField: "url"},
		{name: "ftp url", in: CreateInstanceInput{Name: "x", URL: "ftp://x.io", APIKey: "k"}, wantField: "url"},
		{name: "missing key", in: CreateInstanceInput{Name: "x", URL: "https://x.io"}, wantField: "apiKey"},
		{name: "interval too short", in: CreateInstanceInput{Name: "x", URL: "https://x.io", APIKey: "k", CheckInterval: 5}, wantField: "checkInterval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateInstance(context.Background(), admin("co_1"), tt.in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestMonitorService_IngestTelemetry(t *testing.T) {
	f := newMonitorFixture()
	inst := f.createInstance(t, "co_1", "n8n")
	body := telemetry(t, map[string]any{
		"severity":  "critical",
		"message":   "Workflow crashed",
		"workflow":  "billing",
		"timestamp": "2026-03-10T11:30:00Z",
	})

	e, err := f.svc.IngestTelemetry(context.Background(), inst.ID, sign(body, "key-n8n"), body)
	require.NoError(t, err)

	assert.Equal(t, "co_1", e.CompanyID)
	assert.Equal(t, inst.ID, e.InstanceID)
	assert.Equal(t, model.SeverityCritical, e.Severity)
	assert.Equal(t, "billing", e.Workflow)
	assert.Equal(t, time.Date(2026, 3, 10, 11, 30, 0, 0, time.UTC), e.Timestamp)
	assert.Equal(t, 1, f.store.errorCount())

	drain(t, f.dispatcher)
	assert.Equal(t, []string{driven.TopicMonitorError}, f.publisher.topics())
}

func TestMonitorService_IngestTelemetry_TruncatesOnRuneBoundary(t *testing.T) {
	f := newMonitorFixture()
	inst := f.createInstance(t, "co_1", "n8n")
	body := telemetry(t, map[string]any{
		"severity": "high",
		"message":  "a" + strings.Repeat("ção", maxTelemetryMessage),
	})

	e, err := f.svc.IngestTelemetry(context.Background(), inst.ID, sign(body, "key-n8n"), body)
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(e.Message))
	assert.Equal(t, maxTelemetryMessage, utf8.RuneCountInString(e.Message))
	assert.True(t, strings.HasPrefix(e.Message, "açã"))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo", 5))
	assert.Equal(t, "hé", truncateRunes("héllo", 2))
	assert.Equal(t, "", truncateRunes("é", 0))
}

func TestMonitorService_IngestTelemetry_Rejections(t *testing.T) {
	f := newMonitorFixture()
	ctx := context.Background()
	inst := f.createInstance(t, "co_1", "n8n")
	inactive := f.createInstance(t, "co_1", "old")
	require.NoError(t, f.svc.DeactivateInstance(ctx, admin("co_1"), "", inactive.ID))

	valid := telemetry(t, map[string]any{"severity": "low", "message": "slow"})

	_, err := f.svc.IngestTelemetry(ctx, "ins_missing", sign(valid, "key-n8n"), valid)
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	_, err = f.svc.IngestTelemetry(ctx, inactive.ID, sign(valid, "key-old"), valid)
	assert.ErrorIs(t, err, driven.ErrNotFound)

	_, err = f.svc.IngestTelemetry(ctx, inst.ID, sign(valid, "wrong"), valid)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.IngestTelemetry(ctx, inst.ID, "", valid)
	assert.ErrorIs(t, err, ErrForbidden)

	invalidBodies := []struct {
		name      string
		body      []byte
		wantField string
	}{
		{name: "unknown severity", body: telemetry(t, map[string]any{"severity": "fatal", "message": "x"}), wantField: "severity"},
		{name: "empty message", body: telemetry(t, map[string]any{"severity": "low", "message": " "}), wantField: "message"},
		{name: "bad timestamp", body: telemetry(t, map[string]any{"severity": "low", "message": "x", "timestamp": "yesterday"}), wantField: "timestamp"},
	}
	for _, tt := range invalidBodies {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.IngestTelemetry(ctx, inst.ID, sign(tt.body, "key-n8n"), tt.body)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}

	assert.Equal(t, 0, f.store.errorCount())
}

func TestMonitorService_Overview(t *testing.T) {
	f := newMonitorFixture()
	ctx := context.Background()
	a := f.createInstance(t, "co_1", "alpha")
	b := f.createInstance(t, "co_1", "beta")
	f.createInstance(t, "co_2", "gamma")

	record := func(instanceID string, sev model.Severity, ago time.Duration) {
		require.NoError(t, f.store.RecordError(ctx, model.MonitoredError{
			ID:         fmt.Sprintf("err_%s_%s_%d", instanceID, sev, ago),
			CompanyID:  "co_1",
			InstanceID: instanceID,
			Severity:   sev,
			Message:    "boom",
			Timestamp:  monitorNow.Add(-ago),
		}))
	}
	record(a.ID, model.SeverityCritical, 30*time.Minute)
	record(a.ID, model.SeverityHigh, 40*time.Minute)
	record(a.ID, model.SeverityHigh, 5*time.Hour+10*time.Minute)
	record(b.ID, model.SeverityHigh, 2*time.Hour+5*time.Minute)
	record(b.ID, model.SeverityLow, 3*time.Hour)
	record("ins_deleted", model.SeverityMedium, time.Hour+time.Minute)
	record(a.ID, model.SeverityCritical, 30*time.Hour)

	overview, err := f.svc.Overview(ctx, admin("co_1"), "")
	require.NoError(t, err)

	assert.Len(t, overview.Instances, 2)
	assert.Len(t, overview.Errors, 7)
	assert.Equal(t, 2, overview.Stats.TotalInstances)
	assert.Equal(t, 2, overview.Stats.ActiveInstances)
	assert.Equal(t, 6, overview.Stats.Errors24h)
	assert.Equal(t, map[model.Severity]int{
		model.SeverityLow:      1,
		model.SeverityMedium:   1,
		model.SeverityHigh:     3,
		model.SeverityCritical: 1,
	}, overview.Stats.BySeverity)
	assert.Equal(t, 100.0, overview.Stats.UptimeAverage)

	require.NoError(t, f.svc.DeactivateInstance(ctx, admin("co_1"), "", b.ID))
	overview, err = f.svc.Overview(ctx, admin("co_1"), "")
	require.NoError(t, err)
	assert.Equal(t, 2, overview.Stats.TotalInstances)
	assert.Equal(t, 1, overview.Stats.ActiveInstances)
	assert.Equal(t, 50.0, overview.Stats.UptimeAverage)

	names := map[string]string{}
	for _, e := range overview.Errors {
		names[e.InstanceID] = e.InstanceName
	}
	assert.Equal(t, "alpha", names[a.ID])
	assert.Equal(t, "beta", names[b.ID])
	assert.Equal(t, "", names["ins_deleted"])
}

func TestMonitorService_Overview_Empty(t *testing.T) {
	f := newMonitorFixture()

	overview, err := f.svc.Overview(context.Background(), admin("co_1"), "")
	require.NoError(t, err)

	assert.Empty(t, overview.Instances)
	assert.Empty(t, overview.Errors)
	assert.Equal(t, 0.0, overview.Stats.UptimeAverage)
	assert.Len(t, overview.Stats.BySeverity, 4)

	_, err = f.svc.Overview(context.Background(), member("co_1"), "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMonitorService_ResolveError_TenantScoped(t *testing.T) {
	f := newMonitorFixture()
	ctx := context.Background()
	require.NoError(t, f.store.RecordError(ctx, model.MonitoredError{ID: "err_1", CompanyID: "co_1", Severity: model.SeverityLow, Timestamp: monitorNow}))

	assert.ErrorIs(t, f.svc.ResolveError(ctx, admin("co_2"), "", "err_1"), driven.ErrNotFound)
	require.NoError(t, f.svc.ResolveError(ctx, admin("co_1"), "", "err_1"))

	errs, err := f.store.ListErrors(ctx, "co_1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.True(t, errs[0].Resolved)
	assert.Equal(t, monitorNow, *errs[0].ResolvedAt)
}

func TestMonitorService_Keepalive(t *testing.T) {
	f := newMonitorFixture()
	ok := f.createInstance(t, "co_1", "up")
	down := f.createInstance(t, "co_1", "down")
	off := f.createInstance(t, "co_2", "off")
	require.NoError(t, f.svc.DeactivateInstance(context.Background(), admin("co_2"), "", off.ID))
	f.pinger.fail[down.URL] = errors.New("context deadline exceeded")

	result, err := f.svc.Keepalive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, KeepaliveResult{Checked: 2, Failed: 1}, result)
	assert.Equal(t, "key-up", f.pinger.calls[ok.URL])
	assert.NotContains(t, f.pinger.calls, off.URL)
	assert.Contains(t, f.store.touched, ok.ID)
	assert.Contains(t, f.store.touched, down.ID)

	errs, err := f.store.ListErrors(context.Background(), "co_1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, down.ID, errs[0].InstanceID)
	assert.Equal(t, model.SeverityHigh, errs[0].Severity)
	assert.Equal(t, "keepalive", errs[0].Workflow)
}

func TestUptimeAverage(t *testing.T) {
	tests := []struct {
		name          string
		active, total int
		want          float64
	}{
		{name: "no instances", want: 0},
		{name: "all active", active: 3, total: 3, want: 100},
		{name: "none active", active: 0, total: 2, want: 0},
		{name: "two of three", active: 2, total: 3, want: 66.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, uptimeAverage(tt.active, tt.total), 0.001)
		})
	}
}
