package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/reliability/reconnect"
)

var testRetry = reconnect.Options{MaxRetries: 2, BaseDelay: time.Millisecond}

func admin(companyID string) *model.Principal {
	return &model.Principal{UserID: "usr_admin_" + companyID, CompanyID: companyID, Role: model.RoleAdmin}
}

func member(companyID string) *model.Principal {
	return &model.Principal{UserID: "usr_member_" + companyID, CompanyID: companyID, Role: model.RoleMember}
}

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)
}

// drain waits for every background task scheduled on d.
func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Drain(ctx))
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// --- vault ---

type mockVault struct {
	mu  sync.Mutex
	seq int
}

func (m *mockVault) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (m *mockVault) Decrypt(secret string) (string, error) {
	plain, ok := strings.CutPrefix(secret, "enc:")
	if !ok {
		return "", &driven.DecryptionError{Reason: "malformed secret"}
	}
	return plain, nil
}

func (m *mockVault) next(prefix string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return fmt.Sprintf("%s%d", prefix, m.seq)
}

func (m *mockVault) GenerateWebhookID(int) (string, error)     { return m.next("wh"), nil }
func (m *mockVault) GenerateWebhookSecret(int) (string, error) { return m.next("secret"), nil }

func (m *mockVault) ValidateWebhookSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	return hmac.Equal([]byte(strings.TrimPrefix(signature, "sha256=")), []byte(sign(payload, secret)))
}

// --- events ---

type publishedEvent struct {
	topic string
	event any
}

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, topic string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{topic: topic, event: event})
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.topic)
	}
	return out
}

// --- webhook agents and charges ---

type mockAgentStore struct {
	mu     sync.Mutex
	agents map[string]model.WebhookAgent
}

func newMockAgentStore() *mockAgentStore {
	return &mockAgentStore{agents: make(map[string]model.WebhookAgent)}
}

func (m *mockAgentStore) Create(_ context.Context, agent model.WebhookAgent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.WebhookID == agent.WebhookID {
			return driven.ErrAlreadyExists
		}
	}
	m.agents[agent.ID] = agent
	return nil
}

func (m *mockAgentStore) GetByWebhookID(_ context.Context, webhookID string) (*model.WebhookAgent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.WebhookID == webhookID {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *mockAgentStore) Get(_ context.Context, companyID, id string) (*model.WebhookAgent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok || a.CompanyID != companyID {
		return nil, nil
	}
	return &a, nil
}

func (m *mockAgentStore) ListByCompany(_ context.Context, companyID string) ([]model.WebhookAgent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.WebhookAgent
	for _, a := range m.agents {
		if a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAgentStore) Deactivate(_ context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok || a.CompanyID != companyID {
		return driven.ErrNotFound
	}
	a.Active = false
	m.agents[id] = a
	return nil
}

type mockChargeStore struct {
	mu          sync.Mutex
	charges     map[string]model.Charge
	upsertErrs  []error
	upsertCalls int
}

func newMockChargeStore() *mockChargeStore {
	return &mockChargeStore{charges: make(map[string]model.Charge)}
}

func (m *mockChargeStore) Upsert(_ context.Context, c model.Charge) (model.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if len(m.upsertErrs) > 0 {
		err := m.upsertErrs[0]
		m.upsertErrs = m.upsertErrs[1:]
		if err != nil {
			return model.Charge{}, err
		}
	}
	existing, ok := m.charges[c.ExternalID]
	if ok {
		if existing.CompanyID != c.CompanyID {
			return model.Charge{}, driven.ErrAlreadyExists
		}
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
		if c.DueDate == nil {
			c.DueDate = existing.DueDate
		}
		if c.PaidAt == nil {
			c.PaidAt = existing.PaidAt
		}
	}
	m.charges[c.ExternalID] = c
	return c, nil
}

func (m *mockChargeStore) GetByExternalID(_ context.Context, companyID, externalID string) (*model.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[externalID]
	if !ok || c.CompanyID != companyID {
		return nil, nil
	}
	return &c, nil
}

func (m *mockChargeStore) ListByAgent(_ context.Context, companyID, agentID string) ([]model.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Charge
	for _, c := range m.charges {
		if c.CompanyID == companyID && c.AgentID == agentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockChargeStore) CountByExternalID(_ context.Context, externalID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.charges[externalID]; ok {
		return 1, nil
	}
	return 0, nil
}

func (m *mockChargeStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.charges)
}

// --- monitor ---

type mockMonitorStore struct {
	mu        sync.Mutex
	instances map[string]model.MonitoredInstance
	errors    []model.MonitoredError
	touched   map[string]time.Time
}

func newMockMonitorStore() *mockMonitorStore {
	return &mockMonitorStore{
		instances: make(map[string]model.MonitoredInstance),
		touched:   make(map[string]time.Time),
	}
}

func (m *mockMonitorStore) CreateInstance(_ context.Context, inst model.MonitoredInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[inst.ID] = inst
	return nil
}

func (m *mockMonitorStore) GetInstance(_ context.Context, id string) (*model.MonitoredInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, nil
	}
	return &inst, nil
}

func (m *mockMonitorStore) ListInstances(_ context.Context, companyID string) ([]model.MonitoredInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MonitoredInstance
	for _, inst := range m.instances {
		if inst.CompanyID == companyID {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockMonitorStore) ListActiveInstances(_ context.Context) ([]model.MonitoredInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MonitoredInstance
	for _, inst := range m.instances {
		if inst.Active {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *mockMonitorStore) DeactivateInstance(_ context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	if !ok || inst.CompanyID != companyID {
		return driven.ErrNotFound
	}
	inst.Active = false
	m.instances[id] = inst
	return nil
}

func (m *mockMonitorStore) TouchInstance(_ context.Context, id string, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched[id] = checkedAt
	return nil
}

func (m *mockMonitorStore) RecordError(_ context.Context, e model.MonitoredError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, e)
	return nil
}

func (m *mockMonitorStore) ListErrors(_ context.Context, companyID string, since time.Time, limit int) ([]model.MonitoredError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MonitoredError
	for _, e := range m.errors {
		if e.CompanyID == companyID && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockMonitorStore) ResolveError(_ context.Context, companyID, id string, resolvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.errors {
		if e.ID == id && e.CompanyID == companyID {
			m.errors[i].Resolved = true
			m.errors[i].ResolvedAt = &resolvedAt
			return nil
		}
	}
	return driven.ErrNotFound
}

func (m *mockMonitorStore) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

type mockPinger struct {
	mu    sync.Mutex
	fail  map[string]error
	calls map[string]string
}

func (m *mockPinger) Ping(_ context.Context, baseURL, apiKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]string)
	}
	m.calls[baseURL] = apiKey
	return m.fail[baseURL]
}

// --- automation ---

type mockRuleStore struct {
	mu       sync.Mutex
	rules    map[string]model.AutoResponseRule
	triggers chan string
}

func newMockRuleStore(rules ...model.AutoResponseRule) *mockRuleStore {
	m := &mockRuleStore{rules: make(map[string]model.AutoResponseRule), triggers: make(chan string, 16)}
	for _, r := range rules {
		m.rules[r.ID] = r
	}
	return m
}

func (m *mockRuleStore) sorted(companyID string, activeOnly bool) []model.AutoResponseRule {
	var out []model.AutoResponseRule
	for _, r := range m.rules {
		if r.CompanyID == companyID && (!activeOnly || r.IsActive) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *mockRuleStore) List(_ context.Context, companyID string) ([]model.AutoResponseRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(companyID, false), nil
}

func (m *mockRuleStore) ListActive(_ context.Context, companyID string) ([]model.AutoResponseRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(companyID, true), nil
}

func (m *mockRuleStore) Get(_ context.Context, companyID, id string) (*model.AutoResponseRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.CompanyID != companyID {
		return nil, nil
	}
	return &r, nil
}

func (m *mockRuleStore) Create(_ context.Context, rule model.AutoResponseRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *mockRuleStore) Update(_ context.Context, rule model.AutoResponseRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rules[rule.ID]
	if !ok || existing.CompanyID != rule.CompanyID {
		return driven.ErrNotFound
	}
	rule.TriggerCount = existing.TriggerCount
	rule.LastTriggeredAt = existing.LastTriggeredAt
	m.rules[rule.ID] = rule
	return nil
}

func (m *mockRuleStore) Delete(_ context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.CompanyID != companyID {
		return driven.ErrNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *mockRuleStore) SetActive(_ context.Context, companyID, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.CompanyID != companyID {
		return driven.ErrNotFound
	}
	r.IsActive = active
	m.rules[id] = r
	return nil
}

func (m *mockRuleStore) RecordTrigger(_ context.Context, companyID, id string, at time.Time) error {
	m.mu.Lock()
	r, ok := m.rules[id]
	if !ok || r.CompanyID != companyID {
		m.mu.Unlock()
		return driven.ErrNotFound
	}
	r.TriggerCount++
	r.LastTriggeredAt = &at
	m.rules[id] = r
	m.mu.Unlock()
	m.triggers <- id
	return nil
}

func (m *mockRuleStore) rule(id string) model.AutoResponseRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rules[id]
}

type mockHoursStore struct {
	mu          sync.Mutex
	rows        map[string]map[int]model.BusinessHours
	insertCalls int
	replaceErr  error
}

func newMockHoursStore() *mockHoursStore {
	return &mockHoursStore{rows: make(map[string]map[int]model.BusinessHours)}
}

func (m *mockHoursStore) List(_ context.Context, companyID string) ([]model.BusinessHours, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BusinessHours
	for _, r := range m.rows[companyID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

func (m *mockHoursStore) InsertMissing(_ context.Context, rows []model.BusinessHours) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	for _, r := range rows {
		if m.rows[r.CompanyID] == nil {
			m.rows[r.CompanyID] = make(map[int]model.BusinessHours)
		}
		if _, ok := m.rows[r.CompanyID][r.DayOfWeek]; !ok {
			m.rows[r.CompanyID][r.DayOfWeek] = r
		}
	}
	return nil
}

func (m *mockHoursStore) ReplaceDays(_ context.Context, companyID string, rows []model.BusinessHours) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	if m.rows[companyID] == nil {
		m.rows[companyID] = make(map[int]model.BusinessHours)
	}
	for _, r := range rows {
		r.CompanyID = companyID
		m.rows[companyID][r.DayOfWeek] = r
	}
	return nil
}

type mockSettingsStore struct {
	mu       sync.Mutex
	settings map[string]model.AutomationSettings
}

func newMockSettingsStore() *mockSettingsStore {
	return &mockSettingsStore{settings: make(map[string]model.AutomationSettings)}
}

func (m *mockSettingsStore) Get(_ context.Context, companyID string) (*model.AutomationSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[companyID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *mockSettingsStore) Upsert(_ context.Context, s model.AutomationSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.CompanyID] = s
	return nil
}

// --- integrations and gateway ---

type mockIntegrationStore struct {
	mu       sync.Mutex
	gateways map[string]model.GatewayConfig
	ai       map[string]model.AIProviderConfig
}

func newMockIntegrationStore() *mockIntegrationStore {
	return &mockIntegrationStore{
		gateways: make(map[string]model.GatewayConfig),
		ai:       make(map[string]model.AIProviderConfig),
	}
}

func (m *mockIntegrationStore) GetGateway(_ context.Context, companyID string) (*model.GatewayConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.gateways[companyID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *mockIntegrationStore) UpsertGateway(_ context.Context, cfg model.GatewayConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateways[cfg.CompanyID] = cfg
	return nil
}

func (m *mockIntegrationStore) GetAIProvider(_ context.Context, companyID string) (*model.AIProviderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.ai[companyID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *mockIntegrationStore) UpsertAIProvider(_ context.Context, cfg model.AIProviderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ai[cfg.CompanyID] = cfg
	return nil
}

type gatewayCall struct {
	op      string
	creds   driven.GatewayCredentials
	phone   string
	payload string
}

type mockGateway struct {
	mu    sync.Mutex
	calls []gatewayCall
	err   error
}

func (m *mockGateway) record(op string, creds driven.GatewayCredentials, phone, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, gatewayCall{op: op, creds: creds, phone: phone, payload: payload})
	return m.err
}

func (m *mockGateway) SendText(_ context.Context, creds driven.GatewayCredentials, phone, text string) (*driven.SentMessage, error) {
	if err := m.record("send_text", creds, phone, text); err != nil {
		return nil, err
	}
	return &driven.SentMessage{MessageID: "msg-1", Status: "sent"}, nil
}

func (m *mockGateway) SendMedia(_ context.Context, creds driven.GatewayCredentials, phone string, media model.OutboundMedia) (*driven.SentMessage, error) {
	if err := m.record("send_media", creds, phone, media.Type+" "+media.URL); err != nil {
		return nil, err
	}
	return &driven.SentMessage{MessageID: "msg-2", Status: "sent"}, nil
}

func (m *mockGateway) SetTyping(_ context.Context, creds driven.GatewayCredentials, phone string) error {
	return m.record("presence", creds, phone, "")
}

func (m *mockGateway) SendReaction(_ context.Context, creds driven.GatewayCredentials, phone, messageID, emoji string) error {
	return m.record("react", creds, phone, messageID+" "+emoji)
}

func (m *mockGateway) DeleteMessage(_ context.Context, creds driven.GatewayCredentials, phone, messageID string) error {
	return m.record("delete", creds, phone, messageID)
}

func (m *mockGateway) recorded() []gatewayCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gatewayCall(nil), m.calls...)
}

type mockPreviewer struct {
	preview model.LinkPreview
	err     error
}

func (m *mockPreviewer) Preview(_ context.Context, rawURL string) (model.LinkPreview, error) {
	if m.err != nil {
		return model.LinkPreview{}, m.err
	}
	p := m.preview
	p.URL = rawURL
	return p, nil
}
