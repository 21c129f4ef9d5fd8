package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/idgen"
	"github.com/ericfisherdev/leadinbox/internal/reliability/reconnect"
)

const (
	overviewErrorLimit   = 100
	statsWindow          = 24 * time.Hour
	defaultCheckInterval = 300
	minCheckInterval     = 30
	keepaliveConcurrency = 4
	maxTelemetryMessage  = 4000
)

// ErrInstanceNotFound is returned for unknown and inactive instances alike.
var ErrInstanceNotFound = fmt.Errorf("instance not found: %w", driven.ErrNotFound)

// CreateInstanceInput registers an automation node for monitoring.
type CreateInstanceInput struct {
	CompanyID     string
	Name          string
	URL           string
	APIKey        string
	CheckInterval int
}

// ErrorView is a monitored error joined with the name of its instance. The
// name is empty when the instance no longer exists.
type ErrorView struct {
	model.MonitoredError
	InstanceName string
}

// MonitorStats aggregates the last 24 hours of telemetry.
type MonitorStats struct {
	TotalInstances  int
	ActiveInstances int
	Errors24h       int
	UptimeAverage   float64
	BySeverity      map[model.Severity]int
}

// MonitorOverview is the dashboard read model.
type MonitorOverview struct {
	Instances []model.MonitoredInstance
	Errors    []ErrorView
	Stats     MonitorStats
}

// KeepaliveResult summarises one keepalive sweep.
type KeepaliveResult struct {
	Checked int
	Failed  int
}

// MonitorService ingests automation-platform telemetry and serves aggregates
// computed at read time.
type MonitorService struct {
	store      driven.MonitorStore
	vault      driven.SecretVault
	pinger     driven.InstancePinger
	publisher  driven.EventPublisher
	dispatcher *Dispatcher
	retry      reconnect.Options
	now        func() time.Time
}

// NewMonitorService wires the monitor dependencies.
func NewMonitorService(
	store driven.MonitorStore,
	vault driven.SecretVault,
	pinger driven.InstancePinger,
	publisher driven.EventPublisher,
	dispatcher *Dispatcher,
	retry reconnect.Options,
) *MonitorService {
	return &MonitorService{
		store:      store,
		vault:      vault,
		pinger:     pinger,
		publisher:  publisher,
		dispatcher: dispatcher,
		retry:      retry,
		now:        time.Now,
	}
}

// CreateInstance stores a new instance with its API key encrypted.
func (s *MonitorService) CreateInstance(ctx context.Context, p *model.Principal, in CreateInstanceInput) (*model.MonitoredInstance, error) {
	companyID, err := adminScope(p, in.CompanyID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	baseURL, err := normalizeBaseURL(in.URL)
	if err != nil {
		return nil, invalid("url", "%v", err)
	}
	if strings.TrimSpace(in.APIKey) == "" {
		return nil, invalid("apiKey", "is required")
	}
	interval := in.CheckInterval
	switch {
	case interval == 0:
		interval = defaultCheckInterval
	case interval < minCheckInterval:
		return nil, invalid("checkInterval", "must be at least %d seconds", minCheckInterval)
	}

	encrypted, err := s.vault.Encrypt(in.APIKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt api key: %w", err)
	}
	id, err := idgen.New(idgen.PrefixInstance)
	if err != nil {
		return nil, err
	}
	instance := model.MonitoredInstance{
		ID:            id,
		CompanyID:     companyID,
		Name:          name,
		URL:           baseURL,
		APIKey:        encrypted,
		Active:        true,
		CheckInterval: interval,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.CreateInstance(ctx, instance); err != nil {
		return nil, err
	}
	slog.Info("monitored instance created", "company_id", companyID, "instance_id", id)
	return &instance, nil
}

// DeactivateInstance stops accepting telemetry and keepalives for an instance.
func (s *MonitorService) DeactivateInstance(ctx context.Context, p *model.Principal, companyID, id string) error {
	companyID, err := adminScope(p, companyID)
	if err != nil {
		return err
	}
	return s.store.DeactivateInstance(ctx, companyID, id)
}

// ResolveError marks an error of the caller's company as resolved.
func (s *MonitorService) ResolveError(ctx context.Context, p *model.Principal, companyID, id string) error {
	companyID, err := adminScope(p, companyID)
	if err != nil {
		return err
	}
	return s.store.ResolveError(ctx, companyID, id, s.now().UTC())
}

type telemetryPayload struct {
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Workflow  string `json:"workflow"`
	Timestamp string `json:"timestamp"`
}

// IngestTelemetry authenticates a telemetry delivery against the instance's
// decrypted API key and appends it as a new error row.
func (s *MonitorService) IngestTelemetry(ctx context.Context, instanceID, signature string, body []byte) (*model.MonitoredError, error) {
	instance, err := reconnect.Do(ctx, retryFor(s.retry, "resolve_instance"), func(ctx context.Context) (*model.MonitoredInstance, error) {
		return s.store.GetInstance(ctx, instanceID)
	})
	if err != nil {
		return nil, err
	}
	if instance == nil || !instance.Active {
		return nil, ErrInstanceNotFound
	}

	apiKey, err := s.vault.Decrypt(instance.APIKey)
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", instance.ID, err)
	}
	if !s.vault.ValidateWebhookSignature(body, signature, apiKey) {
		return nil, ErrForbidden
	}

	var payload telemetryPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, invalid("", "body must be a JSON object")
	}
	severity, err := model.ParseSeverity(strings.ToLower(strings.TrimSpace(payload.Severity)))
	if err != nil {
		return nil, invalid("severity", "must be one of low, medium, high, critical")
	}
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		return nil, invalid("message", "is required")
	}
	message = truncateRunes(message, maxTelemetryMessage)
	occurredAt := s.now().UTC()
	if payload.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, payload.Timestamp)
		if err != nil {
			return nil, invalid("timestamp", "must be an RFC 3339 timestamp")
		}
		occurredAt = ts.UTC()
	}

	e, err := s.recordError(ctx, *instance, severity, message, strings.TrimSpace(payload.Workflow), occurredAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *MonitorService) recordError(ctx context.Context, instance model.MonitoredInstance, severity model.Severity, message, workflow string, at time.Time) (model.MonitoredError, error) {
	id, err := idgen.New(idgen.PrefixError)
	if err != nil {
		return model.MonitoredError{}, err
	}
	e := model.MonitoredError{
		ID:         id,
		CompanyID:  instance.CompanyID,
		InstanceID: instance.ID,
		Severity:   severity,
		Message:    message,
		Workflow:   workflow,
		Timestamp:  at,
	}
	if err := s.store.RecordError(ctx, e); err != nil {
		return model.MonitoredError{}, err
	}

	slog.Info("monitor error recorded",
		"company_id", e.CompanyID,
		"instance_id", e.InstanceID,
		"severity", e.Severity,
	)
	s.dispatcher.Publish(s.publisher, driven.TopicMonitorError, driven.MonitorErrorRecorded{
		CompanyID:  e.CompanyID,
		ErrorID:    e.ID,
		InstanceID: e.InstanceID,
		Severity:   string(e.Severity),
		Message:    e.Message,
		At:         e.Timestamp,
	})
	return e, nil
}

// Overview returns the caller's instances, their latest errors and the
// aggregates over the last 24 hours.
func (s *MonitorService) Overview(ctx context.Context, p *model.Principal, companyID string) (*MonitorOverview, error) {
	companyID, err := adminScope(p, companyID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	since := now.Add(-statsWindow)

	instances, err := reconnect.Do(ctx, retryFor(s.retry, "list_instances"), func(ctx context.Context) ([]model.MonitoredInstance, error) {
		return s.store.ListInstances(ctx, companyID)
	})
	if err != nil {
		return nil, err
	}
	latest, err := reconnect.Do(ctx, retryFor(s.retry, "list_errors"), func(ctx context.Context) ([]model.MonitoredError, error) {
		return s.store.ListErrors(ctx, companyID, time.Time{}, overviewErrorLimit)
	})
	if err != nil {
		return nil, err
	}
	recent, err := reconnect.Do(ctx, retryFor(s.retry, "list_recent_errors"), func(ctx context.Context) ([]model.MonitoredError, error) {
		return s.store.ListErrors(ctx, companyID, since, 0)
	})
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(instances))
	for _, inst := range instances {
		names[inst.ID] = inst.Name
	}
	views := make([]ErrorView, 0, len(latest))
	for _, e := range latest {
		views = append(views, ErrorView{MonitoredError: e, InstanceName: names[e.InstanceID]})
	}

	if instances == nil {
		instances = []model.MonitoredInstance{}
	}
	return &MonitorOverview{
		Instances: instances,
		Errors:    views,
		Stats:     computeStats(instances, recent),
	}, nil
}

func computeStats(instances []model.MonitoredInstance, recent []model.MonitoredError) MonitorStats {
	stats := MonitorStats{
		TotalInstances: len(instances),
		Errors24h:      len(recent),
		BySeverity:     make(map[model.Severity]int, len(model.Severities)),
	}
	for _, sev := range model.Severities {
		stats.BySeverity[sev] = 0
	}
	for _, e := range recent {
		stats.BySeverity[e.Severity]++
	}

	for _, inst := range instances {
		if inst.Active {
			stats.ActiveInstances++
		}
	}
	stats.UptimeAverage = uptimeAverage(stats.ActiveInstances, stats.TotalInstances)
	return stats
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// uptimeAverage is the percentage of registered instances that are active,
// rounded to one decimal. A company without instances reports 0.
func uptimeAverage(active, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(active)/float64(total)*1000) / 10
}

// Keepalive pings every active instance and records a high severity error
// for each one that does not answer.
func (s *MonitorService) Keepalive(ctx context.Context) (KeepaliveResult, error) {
	instances, err := reconnect.Do(ctx, retryFor(s.retry, "list_active_instances"), func(ctx context.Context) ([]model.MonitoredInstance, error) {
		return s.store.ListActiveInstances(ctx)
	})
	if err != nil {
		return KeepaliveResult{}, err
	}

	var (
		mu     sync.Mutex
		result KeepaliveResult
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, keepaliveConcurrency)
	for _, inst := range instances {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			ok := s.checkInstance(ctx, inst)
			mu.Lock()
			result.Checked++
			if !ok {
				result.Failed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	slog.Info("keepalive sweep complete", "checked", result.Checked, "failed", result.Failed)
	return result, ctx.Err()
}

func (s *MonitorService) checkInstance(ctx context.Context, inst model.MonitoredInstance) bool {
	now := s.now().UTC()
	if err := s.store.TouchInstance(ctx, inst.ID, now); err != nil {
		slog.Warn("touch instance failed", "instance_id", inst.ID, "error", err)
	}

	apiKey, err := s.vault.Decrypt(inst.APIKey)
	if err == nil {
		err = s.pinger.Ping(ctx, inst.URL, apiKey)
	}
	if err == nil {
		return true
	}

	slog.Warn("keepalive failed", "instance_id", inst.ID, "error", err)
	msg := "keepalive failed: " + err.Error()
	if _, recErr := s.recordError(ctx, inst, model.SeverityHigh, msg, "keepalive", now); recErr != nil {
		slog.Error("record keepalive error failed", "instance_id", inst.ID, "error", recErr)
	}
	return false
}

// normalizeBaseURL accepts absolute http(s) URLs and strips a trailing slash.
func normalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("must be an absolute http or https URL")
	}
	return strings.TrimRight(u.String(), "/"), nil
}
