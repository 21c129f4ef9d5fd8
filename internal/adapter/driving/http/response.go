package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/application"
	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/reliability/reconnect"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeData wraps v in the success envelope.
func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, dataResponse{Success: true, Data: v})
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// dataResponse is the standard success body.
type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// errorResponse is the standard error body. Field is set for validation errors.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeServiceError maps an application error onto its HTTP status. Only
// server-side failures are logged; client errors are already in the request log.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		verr *application.ValidationError
		gerr *driven.GatewayError
		derr *driven.DecryptionError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: verr.Message, Field: verr.Field})
	case errors.Is(err, application.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, application.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, driven.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMessage(err))
	case errors.Is(err, driven.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.As(err, &gerr):
		h.logger.Warn("messaging gateway rejected call", "op", op, "gateway_op", gerr.Op, "status", gerr.StatusCode)
		writeError(w, http.StatusBadGateway, "messaging gateway error")
	case errors.Is(err, reconnect.ErrRetriesExhausted):
		h.logger.Error("database unavailable", "op", op, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "database temporarily unavailable")
	case errors.As(err, &derr):
		h.logger.Error("stored secret could not be decrypted", "op", op, "reason", derr.Reason)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		h.logger.Error("request failed", "op", op, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, application.ErrChannelNotFound):
		return "webhook channel not found"
	case errors.Is(err, application.ErrInstanceNotFound):
		return "monitored instance not found"
	case errors.Is(err, application.ErrGatewayNotConfigured):
		return "whatsapp gateway not configured"
	}
	return "not found"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// AgentResponse is the JSON representation of a payment webhook channel.
type AgentResponse struct {
	ID         string `json:"id"`
	CompanyID  string `json:"companyId"`
	Name       string `json:"name"`
	WebhookID  string `json:"webhookId"`
	WebhookURL string `json:"webhookUrl"`
	HasSecret  bool   `json:"hasSecret"`
	Active     bool   `json:"active"`
	Secret     string `json:"secret,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

// ChargeResponse is the JSON representation of a reconciled charge.
type ChargeResponse struct {
	ID          string           `json:"id"`
	AgentID     string           `json:"agentId"`
	ExternalID  string           `json:"externalId"`
	Event       string           `json:"event"`
	Status      string           `json:"status"`
	AmountCents int64            `json:"amountCents"`
	DueDate     *string          `json:"dueDate"`
	PaidAt      *string          `json:"paidAt"`
	Customer    CustomerResponse `json:"customer"`
	CreatedAt   string           `json:"createdAt"`
	UpdatedAt   string           `json:"updatedAt"`
}

// CustomerResponse is the payer snapshot of a charge.
type CustomerResponse struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	CPFCNPJ string `json:"cpfCnpj"`
}

// DeliveryResponse acknowledges an applied payment webhook. It is written at
// the top level, outside the data envelope.
type DeliveryResponse struct {
	Success  bool   `json:"success"`
	Event    string `json:"event"`
	ChargeID string `json:"chargeId"`
	Status   string `json:"status"`
}

// InstanceResponse is the JSON representation of a monitored instance. The
// API key is never returned.
type InstanceResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	URL           string  `json:"url"`
	Active        bool    `json:"active"`
	CheckInterval int     `json:"checkInterval"`
	LastCheckedAt *string `json:"lastCheckedAt"`
	CreatedAt     string  `json:"createdAt"`
}

// MonitoredErrorResponse is one telemetry error. InstanceName is empty when
// the instance was removed.
type MonitoredErrorResponse struct {
	ID           string  `json:"id"`
	InstanceID   string  `json:"instanceId"`
	InstanceName string  `json:"instanceName"`
	Severity     string  `json:"severity"`
	Message      string  `json:"message"`
	Workflow     string  `json:"workflow"`
	Timestamp    string  `json:"timestamp"`
	Resolved     bool    `json:"resolved"`
	ResolvedAt   *string `json:"resolvedAt"`
}

// MonitorStatsResponse aggregates the last 24 hours of telemetry.
type MonitorStatsResponse struct {
	TotalInstances  int            `json:"totalInstances"`
	ActiveInstances int            `json:"activeInstances"`
	Errors24h       int            `json:"errors24h"`
	UptimeAverage   float64        `json:"uptimeAverage"`
	BySeverity      map[string]int `json:"bySeverity"`
}

// MonitorOverviewResponse is the monitoring dashboard payload.
type MonitorOverviewResponse struct {
	Instances []InstanceResponse       `json:"instances"`
	Errors    []MonitoredErrorResponse `json:"errors"`
	Stats     MonitorStatsResponse     `json:"stats"`
}

// RuleResponse is the JSON representation of an auto-response rule.
type RuleResponse struct {
	ID              string   `json:"id"`
	CompanyID       string   `json:"companyId"`
	Name            string   `json:"name"`
	Keywords        []string `json:"keywords"`
	MatchType       string   `json:"matchType"`
	CaseSensitive   bool     `json:"caseSensitive"`
	ResponseMessage string   `json:"responseMessage"`
	Priority        int      `json:"priority"`
	IsActive        bool     `json:"isActive"`
	TriggerCount    int64    `json:"triggerCount"`
	LastTriggeredAt *string  `json:"lastTriggeredAt"`
	CreatedAt       string   `json:"createdAt"`
	UpdatedAt       string   `json:"updatedAt"`
}

// BusinessHoursDay is one weekday of the business-hours schedule, used for
// both requests and responses.
type BusinessHoursDay struct {
	DayOfWeek int    `json:"dayOfWeek"`
	IsEnabled bool   `json:"isEnabled"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Timezone  string `json:"timezone"`
}

// SettingsResponse is the JSON representation of the automation settings.
type SettingsResponse struct {
	CompanyID          string `json:"companyId"`
	WelcomeEnabled     bool   `json:"welcomeEnabled"`
	WelcomeMessage     string `json:"welcomeMessage"`
	AwayEnabled        bool   `json:"awayEnabled"`
	AwayMessage        string `json:"awayMessage"`
	AfterHoursEnabled  bool   `json:"afterHoursEnabled"`
	AfterHoursMessage  string `json:"afterHoursMessage"`
	AvailabilityStatus string `json:"availabilityStatus"`
}

// DecisionResponse is the outcome of an automation evaluation.
type DecisionResponse struct {
	Kind    string `json:"kind"`
	Policy  string `json:"policy,omitempty"`
	Message string `json:"message,omitempty"`
	RuleID  string `json:"ruleId,omitempty"`
}

// ReplyResponse is the outcome of an inbound message evaluation.
type ReplyResponse struct {
	Decision  DecisionResponse `json:"decision"`
	MessageID string           `json:"messageId,omitempty"`
}

// GatewayResponse is the masked WhatsApp gateway configuration.
type GatewayResponse struct {
	Configured   bool    `json:"configured"`
	InstanceURL  string  `json:"instanceUrl"`
	InstanceName string  `json:"instanceName"`
	Token        string  `json:"token"`
	UpdatedAt    *string `json:"updatedAt"`
}

// AIProviderResponse is the masked AI provider configuration.
type AIProviderResponse struct {
	Configured bool    `json:"configured"`
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
	APIKey     string  `json:"apiKey"`
	UpdatedAt  *string `json:"updatedAt"`
}

// SentMessageResponse is the gateway acknowledgement of an outbound message.
type SentMessageResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// LinkPreviewResponse is the metadata extracted from a shared URL.
type LinkPreviewResponse struct {
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Fallback    bool   `json:"fallback"`
}

// KeepaliveResponse summarises one keepalive sweep.
type KeepaliveResponse struct {
	Checked int `json:"checked"`
	Failed  int `json:"failed"`
}

// HealthResponse is the JSON response for the health endpoint.
type HealthResponse struct {
	Status     string              `json:"status"`
	Time       string              `json:"time"`
	Components []ComponentResponse `json:"components"`
}

// ComponentResponse is the health of one runtime dependency.
type ComponentResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func toAgentResponse(a model.WebhookAgent) AgentResponse {
	return AgentResponse{
		ID:         a.ID,
		CompanyID:  a.CompanyID,
		Name:       a.Name,
		WebhookID:  a.WebhookID,
		WebhookURL: "/webhooks/" + a.WebhookID,
		HasSecret:  a.HasSecret(),
		Active:     a.Active,
		CreatedAt:  formatTime(a.CreatedAt),
	}
}

func toChargeResponse(c model.Charge) ChargeResponse {
	return ChargeResponse{
		ID:          c.ID,
		AgentID:     c.AgentID,
		ExternalID:  c.ExternalID,
		Event:       c.Event,
		Status:      string(c.Status),
		AmountCents: c.AmountCents,
		DueDate:     formatTimePtr(c.DueDate),
		PaidAt:      formatTimePtr(c.PaidAt),
		Customer: CustomerResponse{
			Name:    c.Customer.Name,
			Email:   c.Customer.Email,
			CPFCNPJ: c.Customer.CPFCNPJ,
		},
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
}

func toInstanceResponse(i model.MonitoredInstance) InstanceResponse {
	return InstanceResponse{
		ID:            i.ID,
		Name:          i.Name,
		URL:           i.URL,
		Active:        i.Active,
		CheckInterval: i.CheckInterval,
		LastCheckedAt: formatTimePtr(i.LastCheckedAt),
		CreatedAt:     formatTime(i.CreatedAt),
	}
}

func toMonitoredErrorResponse(e model.MonitoredError, instanceName string) MonitoredErrorResponse {
	return MonitoredErrorResponse{
		ID:           e.ID,
		InstanceID:   e.InstanceID,
		InstanceName: instanceName,
		Severity:     string(e.Severity),
		Message:      e.Message,
		Workflow:     e.Workflow,
		Timestamp:    formatTime(e.Timestamp),
		Resolved:     e.Resolved,
		ResolvedAt:   formatTimePtr(e.ResolvedAt),
	}
}

func toMonitorOverviewResponse(o *application.MonitorOverview) MonitorOverviewResponse {
	resp := MonitorOverviewResponse{
		Instances: make([]InstanceResponse, 0, len(o.Instances)),
		Errors:    make([]MonitoredErrorResponse, 0, len(o.Errors)),
		Stats: MonitorStatsResponse{
			TotalInstances:  o.Stats.TotalInstances,
			ActiveInstances: o.Stats.ActiveInstances,
			Errors24h:       o.Stats.Errors24h,
			UptimeAverage:   o.Stats.UptimeAverage,
			BySeverity:      make(map[string]int, len(o.Stats.BySeverity)),
		},
	}
	for _, inst := range o.Instances {
		resp.Instances = append(resp.Instances, toInstanceResponse(inst))
	}
	for _, e := range o.Errors {
		resp.Errors = append(resp.Errors, toMonitoredErrorResponse(e.MonitoredError, e.InstanceName))
	}
	for sev, n := range o.Stats.BySeverity {
		resp.Stats.BySeverity[string(sev)] = n
	}
	return resp
}

func toRuleResponse(r model.AutoResponseRule) RuleResponse {
	keywords := r.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return RuleResponse{
		ID:              r.ID,
		CompanyID:       r.CompanyID,
		Name:            r.Name,
		Keywords:        keywords,
		MatchType:       string(r.MatchType),
		CaseSensitive:   r.CaseSensitive,
		ResponseMessage: r.ResponseMessage,
		Priority:        r.Priority,
		IsActive:        r.IsActive,
		TriggerCount:    r.TriggerCount,
		LastTriggeredAt: formatTimePtr(r.LastTriggeredAt),
		CreatedAt:       formatTime(r.CreatedAt),
		UpdatedAt:       formatTime(r.UpdatedAt),
	}
}

func toBusinessHoursDays(rows []model.BusinessHours) []BusinessHoursDay {
	days := make([]BusinessHoursDay, 0, len(rows))
	for _, row := range rows {
		days = append(days, BusinessHoursDay{
			DayOfWeek: row.DayOfWeek,
			IsEnabled: row.IsEnabled,
			StartTime: row.StartTime,
			EndTime:   row.EndTime,
			Timezone:  row.Timezone,
		})
	}
	return days
}

func toSettingsResponse(s model.AutomationSettings) SettingsResponse {
	return SettingsResponse{
		CompanyID:          s.CompanyID,
		WelcomeEnabled:     s.WelcomeEnabled,
		WelcomeMessage:     s.WelcomeMessage,
		AwayEnabled:        s.AwayEnabled,
		AwayMessage:        s.AwayMessage,
		AfterHoursEnabled:  s.AfterHoursEnabled,
		AfterHoursMessage:  s.AfterHoursMessage,
		AvailabilityStatus: string(s.AvailabilityStatus),
	}
}

func toDecisionResponse(d application.Decision) DecisionResponse {
	kind := d.Kind
	if kind == "" {
		kind = application.DecisionNone
	}
	return DecisionResponse{
		Kind:    string(kind),
		Policy:  string(d.Policy),
		Message: d.Message,
		RuleID:  d.RuleID,
	}
}

func toGatewayResponse(v *application.GatewayView) GatewayResponse {
	return GatewayResponse{
		Configured:   v.Configured,
		InstanceURL:  v.InstanceURL,
		InstanceName: v.InstanceName,
		Token:        v.Token,
		UpdatedAt:    formatTimePtr(v.UpdatedAt),
	}
}

func toAIProviderResponse(v *application.AIProviderView) AIProviderResponse {
	return AIProviderResponse{
		Configured: v.Configured,
		Provider:   v.Provider,
		Model:      v.Model,
		APIKey:     v.APIKey,
		UpdatedAt:  formatTimePtr(v.UpdatedAt),
	}
}

func toSentMessageResponse(m *driven.SentMessage) SentMessageResponse {
	if m == nil {
		return SentMessageResponse{}
	}
	return SentMessageResponse{MessageID: m.MessageID, Status: m.Status}
}

func toLinkPreviewResponse(p model.LinkPreview) LinkPreviewResponse {
	return LinkPreviewResponse{
		URL:         p.URL,
		Domain:      p.Domain,
		Title:       p.Title,
		Description: p.Description,
		Image:       p.Image,
		Fallback:    p.Fallback,
	}
}
