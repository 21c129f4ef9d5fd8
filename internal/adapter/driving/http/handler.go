package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/leadinbox/internal/application"
)

// maxBodyBytes bounds every request body read by the handlers.
const maxBodyBytes = 1 << 20

// Services groups the use cases served over HTTP.
type Services struct {
	Webhooks      *application.WebhookService
	Monitor       *application.MonitorService
	Keepalive     *application.KeepaliveScheduler
	AutoResponses *application.AutoResponseService
	BusinessHours *application.BusinessHoursService
	Settings      *application.SettingsService
	Automation    *application.AutomationService
	Credentials   *application.CredentialService
	Messaging     *application.MessagingService
	Health        *application.HealthService
}

// Handler is the HTTP driving adapter that serves the REST API and the
// provider webhooks.
type Handler struct {
	svc       Services
	tokens    TokenValidator
	cronToken string
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. An empty
// cronToken disables the cron endpoints.
func NewHandler(svc Services, tokens TokenValidator, cronToken string, logger *slog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		tokens:    tokens,
		cronToken: cronToken,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	auth := h.authenticated

	// Provider callbacks authenticate with their own signatures.
	mux.HandleFunc("POST /webhooks/{webhookId}", h.PaymentWebhook)
	mux.HandleFunc("POST /webhooks/monitor/{instanceId}", h.MonitorTelemetry)

	mux.HandleFunc("GET /api/v1/monitor", auth(h.MonitorOverview))
	mux.HandleFunc("POST /api/v1/monitor/instances", auth(h.CreateInstance))
	mux.HandleFunc("DELETE /api/v1/monitor/instances/{id}", auth(h.DeactivateInstance))
	mux.HandleFunc("PATCH /api/v1/monitor/errors/{id}/resolve", auth(h.ResolveError))

	mux.HandleFunc("GET /api/v1/webhook-agents", auth(h.ListAgents))
	mux.HandleFunc("POST /api/v1/webhook-agents", auth(h.CreateAgent))
	mux.HandleFunc("DELETE /api/v1/webhook-agents/{id}", auth(h.DeactivateAgent))
	mux.HandleFunc("GET /api/v1/webhook-agents/{id}/charges", auth(h.ListCharges))

	mux.HandleFunc("GET /api/v1/automation/auto-responses", auth(h.ListRules))
	mux.HandleFunc("POST /api/v1/automation/auto-responses", auth(h.CreateRule))
	mux.HandleFunc("GET /api/v1/automation/auto-responses/{id}", auth(h.GetRule))
	mux.HandleFunc("PUT /api/v1/automation/auto-responses/{id}", auth(h.UpdateRule))
	mux.HandleFunc("PATCH /api/v1/automation/auto-responses/{id}", auth(h.SetRuleActive))
	mux.HandleFunc("DELETE /api/v1/automation/auto-responses/{id}", auth(h.DeleteRule))

	mux.HandleFunc("GET /api/v1/automation/business-hours", auth(h.GetBusinessHours))
	mux.HandleFunc("PUT /api/v1/automation/business-hours", auth(h.UpdateBusinessHours))
	mux.HandleFunc("GET /api/v1/automation/settings", auth(h.GetSettings))
	mux.HandleFunc("PUT /api/v1/automation/settings", auth(h.UpdateSettings))
	mux.HandleFunc("POST /api/v1/automation/evaluate", auth(h.Evaluate))
	mux.HandleFunc("POST /api/v1/whatsapp/inbound", auth(h.Inbound))

	mux.HandleFunc("GET /api/v1/integrations/whatsapp", auth(h.GetGateway))
	mux.HandleFunc("PUT /api/v1/integrations/whatsapp", auth(h.UpdateGateway))
	mux.HandleFunc("GET /api/v1/integrations/ai", auth(h.GetAIProvider))
	mux.HandleFunc("PUT /api/v1/integrations/ai", auth(h.UpdateAIProvider))

	mux.HandleFunc("POST /api/v1/whatsapp/send/text", auth(h.SendText))
	mux.HandleFunc("POST /api/v1/whatsapp/send/media", auth(h.SendMedia))
	mux.HandleFunc("POST /api/v1/whatsapp/presence/typing", auth(h.SetTyping))
	mux.HandleFunc("POST /api/v1/whatsapp/message/react", auth(h.React))
	mux.HandleFunc("POST /api/v1/whatsapp/message/delete", auth(h.DeleteMessage))
	mux.HandleFunc("POST /api/v1/whatsapp/link-preview", auth(h.LinkPreview))

	mux.HandleFunc("POST /api/v1/cron/keepalive", h.CronKeepalive)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// CronKeepalive runs a keepalive sweep on behalf of the external scheduler
// and reports how many instances were checked.
func (h *Handler) CronKeepalive(w http.ResponseWriter, r *http.Request) {
	if !h.cronAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid cron token")
		return
	}

	result, err := h.svc.Keepalive.Trigger(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "cron keepalive", err)
		return
	}

	writeData(w, http.StatusOK, KeepaliveResponse{Checked: result.Checked, Failed: result.Failed})
}

// Health reports the state of the database and the event bus. A degraded
// dependency turns the response into a 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.svc.Health.Check(r.Context())

	resp := HealthResponse{
		Status:     report.Status,
		Time:       time.Now().UTC().Format(time.RFC3339),
		Components: make([]ComponentResponse, 0, len(report.Components)),
	}
	for _, c := range report.Components {
		resp.Components = append(resp.Components, ComponentResponse{Name: c.Name, Status: c.Status, Error: c.Error})
	}

	status := http.StatusOK
	if report.Status != application.HealthOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a bounded JSON body into dst. It writes the 400 response
// itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// readBody returns the raw bounded body, used where signatures are computed
// over the exact bytes received.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "could not read request body")
		return nil, false
	}
	return body, true
}
