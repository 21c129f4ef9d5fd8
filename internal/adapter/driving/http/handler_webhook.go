package httphandler

import (
	"net/http"

	"github.com/ericfisherdev/leadinbox/internal/application"
)

// Header names used by the payment provider and the monitor agents.
const (
	headerAccessToken = "asaas-access-token"
	headerSignature   = "X-Webhook-Signature"
)

// PaymentWebhook reconciles a payment provider delivery into a charge.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	auth := application.DeliveryAuth{
		AccessToken: r.Header.Get(headerAccessToken),
		Signature:   r.Header.Get(headerSignature),
	}
	result, err := h.svc.Webhooks.HandleDelivery(r.Context(), r.PathValue("webhookId"), auth, body)
	if err != nil {
		h.writeServiceError(w, r, "payment webhook", err)
		return
	}

	writeJSON(w, http.StatusOK, DeliveryResponse{
		Success:  true,
		Event:    result.Event,
		ChargeID: result.ChargeID,
		Status:   string(result.Status),
	})
}

// MonitorTelemetry appends an error reported by a monitored instance.
func (h *Handler) MonitorTelemetry(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	e, err := h.svc.Monitor.IngestTelemetry(r.Context(), r.PathValue("instanceId"), r.Header.Get(headerSignature), body)
	if err != nil {
		h.writeServiceError(w, r, "monitor telemetry", err)
		return
	}

	writeData(w, http.StatusCreated, toMonitoredErrorResponse(*e, ""))
}

// CreateAgentRequest is the body of POST /api/v1/webhook-agents.
type CreateAgentRequest struct {
	CompanyID  string `json:"companyId"`
	Name       string `json:"name"`
	WithSecret bool   `json:"withSecret"`
}

// ListAgents returns the payment webhook channels of the caller's company.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.svc.Webhooks.ListAgents(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"))
	if err != nil {
		h.writeServiceError(w, r, "list webhook agents", err)
		return
	}

	resp := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		resp = append(resp, toAgentResponse(a))
	}
	writeData(w, http.StatusOK, resp)
}

// CreateAgent creates a payment webhook channel. The secret, when requested,
// is only returned in this response.
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.svc.Webhooks.CreateAgent(r.Context(), principalFrom(r.Context()), application.CreateAgentInput{
		CompanyID:  req.CompanyID,
		Name:       req.Name,
		WithSecret: req.WithSecret,
	})
	if err != nil {
		h.writeServiceError(w, r, "create webhook agent", err)
		return
	}

	resp := toAgentResponse(created.Agent)
	resp.Secret = created.Secret
	writeData(w, http.StatusCreated, resp)
}

// DeactivateAgent stops a channel from accepting deliveries.
func (h *Handler) DeactivateAgent(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Webhooks.DeactivateAgent(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "deactivate webhook agent", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListCharges returns the charges reconciled through one channel.
func (h *Handler) ListCharges(w http.ResponseWriter, r *http.Request) {
	charges, err := h.svc.Webhooks.ListCharges(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "list charges", err)
		return
	}

	resp := make([]ChargeResponse, 0, len(charges))
	for _, c := range charges {
		resp = append(resp, toChargeResponse(c))
	}
	writeData(w, http.StatusOK, resp)
}
