package httphandler

import (
	"net/http"

	"github.com/ericfisherdev/leadinbox/internal/application"
)

// CreateInstanceRequest is the body of POST /api/v1/monitor/instances.
type CreateInstanceRequest struct {
	CompanyID     string `json:"companyId"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	APIKey        string `json:"apiKey"`
	CheckInterval int    `json:"checkInterval"`
}

// MonitorOverview returns instances, recent errors and 24h stats.
func (h *Handler) MonitorOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.svc.Monitor.Overview(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"))
	if err != nil {
		h.writeServiceError(w, r, "monitor overview", err)
		return
	}

	writeData(w, http.StatusOK, toMonitorOverviewResponse(overview))
}

// CreateInstance registers an automation node for monitoring.
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req CreateInstanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inst, err := h.svc.Monitor.CreateInstance(r.Context(), principalFrom(r.Context()), application.CreateInstanceInput{
		CompanyID:     req.CompanyID,
		Name:          req.Name,
		URL:           req.URL,
		APIKey:        req.APIKey,
		CheckInterval: req.CheckInterval,
	})
	if err != nil {
		h.writeServiceError(w, r, "create monitored instance", err)
		return
	}

	writeData(w, http.StatusCreated, toInstanceResponse(*inst))
}

// DeactivateInstance stops monitoring an instance. Its errors are kept.
func (h *Handler) DeactivateInstance(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Monitor.DeactivateInstance(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "deactivate monitored instance", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResolveError marks a monitored error as resolved.
func (h *Handler) ResolveError(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Monitor.ResolveError(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "resolve monitored error", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
