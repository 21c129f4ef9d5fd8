package httphandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ericfisherdev/leadinbox/internal/application"
	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// KeywordList accepts either a JSON array of keywords or a single comma
// separated string.
type KeywordList []string

// UnmarshalJSON implements json.Unmarshaler.
func (k *KeywordList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = application.SplitKeywords(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("keywords must be a string or an array of strings")
	}
	*k = list
	return nil
}

// RuleRequest is the body of the auto-response create and update endpoints.
type RuleRequest struct {
	CompanyID       string      `json:"companyId"`
	Name            string      `json:"name"`
	Keywords        KeywordList `json:"keywords"`
	MatchType       string      `json:"matchType"`
	CaseSensitive   bool        `json:"caseSensitive"`
	ResponseMessage string      `json:"responseMessage"`
	Priority        int         `json:"priority"`
	IsActive        *bool       `json:"isActive"`
}

func (req RuleRequest) input(companyID string) application.RuleInput {
	if companyID == "" {
		companyID = req.CompanyID
	}
	return application.RuleInput{
		CompanyID:       companyID,
		Name:            req.Name,
		Keywords:        req.Keywords,
		MatchType:       req.MatchType,
		CaseSensitive:   req.CaseSensitive,
		ResponseMessage: req.ResponseMessage,
		Priority:        req.Priority,
		IsActive:        req.IsActive,
	}
}

// SetActiveRequest is the body of PATCH /api/v1/automation/auto-responses/{id}.
type SetActiveRequest struct {
	CompanyID string `json:"companyId"`
	IsActive  *bool  `json:"isActive"`
}

// BusinessHoursRequest is the body of PUT /api/v1/automation/business-hours.
type BusinessHoursRequest struct {
	CompanyID string             `json:"companyId"`
	Days      []BusinessHoursDay `json:"days"`
}

// SettingsRequest is the body of PUT /api/v1/automation/settings. Omitted
// fields keep their stored value.
type SettingsRequest struct {
	CompanyID          string  `json:"companyId"`
	WelcomeEnabled     *bool   `json:"welcomeEnabled"`
	WelcomeMessage     *string `json:"welcomeMessage"`
	AwayEnabled        *bool   `json:"awayEnabled"`
	AwayMessage        *string `json:"awayMessage"`
	AfterHoursEnabled  *bool   `json:"afterHoursEnabled"`
	AfterHoursMessage  *string `json:"afterHoursMessage"`
	AvailabilityStatus *string `json:"availabilityStatus"`
}

// InboundRequest is an inbound chat message submitted for evaluation.
type InboundRequest struct {
	CompanyID           string `json:"companyId"`
	Phone               string `json:"phone"`
	Text                string `json:"text"`
	FirstInConversation bool   `json:"firstInConversation"`
}

func (req InboundRequest) input() application.InboundInput {
	return application.InboundInput{
		CompanyID:           req.CompanyID,
		Phone:               req.Phone,
		Text:                req.Text,
		FirstInConversation: req.FirstInConversation,
	}
}

// companyParam prefers the query string, then the body value.
func companyParam(r *http.Request, fromBody string) string {
	if q := r.URL.Query().Get("companyId"); q != "" {
		return q
	}
	return fromBody
}

// ListRules returns the auto-response rules in evaluation order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.AutoResponses.List(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"))
	if err != nil {
		h.writeServiceError(w, r, "list auto-responses", err)
		return
	}

	resp := make([]RuleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, toRuleResponse(rule))
	}
	writeData(w, http.StatusOK, resp)
}

// GetRule returns one auto-response rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.svc.AutoResponses.Get(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "get auto-response", err)
		return
	}

	writeData(w, http.StatusOK, toRuleResponse(*rule))
}

// CreateRule adds an auto-response rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.svc.AutoResponses.Create(r.Context(), principalFrom(r.Context()), req.input(r.URL.Query().Get("companyId")))
	if err != nil {
		h.writeServiceError(w, r, "create auto-response", err)
		return
	}

	writeData(w, http.StatusCreated, toRuleResponse(*rule))
}

// UpdateRule replaces the writable fields of a rule.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.svc.AutoResponses.Update(r.Context(), principalFrom(r.Context()), r.PathValue("id"), req.input(r.URL.Query().Get("companyId")))
	if err != nil {
		h.writeServiceError(w, r, "update auto-response", err)
		return
	}

	writeData(w, http.StatusOK, toRuleResponse(*rule))
}

// SetRuleActive toggles a rule on or off.
func (h *Handler) SetRuleActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "is required", Field: "isActive"})
		return
	}

	rule, err := h.svc.AutoResponses.SetActive(r.Context(), principalFrom(r.Context()), companyParam(r, req.CompanyID), r.PathValue("id"), *req.IsActive)
	if err != nil {
		h.writeServiceError(w, r, "toggle auto-response", err)
		return
	}

	writeData(w, http.StatusOK, toRuleResponse(*rule))
}

// DeleteRule removes a rule.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	err := h.svc.AutoResponses.Delete(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "delete auto-response", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetBusinessHours returns the seven-day schedule, seeding defaults on first read.
func (h *Handler) GetBusinessHours(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.BusinessHours.List(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"))
	if err != nil {
		h.writeServiceError(w, r, "get business hours", err)
		return
	}

	writeData(w, http.StatusOK, toBusinessHoursDays(rows))
}

// UpdateBusinessHours replaces the schedule in one transaction.
func (h *Handler) UpdateBusinessHours(w http.ResponseWriter, r *http.Request) {
	var req BusinessHoursRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rows := make([]model.BusinessHours, 0, len(req.Days))
	for _, d := range req.Days {
		rows = append(rows, model.BusinessHours{
			DayOfWeek: d.DayOfWeek,
			IsEnabled: d.IsEnabled,
			StartTime: d.StartTime,
			EndTime:   d.EndTime,
			Timezone:  d.Timezone,
		})
	}

	updated, err := h.svc.BusinessHours.Update(r.Context(), principalFrom(r.Context()), companyParam(r, req.CompanyID), rows)
	if err != nil {
		h.writeServiceError(w, r, "update business hours", err)
		return
	}

	writeData(w, http.StatusOK, toBusinessHoursDays(updated))
}

// GetSettings returns the automation templates and toggles.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Settings.Get(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"))
	if err != nil {
		h.writeServiceError(w, r, "get automation settings", err)
		return
	}

	writeData(w, http.StatusOK, toSettingsResponse(settings))
}

// UpdateSettings merges the provided fields into the stored settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	settings, err := h.svc.Settings.Update(r.Context(), principalFrom(r.Context()), application.UpdateSettingsInput{
		CompanyID:          companyParam(r, req.CompanyID),
		WelcomeEnabled:     req.WelcomeEnabled,
		WelcomeMessage:     req.WelcomeMessage,
		AwayEnabled:        req.AwayEnabled,
		AwayMessage:        req.AwayMessage,
		AfterHoursEnabled:  req.AfterHoursEnabled,
		AfterHoursMessage:  req.AfterHoursMessage,
		AvailabilityStatus: req.AvailabilityStatus,
	})
	if err != nil {
		h.writeServiceError(w, r, "update automation settings", err)
		return
	}

	writeData(w, http.StatusOK, toSettingsResponse(settings))
}

// Evaluate returns the automation decision for a message without replying.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req InboundRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	decision, err := h.svc.Automation.DryRun(r.Context(), principalFrom(r.Context()), req.input())
	if err != nil {
		h.writeServiceError(w, r, "evaluate automation", err)
		return
	}

	writeData(w, http.StatusOK, toDecisionResponse(decision))
}

// Inbound evaluates a received message and sends the automatic reply, if any.
func (h *Handler) Inbound(w http.ResponseWriter, r *http.Request) {
	var req InboundRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.svc.Automation.Respond(r.Context(), principalFrom(r.Context()), req.input())
	if err != nil {
		h.writeServiceError(w, r, "inbound message", err)
		return
	}

	writeData(w, http.StatusOK, ReplyResponse{
		Decision:  toDecisionResponse(reply.Decision),
		MessageID: reply.MessageID,
	})
}
