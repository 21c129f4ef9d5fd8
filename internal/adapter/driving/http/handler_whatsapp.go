package httphandler

import (
	"net/http"

	"github.com/ericfisherdev/leadinbox/internal/application"
	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// GatewayRequest is the body of PUT /api/v1/integrations/whatsapp. The token
// is only replaced when updateToken is present.
type GatewayRequest struct {
	CompanyID    string  `json:"companyId"`
	InstanceURL  string  `json:"instanceUrl"`
	InstanceName string  `json:"instanceName"`
	UpdateToken  *string `json:"updateToken"`
}

// AIProviderRequest is the body of PUT /api/v1/integrations/ai. The key is
// only replaced when updateApiKey is present.
type AIProviderRequest struct {
	CompanyID    string  `json:"companyId"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	UpdateAPIKey *string `json:"updateApiKey"`
}

// SendTextRequest is the body of POST /api/v1/whatsapp/send/text.
type SendTextRequest struct {
	CompanyID string `json:"companyId"`
	Phone     string `json:"phone"`
	Text      string `json:"text"`
}

// SendMediaRequest is the body of POST /api/v1/whatsapp/send/media.
type SendMediaRequest struct {
	CompanyID string `json:"companyId"`
	Phone     string `json:"phone"`
	MediaURL  string `json:"mediaUrl"`
	MediaType string `json:"mediaType"`
	Caption   string `json:"caption"`
}

// MessageRequest addresses a chat or a previously sent message.
type MessageRequest struct {
	CompanyID string `json:"companyId"`
	Phone     string `json:"phone"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

func (req MessageRequest) ref() application.MessageRef {
	return application.MessageRef{CompanyID: req.CompanyID, Phone: req.Phone, MessageID: req.MessageID}
}

// LinkPreviewRequest is the body of POST /api/v1/whatsapp/link-preview.
type LinkPreviewRequest struct {
	URL string `json:"url"`
}

// GetGateway returns the masked gateway configuration.
func (h *Handler) GetGateway(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Credentials.GetGateway(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"))
	if err != nil {
		h.writeServiceError(w, r, "get whatsapp integration", err)
		return
	}

	writeData(w, http.StatusOK, toGatewayResponse(view))
}

// UpdateGateway stores the gateway configuration.
func (h *Handler) UpdateGateway(w http.ResponseWriter, r *http.Request) {
	var req GatewayRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.svc.Credentials.UpdateGateway(r.Context(), principalFrom(r.Context()), application.UpdateGatewayInput{
		CompanyID:    req.CompanyID,
		InstanceURL:  req.InstanceURL,
		InstanceName: req.InstanceName,
		UpdateToken:  req.UpdateToken,
	})
	if err != nil {
		h.writeServiceError(w, r, "update whatsapp integration", err)
		return
	}

	writeData(w, http.StatusOK, toGatewayResponse(view))
}

// GetAIProvider returns the masked AI provider configuration.
func (h *Handler) GetAIProvider(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Credentials.GetAIProvider(r.Context(), principalFrom(r.Context()), r.URL.Query().Get("companyId"))
	if err != nil {
		h.writeServiceError(w, r, "get ai integration", err)
		return
	}

	writeData(w, http.StatusOK, toAIProviderResponse(view))
}

// UpdateAIProvider stores the AI provider configuration.
func (h *Handler) UpdateAIProvider(w http.ResponseWriter, r *http.Request) {
	var req AIProviderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.svc.Credentials.UpdateAIProvider(r.Context(), principalFrom(r.Context()), application.UpdateAIProviderInput{
		CompanyID:    req.CompanyID,
		Provider:     req.Provider,
		Model:        req.Model,
		UpdateAPIKey: req.UpdateAPIKey,
	})
	if err != nil {
		h.writeServiceError(w, r, "update ai integration", err)
		return
	}

	writeData(w, http.StatusOK, toAIProviderResponse(view))
}

// SendText sends a text message through the company's gateway.
func (h *Handler) SendText(w http.ResponseWriter, r *http.Request) {
	var req SendTextRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sent, err := h.svc.Messaging.SendText(r.Context(), principalFrom(r.Context()), application.SendTextInput{
		CompanyID: req.CompanyID,
		Phone:     req.Phone,
		Text:      req.Text,
	})
	if err != nil {
		h.writeServiceError(w, r, "send text", err)
		return
	}

	writeData(w, http.StatusOK, toSentMessageResponse(sent))
}

// SendMedia sends a media message through the company's gateway.
func (h *Handler) SendMedia(w http.ResponseWriter, r *http.Request) {
	var req SendMediaRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sent, err := h.svc.Messaging.SendMedia(r.Context(), principalFrom(r.Context()), application.SendMediaInput{
		CompanyID: req.CompanyID,
		Phone:     req.Phone,
		Media: model.OutboundMedia{
			URL:     req.MediaURL,
			Type:    req.MediaType,
			Caption: req.Caption,
		},
	})
	if err != nil {
		h.writeServiceError(w, r, "send media", err)
		return
	}

	writeData(w, http.StatusOK, toSentMessageResponse(sent))
}

// SetTyping shows the typing indicator in a chat.
func (h *Handler) SetTyping(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Messaging.SetTyping(r.Context(), principalFrom(r.Context()), req.CompanyID, req.Phone); err != nil {
		h.writeServiceError(w, r, "set typing", err)
		return
	}

	writeData(w, http.StatusOK, struct{}{})
}

// React adds an emoji reaction to a message.
func (h *Handler) React(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Messaging.React(r.Context(), principalFrom(r.Context()), req.ref(), req.Emoji); err != nil {
		h.writeServiceError(w, r, "react to message", err)
		return
	}

	writeData(w, http.StatusOK, struct{}{})
}

// DeleteMessage deletes a sent message for everyone in the chat.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Messaging.Delete(r.Context(), principalFrom(r.Context()), req.ref()); err != nil {
		h.writeServiceError(w, r, "delete message", err)
		return
	}

	writeData(w, http.StatusOK, struct{}{})
}

// LinkPreview fetches the metadata of a shared URL.
func (h *Handler) LinkPreview(w http.ResponseWriter, r *http.Request) {
	var req LinkPreviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	preview, err := h.svc.Messaging.LinkPreview(r.Context(), principalFrom(r.Context()), req.URL)
	if err != nil {
		h.writeServiceError(w, r, "link preview", err)
		return
	}

	writeData(w, http.StatusOK, toLinkPreviewResponse(preview))
}
