package application

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

const maxTextLength = 4096

var mediaTypes = map[string]bool{"image": true, "video": true, "audio": true, "document": true}

// GatewayCredentialSource resolves the decrypted gateway credentials of a company.
type GatewayCredentialSource interface {
	GatewayCredentials(ctx context.Context, companyID string) (driven.GatewayCredentials, error)
}

// SendTextInput is an outbound text message.
type SendTextInput struct {
	CompanyID string
	Phone     string
	Text      string
}

// SendMediaInput is an outbound media message.
type SendMediaInput struct {
	CompanyID string
	Phone     string
	Media     model.OutboundMedia
}

// MessageRef identifies a previously sent message.
type MessageRef struct {
	CompanyID string
	Phone     string
	MessageID string
}

// MessagingService sends outbound WhatsApp traffic with the caller's
// company credentials.
type MessagingService struct {
	gateway     driven.MessagingGateway
	credentials GatewayCredentialSource
	previewer   driven.LinkPreviewer
}

// NewMessagingService wires the messaging dependencies.
func NewMessagingService(gateway driven.MessagingGateway, credentials GatewayCredentialSource, previewer driven.LinkPreviewer) *MessagingService {
	return &MessagingService{gateway: gateway, credentials: credentials, previewer: previewer}
}

func (s *MessagingService) resolve(ctx context.Context, p *model.Principal, companyID, phone string) (driven.GatewayCredentials, string, error) {
	companyID, err := memberScope(p, companyID)
	if err != nil {
		return driven.GatewayCredentials{}, "", err
	}
	normalized, err := normalizePhone(phone)
	if err != nil {
		return driven.GatewayCredentials{}, "", err
	}
	creds, err := s.credentials.GatewayCredentials(ctx, companyID)
	if err != nil {
		return driven.GatewayCredentials{}, "", err
	}
	return creds, normalized, nil
}

// SendText sends a plain text message.
func (s *MessagingService) SendText(ctx context.Context, p *model.Principal, in SendTextInput) (*driven.SentMessage, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, invalid("text", "is required")
	}
	if utf8.RuneCountInString(text) > maxTextLength {
		return nil, invalid("text", "must be at most %d characters", maxTextLength)
	}
	creds, phone, err := s.resolve(ctx, p, in.CompanyID, in.Phone)
	if err != nil {
		return nil, err
	}
	sent, err := s.gateway.SendText(ctx, creds, phone, text)
	if err != nil {
		slog.Warn("send text failed", "company_id", p.CompanyID, "error", err)
		return nil, err
	}
	return sent, nil
}

// SendMedia sends an image, video, audio or document by URL.
func (s *MessagingService) SendMedia(ctx context.Context, p *model.Principal, in SendMediaInput) (*driven.SentMessage, error) {
	media := in.Media
	media.Type = strings.ToLower(strings.TrimSpace(media.Type))
	if !mediaTypes[media.Type] {
		return nil, invalid("type", "must be one of image, video, audio, document")
	}
	mediaURL, err := normalizeBaseURL(media.URL)
	if err != nil {
		return nil, invalid("url", "%v", err)
	}
	media.URL = mediaURL
	creds, phone, err := s.resolve(ctx, p, in.CompanyID, in.Phone)
	if err != nil {
		return nil, err
	}
	sent, err := s.gateway.SendMedia(ctx, creds, phone, media)
	if err != nil {
		slog.Warn("send media failed", "company_id", p.CompanyID, "type", media.Type, "error", err)
		return nil, err
	}
	return sent, nil
}

// SetTyping shows the composing indicator to the contact.
func (s *MessagingService) SetTyping(ctx context.Context, p *model.Principal, companyID, phone string) error {
	creds, phone, err := s.resolve(ctx, p, companyID, phone)
	if err != nil {
		return err
	}
	return s.gateway.SetTyping(ctx, creds, phone)
}

// React sets an emoji reaction on a message.
func (s *MessagingService) React(ctx context.Context, p *model.Principal, ref MessageRef, emoji string) error {
	if strings.TrimSpace(ref.MessageID) == "" {
		return invalid("messageId", "is required")
	}
	if strings.TrimSpace(emoji) == "" {
		return invalid("emoji", "is required")
	}
	creds, phone, err := s.resolve(ctx, p, ref.CompanyID, ref.Phone)
	if err != nil {
		return err
	}
	return s.gateway.SendReaction(ctx, creds, phone, ref.MessageID, emoji)
}

// Delete revokes a sent message for everyone.
func (s *MessagingService) Delete(ctx context.Context, p *model.Principal, ref MessageRef) error {
	if strings.TrimSpace(ref.MessageID) == "" {
		return invalid("messageId", "is required")
	}
	creds, phone, err := s.resolve(ctx, p, ref.CompanyID, ref.Phone)
	if err != nil {
		return err
	}
	return s.gateway.DeleteMessage(ctx, creds, phone, ref.MessageID)
}

// LinkPreview fetches page metadata for a shared URL. Upstream failures
// degrade to a domain-only preview inside the previewer.
func (s *MessagingService) LinkPreview(ctx context.Context, p *model.Principal, rawURL string) (model.LinkPreview, error) {
	if _, _, err := RequireTenantMember(p); err != nil {
		return model.LinkPreview{}, err
	}
	if strings.TrimSpace(rawURL) == "" {
		return model.LinkPreview{}, invalid("url", "is required")
	}
	preview, err := s.previewer.Preview(ctx, strings.TrimSpace(rawURL))
	if err != nil {
		return model.LinkPreview{}, invalid("url", "%v", err)
	}
	return preview, nil
}

// normalizePhone strips formatting and requires 10 to 15 digits.
func normalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", invalid("phone", "contains invalid characters")
		}
	}
	digits := b.String()
	if len(digits) < 10 || len(digits) > 15 {
		return "", invalid("phone", "must have between 10 and 15 digits")
	}
	return digits, nil
}
