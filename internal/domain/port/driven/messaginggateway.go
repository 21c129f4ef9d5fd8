package driven

import (
	"context"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// GatewayCredentials are the decrypted per-company gateway credentials.
type GatewayCredentials struct {
	BaseURL string
	Token   string
}

// SentMessage is the gateway's acknowledgement of an outbound message.
type SentMessage struct {
	MessageID string
	Status    string
}

// MessagingGateway is the outbound WhatsApp gateway. Implementations issue a
// single HTTP call per method and never retry. Non-success responses are
// reported as *GatewayError.
type MessagingGateway interface {
	SendText(ctx context.Context, creds GatewayCredentials, phone, text string) (*SentMessage, error)
	SendMedia(ctx context.Context, creds GatewayCredentials, phone string, media model.OutboundMedia) (*SentMessage, error)
	SetTyping(ctx context.Context, creds GatewayCredentials, phone string) error
	SendReaction(ctx context.Context, creds GatewayCredentials, phone, messageID, emoji string) error
	DeleteMessage(ctx context.Context, creds GatewayCredentials, phone, messageID string) error
}
