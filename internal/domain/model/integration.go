package model

import "time"

// GatewayConfig holds the WhatsApp gateway credentials of a company. Token is
// vault-encrypted at rest.
type GatewayConfig struct {
	CompanyID    string
	InstanceURL  string
	InstanceName string
	Token        string
	UpdatedAt    time.Time
}

// AIProviderConfig holds the AI provider credentials of a company. APIKey is
// vault-encrypted at rest.
type AIProviderConfig struct {
	CompanyID string
	Provider  string
	Model     string
	APIKey    string
	UpdatedAt time.Time
}
