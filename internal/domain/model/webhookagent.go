package model

import "time"

// WebhookAgent is a payment-integration channel. WebhookID is the public token
// that appears in the delivery URL; WebhookSecret holds the vault-encrypted
// validation secret and is empty when the channel accepts unsigned deliveries.
type WebhookAgent struct {
	ID            string
	CompanyID     string
	Name          string
	WebhookID     string
	WebhookSecret string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasSecret reports whether deliveries to this channel must be authenticated.
func (a WebhookAgent) HasSecret() bool {
	return a.WebhookSecret != ""
}
