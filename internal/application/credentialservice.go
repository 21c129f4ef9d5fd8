package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/reliability/reconnect"
)

// MaskedSecret replaces stored secrets in every read.
const MaskedSecret = "********"

// ErrGatewayNotConfigured is returned when a company has no usable gateway credentials.
var ErrGatewayNotConfigured = fmt.Errorf("whatsapp gateway not configured: %w", driven.ErrNotFound)

// GatewayView is the masked read model of a gateway configuration.
type GatewayView struct {
	Configured   bool
	InstanceURL  string
	InstanceName string
	Token        string
	UpdatedAt    *time.Time
}

// AIProviderView is the masked read model of an AI provider configuration.
type AIProviderView struct {
	Configured bool
	Provider   string
	Model      string
	APIKey     string
	UpdatedAt  *time.Time
}

// UpdateGatewayInput replaces the gateway configuration. The token is only
// re-encrypted when UpdateToken is set.
type UpdateGatewayInput struct {
	CompanyID    string
	InstanceURL  string
	InstanceName string
	UpdateToken  *string
}

// UpdateAIProviderInput replaces the AI provider configuration. The key is
// only re-encrypted when UpdateAPIKey is set.
type UpdateAIProviderInput struct {
	CompanyID    string
	Provider     string
	Model        string
	UpdateAPIKey *string
}

// CredentialService stores third-party credentials encrypted and never
// returns them in plaintext to clients.
type CredentialService struct {
	integrations driven.IntegrationStore
	vault        driven.SecretVault
	retry        reconnect.Options
	now          func() time.Time
}

// NewCredentialService wires the credential dependencies.
func NewCredentialService(integrations driven.IntegrationStore, vault driven.SecretVault, retry reconnect.Options) *CredentialService {
	return &CredentialService{integrations: integrations, vault: vault, retry: retry, now: time.Now}
}

func (s *CredentialService) loadGateway(ctx context.Context, companyID string) (*model.GatewayConfig, error) {
	return reconnect.Do(ctx, retryFor(s.retry, "get_gateway_config"), func(ctx context.Context) (*model.GatewayConfig, error) {
		return s.integrations.GetGateway(ctx, companyID)
	})
}

func (s *CredentialService) loadAIProvider(ctx context.Context, companyID string) (*model.AIProviderConfig, error) {
	return reconnect.Do(ctx, retryFor(s.retry, "get_ai_provider_config"), func(ctx context.Context) (*model.AIProviderConfig, error) {
		return s.integrations.GetAIProvider(ctx, companyID)
	})
}

// GetGateway returns the masked gateway configuration.
func (s *CredentialService) GetGateway(ctx context.Context, p *model.Principal, companyID string) (*GatewayView, error) {
	companyID, err := adminScope(p, companyID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.loadGateway(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return gatewayView(cfg), nil
}

// UpdateGateway validates and stores the gateway configuration.
func (s *CredentialService) UpdateGateway(ctx context.Context, p *model.Principal, in UpdateGatewayInput) (*GatewayView, error) {
	companyID, err := adminScope(p, in.CompanyID)
	if err != nil {
		return nil, err
	}
	instanceURL, err := normalizeBaseURL(in.InstanceURL)
	if err != nil {
		return nil, invalid("instanceUrl", "%v", err)
	}

	existing, err := s.loadGateway(ctx, companyID)
	if err != nil {
		return nil, err
	}
	token, err := s.resolveSecret("updateToken", in.UpdateToken, existing != nil, func() string { return existing.Token })
	if err != nil {
		return nil, err
	}

	cfg := model.GatewayConfig{
		CompanyID:    companyID,
		InstanceURL:  instanceURL,
		InstanceName: strings.TrimSpace(in.InstanceName),
		Token:        token,
		UpdatedAt:    s.now().UTC(),
	}
	if err := s.integrations.UpsertGateway(ctx, cfg); err != nil {
		return nil, err
	}
	slog.Info("gateway configuration updated", "company_id", companyID, "token_rotated", in.UpdateToken != nil)
	return gatewayView(&cfg), nil
}

// GetAIProvider returns the masked AI provider configuration.
func (s *CredentialService) GetAIProvider(ctx context.Context, p *model.Principal, companyID string) (*AIProviderView, error) {
	companyID, err := adminScope(p, companyID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.loadAIProvider(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return aiProviderView(cfg), nil
}

// UpdateAIProvider validates and stores the AI provider configuration.
func (s *CredentialService) UpdateAIProvider(ctx context.Context, p *model.Principal, in UpdateAIProviderInput) (*AIProviderView, error) {
	companyID, err := adminScope(p, in.CompanyID)
	if err != nil {
		return nil, err
	}
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return nil, invalid("provider", "is required")
	}

	existing, err := s.loadAIProvider(ctx, companyID)
	if err != nil {
		return nil, err
	}
	apiKey, err := s.resolveSecret("updateApiKey", in.UpdateAPIKey, existing != nil, func() string { return existing.APIKey })
	if err != nil {
		return nil, err
	}

	cfg := model.AIProviderConfig{
		CompanyID: companyID,
		Provider:  provider,
		Model:     strings.TrimSpace(in.Model),
		APIKey:    apiKey,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.integrations.UpsertAIProvider(ctx, cfg); err != nil {
		return nil, err
	}
	slog.Info("ai provider configuration updated", "company_id", companyID, "provider", provider, "key_rotated", in.UpdateAPIKey != nil)
	return aiProviderView(&cfg), nil
}

// resolveSecret encrypts a supplied secret or keeps the stored ciphertext.
// A secret is mandatory when nothing is stored yet.
func (s *CredentialService) resolveSecret(field string, update *string, hasExisting bool, existing func() string) (string, error) {
	if update == nil {
		if !hasExisting || existing() == "" {
			return "", invalid(field, "is required on first configuration")
		}
		return existing(), nil
	}
	plaintext := strings.TrimSpace(*update)
	if plaintext == "" || plaintext == MaskedSecret {
		return "", invalid(field, "must be a non-empty secret")
	}
	encrypted, err := s.vault.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt %s: %w", field, err)
	}
	return encrypted, nil
}

// GatewayCredentials returns the decrypted gateway credentials of companyID.
// Callers must have scoped companyID to the session already.
func (s *CredentialService) GatewayCredentials(ctx context.Context, companyID string) (driven.GatewayCredentials, error) {
	cfg, err := s.loadGateway(ctx, companyID)
	if err != nil {
		return driven.GatewayCredentials{}, err
	}
	if cfg == nil || cfg.Token == "" || cfg.InstanceURL == "" {
		return driven.GatewayCredentials{}, ErrGatewayNotConfigured
	}
	token, err := s.vault.Decrypt(cfg.Token)
	if err != nil {
		return driven.GatewayCredentials{}, fmt.Errorf("gateway token of %s: %w", companyID, err)
	}
	return driven.GatewayCredentials{BaseURL: cfg.InstanceURL, Token: token}, nil
}

func gatewayView(cfg *model.GatewayConfig) *GatewayView {
	if cfg == nil {
		return &GatewayView{}
	}
	updated := cfg.UpdatedAt
	return &GatewayView{
		Configured:   cfg.Token != "",
		InstanceURL:  cfg.InstanceURL,
		InstanceName: cfg.InstanceName,
		Token:        mask(cfg.Token),
		UpdatedAt:    &updated,
	}
}

func aiProviderView(cfg *model.AIProviderConfig) *AIProviderView {
	if cfg == nil {
		return &AIProviderView{}
	}
	updated := cfg.UpdatedAt
	return &AIProviderView{
		Configured: cfg.APIKey != "",
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		APIKey:     mask(cfg.APIKey),
		UpdatedAt:  &updated,
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return MaskedSecret
}
