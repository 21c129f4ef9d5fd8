package application

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/idgen"
	"github.com/ericfisherdev/leadinbox/internal/observability/metrics"
	"github.com/ericfisherdev/leadinbox/internal/reliability/reconnect"
)

const (
	webhookIDLength     = 32
	webhookSecretLength = 40
	maxAgentName        = 120
)

// ErrChannelNotFound is returned for unknown and inactive webhook channels alike.
var ErrChannelNotFound = fmt.Errorf("channel not found: %w", driven.ErrNotFound)

// paymentEnvelopeSchema describes the subset of the provider payload that
// reconciliation depends on. Unknown fields are kept in the raw payload.
const paymentEnvelopeSchema = `{
	"type": "object",
	"required": ["event", "payment"],
	"properties": {
		"event": {"type": "string", "minLength": 1},
		"payment": {
			"type": "object",
			"required": ["id", "status", "value"],
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"status": {"type": "string", "minLength": 1},
				"value": {
					"anyOf": [
						{"type": "number", "minimum": 0},
						{"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)?$"}
					]
				},
				"dueDate": {"type": ["string", "null"]},
				"paymentDate": {"type": ["string", "null"]},
				"clientPaymentDate": {"type": ["string", "null"]},
				"confirmedDate": {"type": ["string", "null"]},
				"customer": {"type": ["string", "object", "null"]}
			}
		}
	}
}`

// DeliveryAuth carries the credentials a provider may attach to a delivery.
type DeliveryAuth struct {
	AccessToken string
	Signature   string
}

// DeliveryResult acknowledges an applied delivery.
type DeliveryResult struct {
	Event    string
	ChargeID string
	Status   model.ChargeStatus
}

// CreateAgentInput is the payload of a new payment webhook channel.
type CreateAgentInput struct {
	CompanyID  string
	Name       string
	WithSecret bool
}

// CreatedAgent returns the plaintext secret exactly once, at creation.
type CreatedAgent struct {
	Agent  model.WebhookAgent
	Secret string
}

// WebhookService manages payment webhook channels and reconciles deliveries
// into charges.
type WebhookService struct {
	agents     driven.WebhookAgentStore
	charges    driven.ChargeStore
	vault      driven.SecretVault
	publisher  driven.EventPublisher
	dispatcher *Dispatcher
	retry      reconnect.Options
	schema     *jsonschema.Schema
	now        func() time.Time
}

// NewWebhookService compiles the envelope schema and wires the dependencies.
func NewWebhookService(
	agents driven.WebhookAgentStore,
	charges driven.ChargeStore,
	vault driven.SecretVault,
	publisher driven.EventPublisher,
	dispatcher *Dispatcher,
	retry reconnect.Options,
) (*WebhookService, error) {
	schema, err := compileSchema("payment-envelope.json", paymentEnvelopeSchema)
	if err != nil {
		return nil, err
	}
	return &WebhookService{
		agents:     agents,
		charges:    charges,
		vault:      vault,
		publisher:  publisher,
		dispatcher: dispatcher,
		retry:      retry,
		schema:     schema,
		now:        time.Now,
	}, nil
}

func compileSchema(name, source string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// CreateAgent registers a channel with a fresh public webhook id and, when
// requested, a validation secret stored encrypted.
func (s *WebhookService) CreateAgent(ctx context.Context, p *model.Principal, in CreateAgentInput) (*CreatedAgent, error) {
	companyID, err := adminScope(p, in.CompanyID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if len(name) > maxAgentName {
		return nil, invalid("name", "must be at most %d characters", maxAgentName)
	}

	webhookID, err := s.vault.GenerateWebhookID(webhookIDLength)
	if err != nil {
		return nil, fmt.Errorf("generate webhook id: %w", err)
	}

	var secret, encrypted string
	if in.WithSecret {
		if secret, err = s.vault.GenerateWebhookSecret(webhookSecretLength); err != nil {
			return nil, fmt.Errorf("generate webhook secret: %w", err)
		}
		if encrypted, err = s.vault.Encrypt(secret); err != nil {
			return nil, fmt.Errorf("encrypt webhook secret: %w", err)
		}
	}

	id, err := idgen.New(idgen.PrefixAgent)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	agent := model.WebhookAgent{
		ID:            id,
		CompanyID:     companyID,
		Name:          name,
		WebhookID:     webhookID,
		WebhookSecret: encrypted,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, err
	}

	slog.Info("webhook agent created", "company_id", companyID, "agent_id", id, "signed", in.WithSecret)
	return &CreatedAgent{Agent: agent, Secret: secret}, nil
}

// ListAgents returns the channels of the caller's company.
func (s *WebhookService) ListAgents(ctx context.Context, p *model.Principal, companyID string) ([]model.WebhookAgent, error) {
	companyID, err := adminScope(p, companyID)
	if err != nil {
		return nil, err
	}
	return reconnect.Do(ctx, retryFor(s.retry, "list_webhook_agents"), func(ctx context.Context) ([]model.WebhookAgent, error) {
		return s.agents.ListByCompany(ctx, companyID)
	})
}

// DeactivateAgent stops a channel from accepting deliveries.
func (s *WebhookService) DeactivateAgent(ctx context.Context, p *model.Principal, companyID, id string) error {
	companyID, err := adminScope(p, companyID)
	if err != nil {
		return err
	}
	return s.agents.Deactivate(ctx, companyID, id)
}

// ListCharges returns the charges reconciled through one of the caller's channels.
func (s *WebhookService) ListCharges(ctx context.Context, p *model.Principal, companyID, agentID string) ([]model.Charge, error) {
	companyID, err := adminScope(p, companyID)
	if err != nil {
		return nil, err
	}
	agent, err := s.agents.Get(ctx, companyID, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("webhook agent %s: %w", agentID, driven.ErrNotFound)
	}
	return reconnect.Do(ctx, retryFor(s.retry, "list_charges"), func(ctx context.Context) ([]model.Charge, error) {
		return s.charges.ListByAgent(ctx, companyID, agentID)
	})
}

// HandleDelivery authenticates and applies one provider delivery. Duplicate
// deliveries of the same charge converge on a single row.
func (s *WebhookService) HandleDelivery(ctx context.Context, webhookID string, auth DeliveryAuth, body []byte) (*DeliveryResult, error) {
	agent, err := reconnect.Do(ctx, retryFor(s.retry, "resolve_webhook_agent"), func(ctx context.Context) (*model.WebhookAgent, error) {
		return s.agents.GetByWebhookID(ctx, webhookID)
	})
	if err != nil {
		metrics.ObserveWebhook("payment", "failed")
		return nil, err
	}
	if agent == nil || !agent.Active {
		metrics.ObserveWebhook("payment", "not_found")
		return nil, ErrChannelNotFound
	}

	if err := s.authenticate(*agent, auth, body); err != nil {
		metrics.ObserveWebhook("payment", "rejected")
		return nil, err
	}

	charge, err := s.parseDelivery(*agent, body)
	if err != nil {
		metrics.ObserveWebhook("payment", "invalid")
		return nil, err
	}

	saved, err := reconnect.Do(ctx, retryFor(s.retry, "upsert_charge"), func(ctx context.Context) (model.Charge, error) {
		return s.charges.Upsert(ctx, charge)
	})
	if err != nil {
		metrics.ObserveWebhook("payment", "failed")
		return nil, err
	}
	metrics.ObserveWebhook("payment", "applied")

	slog.Info("charge reconciled",
		"company_id", saved.CompanyID,
		"agent_id", saved.AgentID,
		"external_id", saved.ExternalID,
		"event", saved.Event,
		"status", saved.Status,
	)

	s.dispatcher.Publish(s.publisher, driven.TopicChargeReconciled, driven.ChargeReconciled{
		CompanyID:   saved.CompanyID,
		ChargeID:    saved.ID,
		ExternalID:  saved.ExternalID,
		Event:       saved.Event,
		Status:      string(saved.Status),
		AmountCents: saved.AmountCents,
		At:          saved.UpdatedAt,
	})

	return &DeliveryResult{Event: saved.Event, ChargeID: saved.ID, Status: saved.Status}, nil
}

// authenticate accepts either the shared access token or an HMAC signature
// of the body when the channel has a secret.
func (s *WebhookService) authenticate(agent model.WebhookAgent, auth DeliveryAuth, body []byte) error {
	if !agent.HasSecret() {
		return nil
	}
	secret, err := s.vault.Decrypt(agent.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook agent %s: %w", agent.ID, err)
	}
	if auth.AccessToken != "" && subtle.ConstantTimeCompare([]byte(auth.AccessToken), []byte(secret)) == 1 {
		return nil
	}
	if auth.Signature != "" && s.vault.ValidateWebhookSignature(body, auth.Signature, secret) {
		return nil
	}
	return ErrForbidden
}

type paymentEnvelope struct {
	Event   string `json:"event"`
	Payment struct {
		ID                string          `json:"id"`
		Status            string          `json:"status"`
		Value             json.RawMessage `json:"value"`
		DueDate           *string         `json:"dueDate"`
		PaymentDate       *string         `json:"paymentDate"`
		ClientPaymentDate *string         `json:"clientPaymentDate"`
		ConfirmedDate     *string         `json:"confirmedDate"`
		Customer          json.RawMessage `json:"customer"`
	} `json:"payment"`
}

type customerPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	CPFCNPJ string `json:"cpfCnpj"`
}

func (s *WebhookService) parseDelivery(agent model.WebhookAgent, body []byte) (model.Charge, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return model.Charge{}, invalid("", "body must be valid JSON")
	}
	if err := s.schema.Validate(doc); err != nil {
		return model.Charge{}, schemaViolation(err)
	}

	var env paymentEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.Charge{}, invalid("", "body must be valid JSON")
	}

	status, err := model.ParseChargeStatus(env.Payment.Status)
	if err != nil {
		return model.Charge{}, invalid("payment.status", "unsupported status %q", env.Payment.Status)
	}
	amount, err := parseAmountCents(env.Payment.Value)
	if err != nil {
		return model.Charge{}, invalid("payment.value", "%v", err)
	}
	dueDate, err := parseProviderDate(env.Payment.DueDate)
	if err != nil {
		return model.Charge{}, invalid("payment.dueDate", "%v", err)
	}

	var paidAt *time.Time
	for _, candidate := range []*string{env.Payment.PaymentDate, env.Payment.ClientPaymentDate, env.Payment.ConfirmedDate} {
		if paidAt, err = parseProviderDate(candidate); err != nil {
			return model.Charge{}, invalid("payment.paymentDate", "%v", err)
		}
		if paidAt != nil {
			break
		}
	}
	now := s.now().UTC()
	if paidAt == nil && status == model.ChargeStatusReceived {
		paidAt = &now
	}

	id, err := idgen.New(idgen.PrefixCharge)
	if err != nil {
		return model.Charge{}, err
	}
	return model.Charge{
		ID:          id,
		CompanyID:   agent.CompanyID,
		AgentID:     agent.ID,
		ExternalID:  env.Payment.ID,
		Event:       env.Event,
		Status:      status,
		AmountCents: amount,
		DueDate:     dueDate,
		PaidAt:      paidAt,
		Customer:    parseCustomer(env.Payment.Customer),
		RawPayload:  string(body),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// schemaViolation converts the first leaf schema error into a ValidationError.
func schemaViolation(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return invalid("", "invalid payload")
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	field := strings.Join(ve.InstanceLocation, ".")
	if req, ok := ve.ErrorKind.(*kind.Required); ok && len(req.Missing) > 0 {
		if field != "" {
			field += "."
		}
		return invalid(field+req.Missing[0], "is required")
	}
	return invalid(field, "has an invalid value")
}

// maxAmountCents caps a single charge at one hundred billion currency units.
const maxAmountCents = 1e13

// parseAmountCents accepts a JSON number or a numeric string in currency units.
func parseAmountCents(raw json.RawMessage) (int64, error) {
	text := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("must be a non-negative amount")
	}
	cents := math.Round(v * 100)
	if cents > maxAmountCents {
		return 0, fmt.Errorf("must be at most %.0f", maxAmountCents/100)
	}
	return int64(cents), nil
}

// parseProviderDate accepts "2006-01-02" and RFC 3339 timestamps.
func parseProviderDate(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", v)
}

func parseCustomer(raw json.RawMessage) model.Customer {
	var c customerPayload
	if len(raw) == 0 || json.Unmarshal(raw, &c) != nil {
		return model.Customer{}
	}
	return model.Customer{Name: c.Name, Email: c.Email, CPFCNPJ: c.CPFCNPJ}
}
