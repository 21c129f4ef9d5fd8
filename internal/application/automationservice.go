package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
	"github.com/ericfisherdev/leadinbox/internal/observability/metrics"
	"github.com/ericfisherdev/leadinbox/internal/reliability/reconnect"
)

// Policy is one automatic reply strategy.
type Policy string

const (
	PolicyAfterHours Policy = "after_hours"
	PolicyRules      Policy = "rules"
	PolicyAway       Policy = "away"
	PolicyWelcome    Policy = "welcome"
)

// DefaultPrecedence is the evaluation order used when none is configured.
var DefaultPrecedence = []Policy{PolicyAfterHours, PolicyRules, PolicyAway, PolicyWelcome}

// ParsePrecedence validates an ordered list of policy names. An empty list
// yields DefaultPrecedence.
func ParsePrecedence(names []string) ([]Policy, error) {
	if len(names) == 0 {
		return append([]Policy(nil), DefaultPrecedence...), nil
	}
	seen := make(map[Policy]bool, len(names))
	out := make([]Policy, 0, len(names))
	for _, name := range names {
		p := Policy(strings.ToLower(strings.TrimSpace(name)))
		switch p {
		case PolicyAfterHours, PolicyRules, PolicyAway, PolicyWelcome:
		default:
			return nil, fmt.Errorf("unknown automation policy %q", name)
		}
		if seen[p] {
			return nil, fmt.Errorf("automation policy %q listed twice", name)
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

// DecisionKind tells whether an automatic reply should be sent.
type DecisionKind string

const (
	DecisionNone  DecisionKind = "none"
	DecisionReply DecisionKind = "reply"
)

// Decision is the outcome of evaluating one inbound message.
type Decision struct {
	Kind    DecisionKind
	Policy  Policy
	Message string
	RuleID  string
}

// Reply is the outcome of Respond.
type Reply struct {
	Decision  Decision
	MessageID string
}

// InboundInput is an inbound chat message as received from the caller.
type InboundInput struct {
	CompanyID           string
	Phone               string
	Text                string
	FirstInConversation bool
}

// AutomationService decides whether an inbound message gets an automatic
// reply and sends it.
type AutomationService struct {
	rules       driven.AutoResponseStore
	hours       *BusinessHoursService
	settings    *SettingsService
	credentials GatewayCredentialSource
	gateway     driven.MessagingGateway
	publisher   driven.EventPublisher
	dispatcher  *Dispatcher
	precedence  []Policy
	retry       reconnect.Options
	now         func() time.Time
}

// NewAutomationService wires the evaluator. precedence must come from ParsePrecedence.
func NewAutomationService(
	rules driven.AutoResponseStore,
	hours *BusinessHoursService,
	settings *SettingsService,
	credentials GatewayCredentialSource,
	gateway driven.MessagingGateway,
	publisher driven.EventPublisher,
	dispatcher *Dispatcher,
	precedence []Policy,
	retry reconnect.Options,
) *AutomationService {
	if len(precedence) == 0 {
		precedence = DefaultPrecedence
	}
	return &AutomationService{
		rules:       rules,
		hours:       hours,
		settings:    settings,
		credentials: credentials,
		gateway:     gateway,
		publisher:   publisher,
		dispatcher:  dispatcher,
		precedence:  precedence,
		retry:       retry,
		now:         time.Now,
	}
}

// Precedence returns the configured policy order.
func (s *AutomationService) Precedence() []Policy {
	return append([]Policy(nil), s.precedence...)
}

// Evaluate walks the policies in precedence order and returns the first
// reply. It has no side effects.
func (s *AutomationService) Evaluate(ctx context.Context, msg model.InboundMessage, now time.Time) (Decision, error) {
	settings, err := s.settings.load(ctx, msg.CompanyID)
	if err != nil {
		return Decision{}, err
	}

	for _, policy := range s.precedence {
		var (
			d   Decision
			err error
		)
		switch policy {
		case PolicyAfterHours:
			d, err = s.evaluateAfterHours(ctx, msg, settings, now)
		case PolicyRules:
			d, err = s.evaluateRules(ctx, msg)
		case PolicyAway:
			if settings.AwayEnabled && settings.AvailabilityStatus != model.AvailabilityAvailable {
				d = Decision{Kind: DecisionReply, Policy: PolicyAway, Message: settings.AwayMessage}
			}
		case PolicyWelcome:
			if settings.WelcomeEnabled && msg.FirstInConversation {
				d = Decision{Kind: DecisionReply, Policy: PolicyWelcome, Message: settings.WelcomeMessage}
			}
		}
		if err != nil {
			return Decision{}, err
		}
		if d.Kind == DecisionReply && d.Message != "" {
			return d, nil
		}
	}
	return Decision{Kind: DecisionNone}, nil
}

func (s *AutomationService) evaluateAfterHours(ctx context.Context, msg model.InboundMessage, settings model.AutomationSettings, now time.Time) (Decision, error) {
	if !settings.AfterHoursEnabled {
		return Decision{}, nil
	}
	open, err := s.hours.isOpen(ctx, msg.CompanyID, now)
	if err != nil {
		return Decision{}, err
	}
	if open {
		return Decision{}, nil
	}
	return Decision{Kind: DecisionReply, Policy: PolicyAfterHours, Message: settings.AfterHoursMessage}, nil
}

func (s *AutomationService) evaluateRules(ctx context.Context, msg model.InboundMessage) (Decision, error) {
	rules, err := reconnect.Do(ctx, retryFor(s.retry, "list_active_rules"), func(ctx context.Context) ([]model.AutoResponseRule, error) {
		return s.rules.ListActive(ctx, msg.CompanyID)
	})
	if err != nil {
		return Decision{}, err
	}
	for _, rule := range rules {
		if matchRule(rule, msg.Text) {
			return Decision{Kind: DecisionReply, Policy: PolicyRules, Message: rule.ResponseMessage, RuleID: rule.ID}, nil
		}
	}
	return Decision{}, nil
}

// DryRun evaluates a message for the caller's company without replying.
func (s *AutomationService) DryRun(ctx context.Context, p *model.Principal, in InboundInput) (Decision, error) {
	msg, err := s.inbound(p, in)
	if err != nil {
		return Decision{}, err
	}
	return s.Evaluate(ctx, msg, msg.ReceivedAt)
}

// Respond evaluates a message and sends the reply through the company's
// gateway. The rule trigger counter and the reply event are best effort.
func (s *AutomationService) Respond(ctx context.Context, p *model.Principal, in InboundInput) (*Reply, error) {
	msg, err := s.inbound(p, in)
	if err != nil {
		return nil, err
	}
	decision, err := s.Evaluate(ctx, msg, msg.ReceivedAt)
	if err != nil {
		return nil, err
	}
	if decision.Kind != DecisionReply {
		metrics.ObserveDecision(string(DecisionNone))
		return &Reply{Decision: decision}, nil
	}

	creds, err := s.credentials.GatewayCredentials(ctx, msg.CompanyID)
	if err != nil {
		return nil, err
	}
	sent, err := s.gateway.SendText(ctx, creds, msg.Phone, decision.Message)
	if err != nil {
		return nil, err
	}
	metrics.ObserveDecision(string(decision.Policy))
	var messageID string
	if sent != nil {
		messageID = sent.MessageID
	}

	slog.Info("automatic reply sent",
		"company_id", msg.CompanyID,
		"policy", decision.Policy,
		"rule_id", decision.RuleID,
	)

	if decision.RuleID != "" {
		companyID, ruleID, at := msg.CompanyID, decision.RuleID, msg.ReceivedAt
		s.dispatcher.Go("record rule trigger", func(ctx context.Context) error {
			return s.rules.RecordTrigger(ctx, companyID, ruleID, at)
		})
	}
	s.dispatcher.Publish(s.publisher, driven.TopicAutoReplySent, driven.AutoReplySent{
		CompanyID: msg.CompanyID,
		Phone:     msg.Phone,
		Policy:    string(decision.Policy),
		RuleID:    decision.RuleID,
		MessageID: messageID,
		At:        msg.ReceivedAt,
	})

	return &Reply{Decision: decision, MessageID: messageID}, nil
}

func (s *AutomationService) inbound(p *model.Principal, in InboundInput) (model.InboundMessage, error) {
	companyID, err := memberScope(p, in.CompanyID)
	if err != nil {
		return model.InboundMessage{}, err
	}
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return model.InboundMessage{}, err
	}
	return model.InboundMessage{
		CompanyID:           companyID,
		Phone:               phone,
		Text:                in.Text,
		ReceivedAt:          s.now().UTC(),
		FirstInConversation: in.FirstInConversation,
	}, nil
}
