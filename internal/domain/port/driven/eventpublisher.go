package driven

import (
	"context"
	"time"
)

// Event topics published after primary writes succeed.
const (
	TopicChargeReconciled = "leadinbox.charge.reconciled"
	TopicMonitorError     = "leadinbox.monitor.error"
	TopicAutoReplySent    = "leadinbox.automation.reply_sent"
)

// EventPublisher emits domain events to an external bus. Publishing is best
// effort: callers log failures and never roll back the write that caused them.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// ChargeReconciled is published on TopicChargeReconciled.
type ChargeReconciled struct {
	CompanyID   string    `json:"companyId"`
	ChargeID    string    `json:"chargeId"`
	ExternalID  string    `json:"externalId"`
	Event       string    `json:"event"`
	Status      string    `json:"status"`
	AmountCents int64     `json:"amountCents"`
	At          time.Time `json:"at"`
}

// MonitorErrorRecorded is published on TopicMonitorError.
type MonitorErrorRecorded struct {
	CompanyID  string    `json:"companyId"`
	ErrorID    string    `json:"errorId"`
	InstanceID string    `json:"instanceId"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}

// AutoReplySent is published on TopicAutoReplySent.
type AutoReplySent struct {
	CompanyID string    `json:"companyId"`
	Phone     string    `json:"phone"`
	Policy    string    `json:"policy"`
	RuleID    string    `json:"ruleId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	At        time.Time `json:"at"`
}
