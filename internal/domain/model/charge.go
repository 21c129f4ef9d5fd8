package model

import (
	"fmt"
	"strings"
	"time"
)

// ChargeStatus is the reconciled state of a provider charge.
type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "PENDING"
	ChargeStatusConfirmed ChargeStatus = "CONFIRMED"
	ChargeStatusReceived  ChargeStatus = "RECEIVED"
	ChargeStatusOverdue   ChargeStatus = "OVERDUE"
	ChargeStatusRefunded  ChargeStatus = "REFUNDED"
)

// chargeStatusAliases folds provider statuses that have no dedicated state
// into the closest canonical one.
var chargeStatusAliases = map[string]ChargeStatus{
	"PENDING":                ChargeStatusPending,
	"AWAITING_RISK_ANALYSIS": ChargeStatusPending,
	"CONFIRMED":              ChargeStatusConfirmed,
	"RECEIVED":               ChargeStatusReceived,
	"RECEIVED_IN_CASH":       ChargeStatusReceived,
	"OVERDUE":                ChargeStatusOverdue,
	"REFUNDED":               ChargeStatusRefunded,
	"REFUND_REQUESTED":       ChargeStatusRefunded,
	"REFUND_IN_PROGRESS":     ChargeStatusRefunded,
}

// ParseChargeStatus maps a provider status string to a ChargeStatus.
func ParseChargeStatus(s string) (ChargeStatus, error) {
	status, ok := chargeStatusAliases[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown charge status %q", s)
	}
	return status, nil
}

// Customer is the payer snapshot carried on every delivery.
type Customer struct {
	Name    string
	Email   string
	CPFCNPJ string
}

// Charge is a billing record reconciled from payment webhooks. ExternalID is
// the provider's charge id and is unique across the table.
type Charge struct {
	ID          string
	CompanyID   string
	AgentID     string
	ExternalID  string
	Event       string
	Status      ChargeStatus
	AmountCents int64
	DueDate     *time.Time
	PaidAt      *time.Time
	Customer    Customer
	RawPayload  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
