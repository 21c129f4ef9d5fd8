package model

import (
	"fmt"
	"time"
)

// AvailabilityStatus is the attendant availability advertised by a company.
type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityAway      AvailabilityStatus = "away"
	AvailabilityBusy      AvailabilityStatus = "busy"
	AvailabilityOffline   AvailabilityStatus = "offline"
)

// ParseAvailabilityStatus validates s. An empty string means available.
func ParseAvailabilityStatus(s string) (AvailabilityStatus, error) {
	switch AvailabilityStatus(s) {
	case "":
		return AvailabilityAvailable, nil
	case AvailabilityAvailable, AvailabilityAway, AvailabilityBusy, AvailabilityOffline:
		return AvailabilityStatus(s), nil
	}
	return "", fmt.Errorf("unknown availability status %q", s)
}

// AutomationSettings holds the per-company message templates and toggles.
type AutomationSettings struct {
	CompanyID          string
	WelcomeEnabled     bool
	WelcomeMessage     string
	AwayEnabled        bool
	AwayMessage        string
	AfterHoursEnabled  bool
	AfterHoursMessage  string
	AvailabilityStatus AvailabilityStatus
	UpdatedAt          time.Time
}

// DefaultAutomationSettings returns the settings used before a company saves any.
func DefaultAutomationSettings(companyID string) AutomationSettings {
	return AutomationSettings{
		CompanyID:          companyID,
		WelcomeMessage:     "Olá! Obrigado pelo contato. Em breve um atendente irá responder.",
		AwayMessage:        "No momento estamos ausentes. Retornaremos assim que possível.",
		AfterHoursMessage:  "Nosso horário de atendimento encerrou. Responderemos no próximo dia útil.",
		AvailabilityStatus: AvailabilityAvailable,
	}
}
