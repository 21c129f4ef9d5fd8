package model

import (
	"fmt"
	"time"
)

// Severity classifies a reported automation-platform error.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ParseSeverity validates s as a Severity.
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range Severities {
		if string(sev) == s {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// MonitoredInstance is an automation-platform node watched by a tenant.
// APIKey is vault-encrypted.
type MonitoredInstance struct {
	ID            string
	CompanyID     string
	Name          string
	URL           string
	APIKey        string
	Active        bool
	CheckInterval int // seconds
	LastCheckedAt *time.Time
	CreatedAt     time.Time
}

// MonitoredError is an append-only error event. InstanceID is a weak
// reference: the instance may have been removed since the error was recorded.
type MonitoredError struct {
	ID         string
	CompanyID  string
	InstanceID string
	Severity   Severity
	Message    string
	Workflow   string
	Timestamp  time.Time
	Resolved   bool
	ResolvedAt *time.Time
}
