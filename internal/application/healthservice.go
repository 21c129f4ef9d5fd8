package application

import (
	"context"
	"sync"
	"time"
)

// Health states reported by HealthService.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthProbe checks one runtime dependency.
type HealthProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// ComponentHealth is the outcome of one probe.
type ComponentHealth struct {
	Name   string
	Status string
	Error  string
}

// HealthReport aggregates every probe. Status is degraded when any probe failed.
type HealthReport struct {
	Status     string
	Components []ComponentHealth
}

// HealthService runs dependency probes for the health endpoint.
type HealthService struct {
	probes  []HealthProbe
	timeout time.Duration
}

// NewHealthService creates a HealthService. Each probe gets its own timeout.
func NewHealthService(timeout time.Duration, probes ...HealthProbe) *HealthService {
	return &HealthService{probes: probes, timeout: timeout}
}

// Check runs all probes concurrently. Components keep the probe order.
func (s *HealthService) Check(ctx context.Context) HealthReport {
	report := HealthReport{Status: HealthOK, Components: make([]ComponentHealth, len(s.probes))}

	var wg sync.WaitGroup
	for i, probe := range s.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			c := ComponentHealth{Name: probe.Name, Status: HealthOK}
			if err := probe.Check(pctx); err != nil {
				c.Status = HealthDegraded
				c.Error = err.Error()
			}
			report.Components[i] = c
		}()
	}
	wg.Wait()

	for _, c := range report.Components {
		if c.Status != HealthOK {
			report.Status = HealthDegraded
		}
	}
	return report
}
