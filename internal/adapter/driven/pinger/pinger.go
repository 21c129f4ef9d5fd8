// Package pinger checks that monitored automation instances respond.
package pinger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/leadinbox/internal/domain/port/driven"
)

var _ driven.InstancePinger = (*HTTPPinger)(nil)

// HTTPPinger issues GET {baseURL}/healthz with the instance API key.
type HTTPPinger struct {
	httpClient *http.Client
	timeout    time.Duration
}

// New creates an HTTPPinger whose pings are bounded by timeout.
func New(timeout time.Duration) *HTTPPinger {
	return &HTTPPinger{httpClient: &http.Client{}, timeout: timeout}
}

// Ping returns nil when the instance answers with a 2xx status.
func (p *HTTPPinger) Ping(ctx context.Context, baseURL, apiKey string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-N8N-API-KEY", apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping %s: %w", baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ping %s: status %d", baseURL, resp.StatusCode)
	}
	return nil
}
