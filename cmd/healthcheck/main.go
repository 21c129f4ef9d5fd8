// Command healthcheck queries a running leadinbox server from inside its
// container and exits non-zero unless every component reports ok.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	defaultAddr  = "127.0.0.1:8080"
	checkTimeout = 2 * time.Second
)

type healthReport struct {
	Status     string `json:"status"`
	Components []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"components"`
}

func main() {
	url := os.Getenv("LEADINBOX_HEALTH_URL")
	if url == "" {
		url = "http://" + loopbackAddr(os.Getenv("LEADINBOX_LISTEN_ADDR")) + "/api/v1/health"
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	if err := checkHealth(ctx, &http.Client{Timeout: checkTimeout}, url); err != nil {
		fmt.Fprintln(os.Stderr, "unhealthy:", err)
		os.Exit(1)
	}
}

// checkHealth fetches the health report at url and fails on a non-200 answer or any
// component that is not ok.
func checkHealth(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var report healthReport
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&report); err != nil {
		return fmt.Errorf("status %d: unreadable report: %w", resp.StatusCode, err)
	}
	for _, c := range report.Components {
		if c.Status != "ok" {
			return fmt.Errorf("%s is %s: %s", c.Name, c.Status, c.Error)
		}
	}
	if resp.StatusCode != http.StatusOK || report.Status != "ok" {
		return fmt.Errorf("status %d, report %q", resp.StatusCode, report.Status)
	}
	return nil
}

// loopbackAddr rewrites a bind-all listen address to loopback.
func loopbackAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return defaultAddr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
