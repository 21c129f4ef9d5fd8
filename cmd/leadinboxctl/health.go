package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type healthBody struct {
	Status     string `json:"status"`
	Components []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"components"`
}

func newHealthCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the health of a running leadinbox service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/v1/health", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("checking health: %w", err)
			}
			defer resp.Body.Close()

			var body healthBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("decoding health response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Health: %s\n", body.Status)
			for _, c := range body.Components {
				if c.Error != "" {
					fmt.Fprintf(out, "  %-10s %s (%s)\n", c.Name, c.Status, c.Error)
				} else {
					fmt.Fprintf(out, "  %-10s %s\n", c.Name, c.Status)
				}
			}

			if body.Status != "ok" {
				return fmt.Errorf("unhealthy: %s", body.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", envOr("URL", "http://127.0.0.1:8080"), "service base URL")
	return cmd
}
