package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/leadinbox/internal/adapter/driven/vault"
)

func newSignCmd() *cobra.Command {
	var (
		secret string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the X-Webhook-Signature of a payload read from --file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return errors.New("--secret is required")
			}

			var (
				payload []byte
				err     error
			)
			if file != "" {
				payload, err = os.ReadFile(file)
			} else {
				payload, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), vault.Sign(payload, secret))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "webhook secret or instance API key")
	cmd.Flags().StringVar(&file, "file", "", "payload file (default stdin)")
	return cmd
}
