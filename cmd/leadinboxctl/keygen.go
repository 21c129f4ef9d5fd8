package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print a random hex key for LEADINBOX_SECRET_KEY or LEADINBOX_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if size < 16 {
				return fmt.Errorf("key size must be at least 16 bytes, got %d", size)
			}
			key := make([]byte, size)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("reading random bytes: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key))
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "bytes", 32, "key size in bytes")
	return cmd
}
