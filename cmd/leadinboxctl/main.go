// Command leadinboxctl is the operator CLI: key generation, session tokens
// for testing and webhook signatures.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadinboxctl <command>",
		Short:         "Operator tooling for the leadinbox service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newKeygenCmd(), newTokenCmd(), newSignCmd(), newHealthCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// envOr returns the value of the LEADINBOX_ variable key, or def.
func envOr(key, def string) string {
	if v := os.Getenv("LEADINBOX_" + key); v != "" {
		return v
	}
	return def
}
