package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/leadinbox/internal/domain/model"
	"github.com/ericfisherdev/leadinbox/internal/security/session"
)

func newTokenCmd() *cobra.Command {
	var (
		secret    string
		issuer    string
		userID    string
		companyID string
		email     string
		role      string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for a user of a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return errors.New("--secret or LEADINBOX_JWT_SECRET is required")
			}
			r := model.Role(role)
			if r != model.RoleAdmin && r != model.RoleMember {
				return fmt.Errorf("--role must be admin or member, got %q", role)
			}

			tm, err := session.NewTokenManager(secret, issuer)
			if err != nil {
				return err
			}
			token, err := tm.Issue(model.Principal{UserID: userID, CompanyID: companyID, Email: email, Role: r}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", envOr("JWT_SECRET", ""), "signing secret")
	cmd.Flags().StringVar(&issuer, "issuer", envOr("JWT_ISSUER", "leadinbox"), "token issuer")
	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&companyID, "company", "", "company id (required)")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&role, "role", string(model.RoleMember), "admin or member")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}
