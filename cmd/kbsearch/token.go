package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/knoguchi/kbsearch/internal/auth"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		name    string
		refresh string
		expiry  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or refresh a bearer token for the HTTP API",
		Long: `Issue a bearer token for a new API client with --name, or reissue an existing
token for the same client with --refresh. Expired tokens can be refreshed as long as
their signature is valid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("expiry") {
				expiry = c.cfg.JWTExpiry
			}
			if expiry <= 0 {
				return fmt.Errorf("expiry must be positive, got %s", expiry)
			}

			manager := auth.NewJWTManager(&auth.JWTConfig{
				Secret: c.cfg.JWTSecret,
				Expiry: expiry,
			})

			var (
				token string
				err   error
			)
			if refresh != "" {
				token, err = manager.RefreshToken(refresh)
				if err != nil {
					return fmt.Errorf("failed to refresh token: %w", err)
				}
			} else {
				token, err = manager.GenerateToken(name)
				if err != nil {
					return err
				}
			}

			expiresAt, err := manager.TokenExpiry(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, token)
			fmt.Fprintf(c.stderr, "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "client name recorded in a new token")
	cmd.Flags().StringVar(&refresh, "refresh", "", "existing token to reissue for the same client")
	cmd.Flags().DurationVar(&expiry, "expiry", 24*time.Hour, "token lifetime (default JWT_EXPIRY)")
	cmd.MarkFlagsOneRequired("name", "refresh")
	cmd.MarkFlagsMutuallyExclusive("name", "refresh")
	return cmd
}
