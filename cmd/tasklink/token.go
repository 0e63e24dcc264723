package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phrazzld/tasklink/internal/service/auth"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a service token for the HTTP API",
		Long: `Issue a bearer token for a caller of the HTTP API, such as the webhook
gateway. The token lives for auth.token_lifetime_minutes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadRuntime(opts)
			if err != nil {
				return err
			}

			jwtService, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return err
			}

			token, err := jwtService.GenerateToken(cmd.Context(), subject)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "name of the calling service")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
