package cli

import (
	"fmt"

	"github.com/betforbes/authflow/internal/accesstoken"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <access-token>",
	Short: "Decode an access token returned by login",
	Long: `Decode the claims of an access token.

When JWKS_URL is set the signature and expiry are verified against the published keys,
otherwise the claims are decoded without verification.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var (
			claims *accesstoken.Claims
			err    error
		)
		if cfg.JWKSURL != "" {
			verifier, verr := accesstoken.NewVerifier(ctx, cfg.JWKSURL, appLogger)
			if verr != nil {
				return verr
			}
			claims, err = verifier.Verify(ctx, args[0])
		} else {
			claims, err = accesstoken.Inspect(args[0])
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), claims)
		return nil
	},
}
