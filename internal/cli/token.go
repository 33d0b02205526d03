package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/betforbes/authflow/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <email>",
	Short: "Print the newest email verification token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		email := strings.ToLower(args[0])

		pool, err := connectDatabase(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		token, err := database.New(pool).GetLatestVerificationTokenByEmail(ctx, email)
		if errors.Is(err, pgx.ErrNoRows) {
			fmt.Fprintf(cmd.OutOrStdout(), "no verification token for %s\n", email)
			return nil
		}
		if err != nil {
			return fmt.Errorf("token lookup: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
