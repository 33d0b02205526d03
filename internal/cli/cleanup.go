package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/betforbes/authflow/internal/database"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [email]",
	Short: "Delete a test user (defaults to TEST_EMAIL)",
	Long: `Delete a test user left behind by an interrupted run.
Verification tokens and sessions are removed with the user (ON DELETE CASCADE).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		email := cfg.TestEmail
		if len(args) == 1 {
			email = args[0]
		}
		email = strings.ToLower(email)

		pool, err := connectDatabase(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		queries := database.New(pool)

		deleted, err := queries.DeleteUserByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}

		remaining, err := queries.CountUsersByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}

		appLogger.Info("cleanup complete",
			slog.String("email", email),
			slog.Int64("deleted_rows", deleted),
			slog.Int64("remaining_rows", remaining))
		fmt.Fprintf(cmd.OutOrStdout(), "Cleanup: %d user(s) deleted, %d remaining\n", deleted, remaining)
		return nil
	},
}
