package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/betforbes/authflow/internal/authapi"
	"github.com/betforbes/authflow/internal/database"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the auth API and its database are reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		var failed bool

		client, err := authapi.NewClient(cfg.BaseURL, cfg.HTTPTimeout, appLogger)
		if err != nil {
			return err
		}

		resp, err := client.Health(ctx)
		switch {
		case err != nil:
			failed = true
			appLogger.Warn("API health check failed", slog.String("error", err.Error()))
			fmt.Fprintf(out, "API %s: unreachable (%v)\n", client.BaseURL(), err)
		default:
			fmt.Fprintf(out, "API %s: %d\n", client.BaseURL(), resp.StatusCode)
		}

		pool, err := connectDatabase(ctx)
		if err != nil {
			failed = true
			fmt.Fprintf(out, "database: unreachable (%v)\n", err)
		} else {
			defer pool.Close()
			running, err := database.New(pool).IsDatabaseRunning(ctx)
			if err != nil || !running {
				failed = true
				fmt.Fprintf(out, "database: not ready (%v)\n", err)
			} else {
				fmt.Fprintln(out, "database: ok")
			}
		}

		if failed {
			return errors.New("status check failed")
		}
		return nil
	},
}
