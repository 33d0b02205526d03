package cli

import (
	"log/slog"

	"github.com/betforbes/authflow/internal/accesstoken"
	"github.com/betforbes/authflow/internal/authapi"
	"github.com/betforbes/authflow/internal/database"
	"github.com/betforbes/authflow/internal/flow"
	"github.com/spf13/cobra"
)

var (
	runEmail       string
	runUnique      bool
	runWaitMode    string
	runSkipCleanup bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the register -> verify -> login -> cleanup flow",
	Long: `Run the full flow once against BASE_URL.

Every step prints its outcome. Non-2xx responses are reported, not treated as failures;
only a failed registration (anything other than 201) stops the run early.
The command exits non-zero only when the API or the database cannot be reached.

Example:
  authflow run --unique --wait poll`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("email") {
			cfg.TestEmail = runEmail
		}
		if cmd.Flags().Changed("unique") {
			cfg.UniqueEmail = runUnique
		}
		if cmd.Flags().Changed("wait") {
			cfg.TokenWaitMode = runWaitMode
		}
		if cmd.Flags().Changed("skip-cleanup") {
			cfg.SkipCleanup = runSkipCleanup
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		email := cfg.TestEmail
		if cfg.UniqueEmail {
			email = flow.UniqueEmail(email)
		}

		client, err := authapi.NewClient(cfg.BaseURL, cfg.HTTPTimeout, appLogger)
		if err != nil {
			return err
		}

		pool, err := connectDatabase(ctx)
		if err != nil {
			appLogger.Error("database unavailable", slog.String("error", err.Error()))
			return err
		}
		defer pool.Close()

		runner := flow.NewRunner(client, database.New(pool), flow.Options{
			Credentials: flow.Credentials{
				Name:     cfg.TestName,
				Email:    email,
				Password: cfg.TestPassword,
			},
			WaitMode:     flow.WaitMode(cfg.TokenWaitMode),
			SettleDelay:  cfg.SettleDelay,
			PollTimeout:  cfg.TokenPollTimeout,
			PollInterval: cfg.TokenPollInterval,
			SkipCleanup:  cfg.SkipCleanup,
		}, cmd.OutOrStdout(), appLogger)

		if cfg.JWKSURL != "" {
			verifier, err := accesstoken.NewVerifier(ctx, cfg.JWKSURL, appLogger)
			if err != nil {
				return err
			}
			runner.WithInspector(verifier.Verify)
		}

		if _, err := runner.Run(ctx); err != nil {
			appLogger.Error("flow aborted", slog.String("error", err.Error()))
			return err
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runEmail, "email", "", "test user email (overrides TEST_EMAIL)")
	runCmd.Flags().BoolVar(&runUnique, "unique", false, "add a random +tag to the email (overrides UNIQUE_EMAIL)")
	runCmd.Flags().StringVar(&runWaitMode, "wait", "", "token wait mode: fixed or poll (overrides TOKEN_WAIT_MODE)")
	runCmd.Flags().BoolVar(&runSkipCleanup, "skip-cleanup", false, "leave the test user in the database (overrides SKIP_CLEANUP)")
}
