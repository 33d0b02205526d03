package cli

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/betforbes/authflow/internal/config"
	"github.com/betforbes/authflow/internal/database"
	"github.com/betforbes/authflow/internal/logger"
	"github.com/betforbes/authflow/internal/version"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var (
	cfg       *config.FlowEnvironment
	appLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "authflow",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Short:             "End-to-end smoke test for the BetForbes auth API",
	Long: `authflow registers a test user, reads the verification token from the database,
verifies the email, logs in and deletes the user again.

Configuration is read from environment variables (BASE_URL, DATABASE_URL, TEST_EMAIL, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewFlowConfig()
		if err != nil {
			log.Printf("failed to load configuration: %v", err.Error())
			return err
		}

		appLogger = logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)
		return nil
	},
}

// Execute runs the authflow CLI. SIGINT/SIGTERM cancel the command context.
func Execute() {
	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(inspectCmd)
}

// connectDatabase opens a small pool against the auth service database.
func connectDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, database.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DBMaxConnections,
		ConnectTimeout: cfg.DBConnectTimeout,
		PingTimeout:    cfg.DatabasePingTimeout,
	})
	if err != nil {
		return nil, err
	}

	appLogger.Debug("connected to PostgreSQL")
	return pool, nil
}
