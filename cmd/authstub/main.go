// authstub is a local stand-in for the BetForbes auth API.
//
// It serves register, verify-email and login against its own Postgres database so the
// authflow smoke test can be run without touching production.
package main

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
	"github.com/betforbes/authflow/internal/server"
	"github.com/betforbes/authflow/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:   "authstub",
		Short: "Local stand-in for the BetForbes auth API",
		Long: `authstub implements /api/auth/register, /api/auth/verify-email and /api/auth/login
against a local Postgres database (DATABASE_URL). Set TOKEN_WRITE_DELAY to make the
verification token appear some time after the registration response.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewStubConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.Duration("TOKEN_WRITE_DELAY", cfg.TokenWriteDelay),
		slog.Duration("VERIFICATION_TOKEN_TTL", cfg.VerificationTokenTTL),
		slog.Duration("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL),
		slog.Bool("MIGRATE_ON_START", cfg.MigrateOnStart),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, database.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConnections,
		MinConns:        cfg.DBMinConnections,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		ConnectTimeout:  cfg.DBConnectTimeout,
		PingTimeout:     cfg.DatabasePingTimeout,
	})
	if err != nil {
		appLogger.Error("Unable to connect to database", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("connected to PostgreSQL")

	if cfg.MigrateOnStart {
		schemaVersion, err := database.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			appLogger.Error("database migration failed", slog.String("error", err.Error()))
			return err
		}
		appLogger.Info("database schema up to date", slog.Int64("version", schemaVersion))
	}

	// get the sqlc generated database queries
	queries := database.New(pool)

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	srv, err := server.NewServer(ctx, pool, queries, cfg, appLogger)
	if err != nil {
		pool.Close()
		appLogger.Error("Failed to create server", slog.String("error", err.Error()))
		return err
	}

	defer srv.DatabaseShutdown()

	if err := srv.Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}
