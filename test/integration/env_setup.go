//go:build integration

package integration

// Test environment setup and server lifecycle management.
//
// The integration tests start the authstub HTTP server in-process with a temporary database and
// run the flow against it. Each test creates an empty temporary database and applies the embedded
// goose migrations so the schema reflects the latest code. The database is dropped after each test.
//
// By default the server logs are not included in the test output, you can enable them with:
//
//	ENABLE_SERVER_LOGS=true go test -tags=integration -v ./test/integration
//

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/betforbes/authflow/internal/config"
	"github.com/betforbes/authflow/internal/database"
	"github.com/betforbes/authflow/internal/logger"
	"github.com/betforbes/authflow/internal/server"
	"github.com/jackc/pgx/v5/pgxpool"
)

// testEnv provides access to test db and server for integration tests
type testEnv struct {
	baseURL  string
	cfg      *config.StubEnvironment
	pool     *pgxpool.Pool
	queries  *database.Queries
	shutdown func()
}

// startInProcessServer starts authstub in-process - returns the test environment including the base URL
// tokenWriteDelay is passed through as TOKEN_WRITE_DELAY
func startInProcessServer(t *testing.T, tokenWriteDelay time.Duration) *testEnv {
	t.Helper()

	testEnv := &testEnv{}

	t.Log("Starting in-process server...")

	var (
		ctx          = context.Background()
		host         = "localhost"
		port         = findFreePort(t)
		rateLimitRPS = 0
		environment  = "test"
		logLevel     = logger.ParseLogLevel("none")
	)

	enableServerLogs := os.Getenv("ENABLE_SERVER_LOGS") == "true"
	if enableServerLogs {
		logLevel = logger.ParseLogLevel("debug")
	}

	// configure db
	testEnv.pool = setupTestDatabase(t)
	testDatabaseURL := testEnv.pool.Config().ConnString()

	testEnvVars := map[string]string{
		"HOST":              host,
		"PORT":              fmt.Sprintf("%d", port),
		"RATE_LIMIT_RPS":    fmt.Sprintf("%d", rateLimitRPS),
		"DATABASE_URL":      testDatabaseURL,
		"ENVIRONMENT":       environment,
		"LOG_LEVEL":         logLevel.String(),
		"TOKEN_WRITE_DELAY": tokenWriteDelay.String(),
		"BCRYPT_COST":       "4",
		"MIGRATE_ON_START":  "false",
	}

	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	cfg, err := config.NewStubConfig()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	testEnv.queries = database.New(testEnv.pool)

	appLogger := logger.InitLogger(logLevel, "test")

	// Create a cancellable context for server shutdown
	serverCtx, serverCancel := context.WithCancel(ctx)

	serverInstance, err := server.NewServer(
		serverCtx,
		testEnv.pool,
		testEnv.queries,
		cfg,
		appLogger,
	)
	if err != nil {
		serverCancel()
		t.Fatalf("Failed to create server: %v", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := serverInstance.Start(serverCtx); err != nil {
			serverDone <- err
		}
	}()

	// the pool is owned by setupTestDatabase, so DatabaseShutdown is not called here
	testEnv.shutdown = func() {
		t.Log("Stopping server...")

		serverCancel()

		select {
		case err := <-serverDone:
			if err != nil {
				t.Logf("❌ Server shutdown with error: %v", err)
			} else {
				t.Log("✅ Server shut down gracefully")
			}
		case <-time.After(5 * time.Second):
			t.Log("⚠️ Server shutdown timeout")
		}
	}
	t.Cleanup(testEnv.shutdown)

	testEnv.baseURL = fmt.Sprintf("http://localhost:%d", port)
	testEnv.cfg = cfg

	if !waitForServer(t, testEnv.baseURL+"/health/live", 30*time.Second) {
		t.Fatal("Server failed to start within timeout")
	}

	t.Logf("✅ Server started at %s", testEnv.baseURL)
	return testEnv
}

func findFreePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.Port
}

func waitForServer(t *testing.T, url string, timeout time.Duration) bool {
	t.Helper()

	client := &http.Client{Timeout: 1 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// Test database configuration

type databaseConfig struct {
	userAndPassword string
	dbname          string
	host            string
	port            int
}

func (d *databaseConfig) connectionURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=disable",
		d.userAndPassword, d.host, d.port, d.dbname)
}

func (d *databaseConfig) WithDatabase(dbname string) *databaseConfig {
	return &databaseConfig{
		userAndPassword: d.userAndPassword,
		host:            d.host,
		port:            d.port,
		dbname:          dbname,
	}
}

func localDatabaseConfig() *databaseConfig {
	return &databaseConfig{
		userAndPassword: "postgres:postgres",
		dbname:          "tmp_authflow_integration_test",
		host:            "localhost",
		port:            15432,
	}
}

func ciDatabaseConfig() *databaseConfig {
	return &databaseConfig{
		userAndPassword: "postgres:postgres",
		dbname:          "tmp_authflow_integration_test",
		host:            "localhost",
		port:            5432,
	}
}

// setupTestDatabase creates an empty test db, applies migrations and returns a connection pool
// the function auto-detects if it is running in CI (github actions) and uses the appropriate database config
func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	config := *localDatabaseConfig()
	if os.Getenv("GITHUB_ACTIONS") == "true" {
		config = *ciDatabaseConfig()
	}

	postgresConnectionURL := config.WithDatabase("postgres").connectionURL()

	// this pool stays open until after the test database is dropped in cleanup
	postgresPool, err := pgxpool.New(ctx, postgresConnectionURL)
	if err != nil {
		t.Fatalf("Unable to create postgres connection pool: %v", err)
	}

	if err := postgresPool.Ping(ctx); err != nil {
		t.Fatalf("Can't ping PostgreSQL server %s", postgresConnectionURL)
	}

	if _, err := postgresPool.Exec(ctx, "DROP DATABASE IF EXISTS "+config.dbname); err != nil {
		t.Fatalf("DROP DATABASE IF EXISTS Failed : %v", err)
	}

	if _, err := postgresPool.Exec(ctx, "CREATE DATABASE "+config.dbname); err != nil {
		t.Fatalf("CREATE DATABASE Failed : %v", err)
	}

	t.Cleanup(func() {
		postgresPool.Close()
	})

	// drop the test database when the test is complete (cleanups run last-in first-out,
	// so the test pool registered below is closed first)
	t.Cleanup(func() {
		if _, err := postgresPool.Exec(ctx, "DROP DATABASE "+config.dbname); err != nil {
			t.Errorf("Failed to drop test database: %v", err)
		}
	})

	testDatabasePool, err := database.Connect(ctx, database.PoolConfig{
		DatabaseURL: config.connectionURL(),
		PingTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Unable to connect to test database: %v", err)
	}
	t.Cleanup(testDatabasePool.Close)

	schemaVersion, err := database.Migrate(ctx, testDatabasePool)
	if err != nil {
		t.Fatalf("Failed to apply database migrations: %v", err)
	}

	t.Logf("Database ready: %s (schema version %d)", config.dbname, schemaVersion)

	return testDatabasePool
}
