package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Netflix/go-env"
)

// FlowEnvironment configures the authflow CLI.
// The credential defaults are the values used by the original smoke test against production.
type FlowEnvironment struct {
	Environment string `env:"ENVIRONMENT,default=dev"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// remote service
	BaseURL     string        `env:"BASE_URL,default=https://www.betforbes.com"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT,default=30s"`
	JWKSURL     string        `env:"JWKS_URL"`

	// test user
	TestName     string `env:"TEST_NAME,default=Teste Flow"`
	TestEmail    string `env:"TEST_EMAIL,default=teste.flow@gmail.com"`
	TestPassword string `env:"TEST_PASSWORD,default=TesteSeguro123!"`
	UniqueEmail  bool   `env:"UNIQUE_EMAIL,default=false"`
	SkipCleanup  bool   `env:"SKIP_CLEANUP,default=false"`

	// token wait
	SettleDelay       time.Duration `env:"SETTLE_DELAY,default=2s"`
	TokenWaitMode     string        `env:"TOKEN_WAIT_MODE,default=fixed"`
	TokenPollTimeout  time.Duration `env:"TOKEN_POLL_TIMEOUT,default=10s"`
	TokenPollInterval time.Duration `env:"TOKEN_POLL_INTERVAL,default=250ms"`

	// database settings
	DatabaseURL         string        `env:"DATABASE_URL,default=postgres://postgres@%2Fvar%2Frun%2Fpostgresql/betforbes_db"`
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS,default=2"`
	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT,default=5s"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT,default=10s"`
}

// StubEnvironment configures the authstub server, a local stand-in for the remote auth API.
type StubEnvironment struct {

	// http server settings
	Environment           string        `env:"ENVIRONMENT,default=dev"`
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=8080"`
	LogLevel              string        `env:"LOG_LEVEL,default=debug"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	RateLimitRPS          int32         `env:"RATE_LIMIT_RPS,default=100"`
	RateLimitBurst        int32         `env:"RATE_LIMIT_BURST,default=200"`
	MaxRequestSize        int64         `env:"MAX_REQUEST_SIZE,default=65536"`

	// auth behaviour
	TokenWriteDelay      time.Duration `env:"TOKEN_WRITE_DELAY,default=0s"`
	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL,default=24h"`
	AccessTokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL,default=15m"`
	SessionTTL           time.Duration `env:"SESSION_TTL,default=720h"`
	TokenIssuer          string        `env:"TOKEN_ISSUER,default=authstub"`
	BcryptCost           int           `env:"BCRYPT_COST,default=10"`

	// private Ed25519 JWK (see cmd/keygen). A fresh key is generated at start-up when empty.
	SigningKeyPath string `env:"SIGNING_KEY_PATH"`

	// database settings
	MigrateOnStart      bool          `env:"MIGRATE_ON_START,default=true"`
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS,default=4"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS,default=0"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME,default=60m"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME,default=30m"`
	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT,default=5s"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT,default=10s"`

	DatabaseURL string `env:"DATABASE_URL,required=true"`
}

const (
	TokenWaitFixed = "fixed"
	TokenWaitPoll  = "poll"
)

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"prod":    true,
	"staging": true,
}

// NewFlowConfig loads environment variables and returns a FlowEnvironment struct that contains the values
func NewFlowConfig() (*FlowEnvironment, error) {
	var cfg FlowEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the flow settings. It is exported so the CLI can re-validate after applying flag overrides.
func (cfg *FlowEnvironment) Validate() error {
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BASE_URL must be an absolute URL, got %q", cfg.BaseURL)
	}
	if cfg.JWKSURL != "" {
		if u, err := url.Parse(cfg.JWKSURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("JWKS_URL must be an absolute URL, got %q", cfg.JWKSURL)
		}
	}

	if cfg.TestEmail == "" || cfg.TestPassword == "" {
		return fmt.Errorf("TEST_EMAIL and TEST_PASSWORD must not be empty")
	}

	switch cfg.TokenWaitMode {
	case TokenWaitFixed, TokenWaitPoll:
	default:
		return fmt.Errorf("TOKEN_WAIT_MODE must be %q or %q, got %q", TokenWaitFixed, TokenWaitPoll, cfg.TokenWaitMode)
	}
	if cfg.SettleDelay < 0 {
		return fmt.Errorf("SETTLE_DELAY must be 0 or greater")
	}
	if cfg.TokenPollTimeout <= 0 || cfg.TokenPollInterval <= 0 {
		return fmt.Errorf("TOKEN_POLL_TIMEOUT and TOKEN_POLL_INTERVAL must be greater than 0")
	}
	if cfg.TokenPollInterval > cfg.TokenPollTimeout {
		return fmt.Errorf("TOKEN_POLL_INTERVAL (%s) cannot be greater than TOKEN_POLL_TIMEOUT (%s)",
			cfg.TokenPollInterval, cfg.TokenPollTimeout)
	}
	if cfg.HTTPTimeout < 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be 0 or greater")
	}

	if cfg.DBMaxConnections < 1 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be at least 1")
	}

	return nil
}

// NewStubConfig loads environment variables and returns a StubEnvironment struct that contains the values
func NewStubConfig() (*StubEnvironment, error) {
	var cfg StubEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateStubConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateStubConfig checks for required env variables
func validateStubConfig(cfg *StubEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}

	// Validate database pool configuration
	if cfg.DBMaxConnections < 1 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be at least 1")
	}
	if cfg.DBMinConnections < 0 {
		return fmt.Errorf("DB_MIN_CONNECTIONS must be 0 or greater")
	}
	if cfg.DBMinConnections > cfg.DBMaxConnections {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) cannot be greater than DB_MAX_CONNECTIONS (%d)",
			cfg.DBMinConnections, cfg.DBMaxConnections)
	}

	if cfg.TokenWriteDelay < 0 {
		return fmt.Errorf("TOKEN_WRITE_DELAY must be 0 or greater")
	}
	if cfg.VerificationTokenTTL <= 0 || cfg.AccessTokenTTL <= 0 || cfg.SessionTTL <= 0 {
		return fmt.Errorf("VERIFICATION_TOKEN_TTL, ACCESS_TOKEN_TTL and SESSION_TTL must be greater than 0")
	}
	if cfg.MaxRequestSize < 1 {
		return fmt.Errorf("MAX_REQUEST_SIZE must be at least 1")
	}

	// bcrypt.MinCost .. bcrypt.MaxCost
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.BcryptCost)
	}

	return nil
}
