package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewFlowConfigDefaults(t *testing.T) {
	cfg, err := NewFlowConfig()
	if err != nil {
		t.Fatalf("NewFlowConfig() error: %v", err)
	}

	if cfg.BaseURL != "https://www.betforbes.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.TestEmail != "teste.flow@gmail.com" {
		t.Errorf("TestEmail = %q", cfg.TestEmail)
	}
	if cfg.TestPassword != "TesteSeguro123!" {
		t.Errorf("TestPassword = %q", cfg.TestPassword)
	}
	if cfg.TestName != "Teste Flow" {
		t.Errorf("TestName = %q", cfg.TestName)
	}
	if cfg.SettleDelay != 2*time.Second {
		t.Errorf("SettleDelay = %s, want 2s", cfg.SettleDelay)
	}
	if cfg.TokenWaitMode != TokenWaitFixed {
		t.Errorf("TokenWaitMode = %q, want %q", cfg.TokenWaitMode, TokenWaitFixed)
	}
}

func TestNewFlowConfigOverrides(t *testing.T) {
	t.Setenv("BASE_URL", "http://localhost:8080")
	t.Setenv("TOKEN_WAIT_MODE", "poll")
	t.Setenv("TOKEN_POLL_TIMEOUT", "3s")
	t.Setenv("UNIQUE_EMAIL", "true")

	cfg, err := NewFlowConfig()
	if err != nil {
		t.Fatalf("NewFlowConfig() error: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.TokenWaitMode != TokenWaitPoll {
		t.Errorf("TokenWaitMode = %q", cfg.TokenWaitMode)
	}
	if cfg.TokenPollTimeout != 3*time.Second {
		t.Errorf("TokenPollTimeout = %s", cfg.TokenPollTimeout)
	}
	if !cfg.UniqueEmail {
		t.Error("UniqueEmail = false, want true")
	}
}

func TestFlowConfigValidate(t *testing.T) {
	valid := func() *FlowEnvironment {
		return &FlowEnvironment{
			Environment:       "dev",
			BaseURL:           "https://example.com",
			TestEmail:         "a@example.com",
			TestPassword:      "secret",
			TokenWaitMode:     TokenWaitFixed,
			SettleDelay:       time.Second,
			TokenPollTimeout:  time.Second,
			TokenPollInterval: 100 * time.Millisecond,
			DBMaxConnections:  1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*FlowEnvironment)
		wantErr string
	}{
		{"valid", func(*FlowEnvironment) {}, ""},
		{"bad environment", func(c *FlowEnvironment) { c.Environment = "qa" }, "ENVIRONMENT"},
		{"relative base url", func(c *FlowEnvironment) { c.BaseURL = "/api" }, "BASE_URL"},
		{"bad jwks url", func(c *FlowEnvironment) { c.JWKSURL = "jwks.json" }, "JWKS_URL"},
		{"empty email", func(c *FlowEnvironment) { c.TestEmail = "" }, "TEST_EMAIL"},
		{"bad wait mode", func(c *FlowEnvironment) { c.TokenWaitMode = "spin" }, "TOKEN_WAIT_MODE"},
		{"negative settle delay", func(c *FlowEnvironment) { c.SettleDelay = -time.Second }, "SETTLE_DELAY"},
		{"interval above timeout", func(c *FlowEnvironment) { c.TokenPollInterval = 2 * time.Second }, "TOKEN_POLL_INTERVAL"},
		{"no connections", func(c *FlowEnvironment) { c.DBMaxConnections = 0 }, "DB_MAX_CONNECTIONS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewStubConfigRequiresDatabaseURL(t *testing.T) {
	// t.Setenv restores the original value on cleanup
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")

	if _, err := NewStubConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is not set")
	}
}

func TestNewStubConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/authstub")
	t.Setenv("TOKEN_WRITE_DELAY", "500ms")

	cfg, err := NewStubConfig()
	if err != nil {
		t.Fatalf("NewStubConfig() error: %v", err)
	}
	if cfg.TokenWriteDelay != 500*time.Millisecond {
		t.Errorf("TokenWriteDelay = %s", cfg.TokenWriteDelay)
	}
	if cfg.VerificationTokenTTL != 24*time.Hour {
		t.Errorf("VerificationTokenTTL = %s, want 24h", cfg.VerificationTokenTTL)
	}
}

func TestValidateStubConfig(t *testing.T) {
	cfg := &StubEnvironment{
		Environment:          "test",
		Port:                 8080,
		DBMaxConnections:     4,
		VerificationTokenTTL: time.Hour,
		AccessTokenTTL:       time.Minute,
		SessionTTL:           time.Hour,
		MaxRequestSize:       1024,
		BcryptCost:           4,
	}
	if err := validateStubConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.DBMinConnections = 5
	if err := validateStubConfig(cfg); err == nil {
		t.Error("expected error when DB_MIN_CONNECTIONS > DB_MAX_CONNECTIONS")
	}
	cfg.DBMinConnections = 0

	cfg.BcryptCost = 40
	if err := validateStubConfig(cfg); err == nil {
		t.Error("expected error for out of range BCRYPT_COST")
	}
}
