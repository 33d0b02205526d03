package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"

	"github.com/betforbes/authflow/internal/accesstoken"
	"github.com/betforbes/authflow/internal/auth/authtest"
	"github.com/betforbes/authflow/internal/authapi"
	"github.com/betforbes/authflow/internal/config"
	"github.com/betforbes/authflow/internal/flow"
)

func testStubConfig() *config.StubEnvironment {
	return &config.StubEnvironment{
		Environment:           "test",
		Host:                  "127.0.0.1",
		Port:                  0,
		ServerShutdownTimeout: time.Second,
		RateLimitRPS:          0,
		MaxRequestSize:        64 * 1024,
		VerificationTokenTTL:  24 * time.Hour,
		AccessTokenTTL:        15 * time.Minute,
		SessionTTL:            time.Hour,
		TokenIssuer:           "authstub-test",
		BcryptCost:            bcrypt.MinCost,
	}
}

func startTestServer(t *testing.T, cfg *config.StubEnvironment) (*httptest.Server, *authtest.MemStore) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := authtest.NewMemStore()
	logger := slog.New(slog.DiscardHandler)

	srv, err := NewServer(ctx, nil, store, cfg, logger)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func decodeEnvelope(t *testing.T, body []byte) authapi.Envelope {
	t.Helper()

	var envelope authapi.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, body)
	}
	return envelope
}

func fakeUser() flow.Credentials {
	return flow.Credentials{
		Name:     gofakeit.Name(),
		Email:    gofakeit.Email(),
		Password: gofakeit.Password(true, true, true, false, false, 12) + "Aa1",
	}
}

// TestFlowAgainstStub runs the complete flow runner against the stub server.
func TestFlowAgainstStub(t *testing.T) {
	ts, store := startTestServer(t, testStubConfig())

	client, err := authapi.NewClient(ts.URL, 5*time.Second, nil)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}

	creds := fakeUser()
	var out bytes.Buffer
	runner := flow.NewRunner(client, store, flow.Options{
		Credentials:  creds,
		WaitMode:     flow.WaitPoll,
		PollTimeout:  2 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}, &out, slog.New(slog.DiscardHandler))

	verifier, err := accesstoken.NewVerifier(t.Context(), ts.URL+"/.well-known/jwks.json", nil)
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}
	runner.WithInspector(verifier.Verify)

	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v\n%s", err, out.String())
	}

	if report.RegisterStatus != http.StatusCreated || report.VerifyStatus != http.StatusOK || report.LoginStatus != http.StatusOK {
		t.Errorf("statuses = %d/%d/%d\n%s", report.RegisterStatus, report.VerifyStatus, report.LoginStatus, out.String())
	}
	if len(report.Token) != 64 {
		t.Errorf("token = %q, want 64 hex characters", report.Token)
	}
	if report.AccessToken == nil || !report.AccessToken.Verified {
		t.Errorf("access token not verified: %+v", report.AccessToken)
	}
	if report.DeletedRows != 1 {
		t.Errorf("DeletedRows = %d", report.DeletedRows)
	}
	if _, ok := store.User(strings.ToLower(creds.Email)); ok {
		t.Error("test user still present after cleanup")
	}
}

func TestRegisterEndpoint(t *testing.T) {
	ts, _ := startTestServer(t, testStubConfig())
	client, _ := authapi.NewClient(ts.URL, 5*time.Second, nil)
	ctx := context.Background()

	creds := fakeUser()
	req := authapi.RegisterRequest{Name: creds.Name, Email: creds.Email, Password: creds.Password}

	resp, err := client.Register(ctx, req)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d (%s)", resp.StatusCode, resp.Body)
	}

	envelope := decodeEnvelope(t, resp.Body)
	var data authapi.RegisterData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !envelope.Success || data.User.Email != strings.ToLower(creds.Email) {
		t.Errorf("envelope = %+v data = %+v", envelope, data)
	}

	resp, err = client.Register(ctx, req)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate status = %d", resp.StatusCode)
	}
	if code := decodeEnvelope(t, resp.Body).Code; code != authapi.ErrCodeEmailAlreadyExists {
		t.Errorf("duplicate code = %s", code)
	}
}

func TestRequestErrors(t *testing.T) {
	ts, _ := startTestServer(t, testStubConfig())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   authapi.ErrorCode
	}{
		{"malformed register body", http.MethodPost, "/api/auth/register", "{not json", http.StatusBadRequest, authapi.ErrCodeValidation},
		{"malformed login body", http.MethodPost, "/api/auth/login", "[]", http.StatusBadRequest, authapi.ErrCodeValidation},
		{"missing token", http.MethodGet, "/api/auth/verify-email", "", http.StatusBadRequest, authapi.ErrCodeMissingToken},
		{"unknown token", http.MethodGet, "/api/auth/verify-email?token=abc", "", http.StatusBadRequest, authapi.ErrCodeInvalidToken},
		{"unknown user", http.MethodPost, "/api/auth/login", `{"email":"nobody@example.com","password":"Secret123"}`, http.StatusUnauthorized, authapi.ErrCodeInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, body)
			if err != nil {
				t.Fatalf("NewRequest() error: %v", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			raw, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, raw)
			}
			if code := decodeEnvelope(t, raw).Code; code != tt.wantCode {
				t.Errorf("code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func TestInfrastructureEndpoints(t *testing.T) {
	ts, store := startTestServer(t, testStubConfig())

	for _, path := range []string{"/health/live", "/health/ready", "/version", "/.well-known/jwks.json"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Request-Id") == "" && resp.Header.Get("X-Content-Type-Options") == "" {
			t.Errorf("GET %s: middleware headers missing", path)
		}
	}

	store.Err = io.ErrUnexpectedEOF
	resp, err := http.Get(ts.URL + "/health/ready")
	if err != nil {
		t.Fatalf("GET /health/ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readiness with failing database = %d", resp.StatusCode)
	}
}

func TestShutdownWaitsForTokenWritesAfterTimeout(t *testing.T) {
	cfg := testStubConfig()
	cfg.TokenWriteDelay = 50 * time.Millisecond
	cfg.ServerShutdownTimeout = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := authtest.NewMemStore()
	srv, err := NewServer(ctx, nil, store, cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}

	creds := fakeUser()
	req := authapi.RegisterRequest{Name: creds.Name, Email: creds.Email, Password: creds.Password}
	if _, err := srv.service.Register(ctx, req); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	// an in-flight request keeps Shutdown from finishing within the timeout
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	httpServer := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	})}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go httpServer.Serve(ln)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-started

	if err := srv.shutdown(httpServer); err == nil {
		t.Fatal("shutdown() returned nil, want a timeout with a request in flight")
	}

	if _, err := store.GetLatestVerificationTokenByEmail(ctx, strings.ToLower(creds.Email)); err != nil {
		t.Errorf("delayed token write did not finish before shutdown returned: %v", err)
	}
}
