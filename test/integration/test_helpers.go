//go:build integration

// functions that are useful in integration tests

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/betforbes/authflow/internal/authapi"
	"github.com/betforbes/authflow/internal/flow"
)

func newTestCredentials() flow.Credentials {
	return flow.Credentials{
		Name:     gofakeit.Name(),
		Email:    flow.UniqueEmail("teste.flow@gmail.com"),
		Password: "TesteSeguro123!",
	}
}

func newTestClient(t *testing.T, env *testEnv) *authapi.Client {
	t.Helper()

	client, err := authapi.NewClient(env.baseURL, 10*time.Second, nil)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return client
}

// runFlow runs the flow runner against the test server and returns the report and console transcript
func runFlow(t *testing.T, env *testEnv, opts flow.Options) (*flow.Report, string) {
	t.Helper()

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	runner := flow.NewRunner(newTestClient(t, env), env.queries, opts, &out, logger)

	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v\n%s", err, out.String())
	}
	t.Logf("flow transcript:\n%s", out.String())
	return report, out.String()
}

// countUsers returns the number of users with the given email
func countUsers(t *testing.T, env *testEnv, email string) int64 {
	t.Helper()

	n, err := env.queries.CountUsersByEmail(context.Background(), strings.ToLower(email))
	if err != nil {
		t.Fatalf("CountUsersByEmail() error: %v", err)
	}
	return n
}

func expectStatus(t *testing.T, step string, resp *authapi.Response, want int) {
	t.Helper()

	if resp.StatusCode != want {
		t.Errorf("%s: got status %d, want %d (%s)", step, resp.StatusCode, want, resp.Body)
	}
}

func expectCode(t *testing.T, step string, resp *authapi.Response, want authapi.ErrorCode) {
	t.Helper()

	var envelope authapi.Envelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		t.Fatalf("%s: response is not an envelope: %v", step, err)
	}
	if envelope.Code != want {
		t.Errorf("%s: got code %q, want %q", step, envelope.Code, want)
	}
}
