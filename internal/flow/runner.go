// Package flow runs the register -> verify -> login -> cleanup sequence against the remote auth API.
//
// The sequence is strictly linear. The only branch is the registration gate: unless the
// service answers 201 Created nothing else runs. Every other outcome is printed to the
// console writer and the run carries on, including submitting an empty verification
// token when none was found.
//
// Transport and database faults abort the run. If the test user had already been
// created, the runner still attempts to delete it on a context detached from cancellation.
package flow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/betforbes/authflow/internal/accesstoken"
	"github.com/betforbes/authflow/internal/authapi"
)

// AuthAPI is the remote service. Implemented by *authapi.Client.
type AuthAPI interface {
	Register(ctx context.Context, req authapi.RegisterRequest) (*authapi.Response, error)
	VerifyEmail(ctx context.Context, token string) (*authapi.Response, error)
	Login(ctx context.Context, req authapi.LoginRequest) (*authapi.Response, error)
}

// TokenStore is the remote service's database. Implemented by *database.Queries.
//
// GetLatestVerificationTokenByEmail returns pgx.ErrNoRows when the user has no token (or does not exist).
type TokenStore interface {
	GetLatestVerificationTokenByEmail(ctx context.Context, email string) (string, error)
	DeleteUserByEmail(ctx context.Context, email string) (int64, error)
}

// InspectFunc decodes (and possibly verifies) the access token returned by login.
type InspectFunc func(ctx context.Context, raw string) (*accesstoken.Claims, error)

type WaitMode string

const (
	// WaitFixed sleeps for the settle delay then queries the token once
	WaitFixed WaitMode = "fixed"

	// WaitPoll queries the token repeatedly until it appears or the poll timeout elapses
	WaitPoll WaitMode = "poll"
)

const defaultCleanupTimeout = 30 * time.Second

type Options struct {
	Credentials Credentials

	WaitMode     WaitMode
	SettleDelay  time.Duration
	PollTimeout  time.Duration
	PollInterval time.Duration

	SkipCleanup bool

	// CleanupTimeout bounds the cleanup attempted after an aborted run
	CleanupTimeout time.Duration
}

// Report records what happened during a run. Zero status codes mean the step did not run.
type Report struct {
	Email string

	RegisterStatus int
	Registered     bool

	Token string

	VerifyStatus int
	LoginStatus  int

	// AccessToken is set when login returned a token that could be decoded
	AccessToken *accesstoken.Claims

	CleanupAttempted bool
	DeletedRows      int64
}

type Runner struct {
	api     AuthAPI
	store   TokenStore
	opts    Options
	out     io.Writer
	logger  *slog.Logger
	inspect InspectFunc
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewRunner(api AuthAPI, store TokenStore, opts Options, out io.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WaitMode == "" {
		opts.WaitMode = WaitFixed
	}
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = defaultCleanupTimeout
	}

	return &Runner{
		api:    api,
		store:  store,
		opts:   opts,
		out:    out,
		logger: logger,
		inspect: func(_ context.Context, raw string) (*accesstoken.Claims, error) {
			return accesstoken.Inspect(raw)
		},
		sleep: sleepContext,
	}
}

// WithInspector replaces the default decode-only access token inspection,
// e.g. with (*accesstoken.Verifier).Verify.
func (r *Runner) WithInspector(inspect InspectFunc) *Runner {
	r.inspect = inspect
	return r
}

// Run executes the flow. The returned report is never nil.
func (r *Runner) Run(ctx context.Context) (report *Report, err error) {
	creds := r.opts.Credentials

	// the service stores emails lower-cased
	dbEmail := strings.ToLower(creds.Email)

	report = &Report{Email: creds.Email}

	r.logger.Info("starting flow",
		slog.String("email", creds.Email),
		slog.String("wait_mode", string(r.opts.WaitMode)),
	)

	// 1. register
	r.heading("🔥", "Registering test user")
	resp, err := r.api.Register(ctx, authapi.RegisterRequest{
		Name:     creds.Name,
		Email:    creds.Email,
		Password: creds.Password,
	})
	if err != nil {
		return report, fmt.Errorf("register: %w", err)
	}
	report.RegisterStatus = resp.StatusCode
	r.printf("Register: %d - %s\n", resp.StatusCode, renderBody(resp.Body))

	if resp.StatusCode != http.StatusCreated {
		r.logger.Warn("registration did not return 201 - remaining steps skipped",
			slog.Int("status", resp.StatusCode))
		return report, nil
	}
	report.Registered = true

	defer func() {
		if err == nil || r.opts.SkipCleanup || report.CleanupAttempted {
			return
		}
		r.cleanupAfterFailure(ctx, dbEmail, report)
	}()

	// 2 + 3. wait for the token and read it
	r.heading("📧", "Looking up verification token")
	token, err := r.awaitToken(ctx, dbEmail)
	if err != nil {
		return report, err
	}
	report.Token = token
	r.printf("Token: %s\n", previewToken(token))

	// 4. verify
	r.heading("✅", "Verifying email")
	resp, err = r.api.VerifyEmail(ctx, token)
	if err != nil {
		return report, fmt.Errorf("verify email: %w", err)
	}
	report.VerifyStatus = resp.StatusCode
	r.printf("Verify: %d\n", resp.StatusCode)

	// 5. settle
	if err := r.sleep(ctx, r.opts.SettleDelay); err != nil {
		return report, err
	}

	// 6. login
	r.heading("🔐", "Logging in")
	resp, err = r.api.Login(ctx, authapi.LoginRequest{
		Email:    creds.Email,
		Password: creds.Password,
	})
	if err != nil {
		return report, fmt.Errorf("login: %w", err)
	}
	report.LoginStatus = resp.StatusCode
	r.printf("Login: %d - %s\n", resp.StatusCode, renderBody(resp.Body))

	if resp.IsSuccess() {
		r.reportAccessToken(ctx, resp.Body, report)
	}

	// 7. cleanup
	if r.opts.SkipCleanup {
		r.logger.Info("cleanup skipped", slog.String("email", dbEmail))
		return report, nil
	}

	r.heading("🧹", "Cleaning up")
	report.CleanupAttempted = true
	deleted, err := r.store.DeleteUserByEmail(ctx, dbEmail)
	if err != nil {
		return report, fmt.Errorf("cleanup: %w", err)
	}
	report.DeletedRows = deleted
	r.printf("Cleanup: %d user(s) deleted\n", deleted)

	r.logger.Info("flow complete",
		slog.Int("register_status", report.RegisterStatus),
		slog.Int("verify_status", report.VerifyStatus),
		slog.Int("login_status", report.LoginStatus),
		slog.Int64("deleted_rows", report.DeletedRows),
	)

	return report, nil
}

func (r *Runner) reportAccessToken(ctx context.Context, body []byte, report *Report) {
	raw, ok := authapi.AccessTokenFromBody(body)
	if !ok {
		r.printf("Access token: none found in response\n")
		return
	}

	claims, err := r.inspect(ctx, raw)
	if err != nil {
		r.logger.Warn("could not inspect access token", slog.String("error", err.Error()))
		r.printf("Access token: present, not inspectable (%v)\n", err)
		return
	}
	report.AccessToken = claims
	r.printf("Access token: %s\n", claims)
}

// cleanupAfterFailure deletes the test user after the run was aborted.
// It runs even if ctx was cancelled (e.g. Ctrl-C during a pause).
func (r *Runner) cleanupAfterFailure(ctx context.Context, email string, report *Report) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.CleanupTimeout)
	defer cancel()

	report.CleanupAttempted = true

	deleted, err := r.store.DeleteUserByEmail(cleanupCtx, email)
	if err != nil {
		r.logger.Error("cleanup after failed run did not complete - the test user may still exist",
			slog.String("email", email),
			slog.String("error", err.Error()))
		return
	}
	report.DeletedRows = deleted

	if deleted == 0 {
		r.logger.Warn("run aborted - no test user to remove", slog.String("email", email))
		return
	}
	r.logger.Warn("run aborted - test user removed",
		slog.String("email", email),
		slog.Int64("deleted_rows", deleted))
}

func (r *Runner) heading(icon, title string) {
	r.printf("\n%s %s...\n", icon, title)
}

func (r *Runner) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
