package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/time/rate"
)

// awaitToken waits for the verification token written by the registration request.
// An empty token with a nil error means no token appeared in time.
func (r *Runner) awaitToken(ctx context.Context, email string) (string, error) {
	var (
		token string
		err   error
	)

	switch r.opts.WaitMode {
	case WaitPoll:
		token, err = r.pollToken(ctx, email)
	default:
		if err := r.sleep(ctx, r.opts.SettleDelay); err != nil {
			return "", err
		}
		token, err = r.lookupToken(ctx, email)
	}
	if err != nil {
		return "", err
	}

	if token == "" {
		r.logger.Warn("no verification token found - continuing with an empty token",
			slog.String("email", email),
			slog.String("wait_mode", string(r.opts.WaitMode)))
	}
	return token, nil
}

// pollToken queries for the token at most once per PollInterval until it is found or PollTimeout elapses.
func (r *Runner) pollToken(ctx context.Context, email string) (string, error) {
	pollCtx, cancel := context.WithTimeout(ctx, r.opts.PollTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(r.opts.PollInterval), 1)

	attempts := 0
	for {
		if err := limiter.Wait(pollCtx); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			// the next attempt would land after the poll deadline
			r.logger.Debug("token poll timed out", slog.Int("attempts", attempts))
			return "", nil
		}

		attempts++
		token, err := r.lookupToken(pollCtx, email)
		if err != nil {
			if ctx.Err() == nil && pollCtx.Err() != nil {
				r.logger.Debug("token poll timed out during query", slog.Int("attempts", attempts))
				return "", nil
			}
			return "", err
		}

		if token != "" {
			r.logger.Debug("verification token found", slog.Int("attempts", attempts))
			return token, nil
		}
	}
}

func (r *Runner) lookupToken(ctx context.Context, email string) (string, error) {
	token, err := r.store.GetLatestVerificationTokenByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("token lookup: %w", err)
	}
	return strings.TrimSpace(token), nil
}
