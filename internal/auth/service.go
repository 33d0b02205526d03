// Package auth implements the register, verify-email and login operations served by authstub.
//
// The behaviour mirrors the remote BetForbes auth module closely enough for the flow runner
// to be exercised locally:
//   - emails are stored lower-cased and must be unique (409 EMAIL_ALREADY_EXISTS)
//   - passwords are bcrypt hashed
//   - an optional referral code must belong to an existing user (400 INVALID_REFERRAL_CODE)
//   - registration creates a single-use verification token (32 random bytes, hex encoded)
//   - login requires an active, verified account and returns a signed access token plus
//     a refresh token persisted as a user session
//
// The verification token can be written after a configurable delay (TOKEN_WRITE_DELAY) to
// reproduce the race between the registration response and the token becoming visible in the database.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/betforbes/authflow/internal/accesstoken"
	"github.com/betforbes/authflow/internal/authapi"
	"github.com/betforbes/authflow/internal/database"
)

const (
	// postgres unique_violation
	uniqueViolation = "23505"

	emailConstraint = "users_email_key"

	maxReferralCodeAttempts = 10

	tokenWriteTimeout = 30 * time.Second
)

// Store is the subset of the sqlc queries used by the service. Implemented by *database.Queries.
type Store interface {
	CountUsersByEmail(ctx context.Context, email string) (int64, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	ExistsUserByReferralCode(ctx context.Context, referralCode string) (bool, error)
	GetUserIDByReferralCode(ctx context.Context, referralCode string) (uuid.UUID, error)
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	MarkUserVerified(ctx context.Context, id uuid.UUID) (database.User, error)
	UpdateUserLastLogin(ctx context.Context, id uuid.UUID) error
	CreateEmailVerificationToken(ctx context.Context, arg database.CreateEmailVerificationTokenParams) (database.EmailVerificationToken, error)
	GetEmailVerificationToken(ctx context.Context, token string) (database.EmailVerificationToken, error)
	MarkEmailVerificationTokenUsed(ctx context.Context, id uuid.UUID) error
	CreateUserSession(ctx context.Context, arg database.CreateUserSessionParams) error
}

type Config struct {
	TokenWriteDelay      time.Duration
	VerificationTokenTTL time.Duration
	SessionTTL           time.Duration
	BcryptCost           int
}

type Service struct {
	store  Store
	issuer *accesstoken.Issuer
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	// base is the server lifetime context, used by delayed token writes
	base    context.Context
	pending sync.WaitGroup
}

func NewService(ctx context.Context, store Store, issuer *accesstoken.Issuer, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		issuer: issuer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		base:   ctx,
	}
}

// Register creates an unverified user and its verification token.
func (s *Service) Register(ctx context.Context, req authapi.RegisterRequest) (*authapi.RegisterData, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)

	if err := validateRegisterRequest(req); err != nil {
		return nil, err
	}

	count, err := s.store.CountUsersByEmail(ctx, req.Email)
	if err != nil {
		return nil, WrapInternalError(err, "failed to check email")
	}
	if count > 0 {
		return nil, NewEmailAlreadyExistsError()
	}

	referredBy, err := s.lookupReferrer(ctx, req.ReferralCode)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, WrapInternalError(err, "failed to hash password")
	}

	referralCode, err := s.uniqueReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, database.CreateUserParams{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		Password:     string(hash),
		ReferralCode: referralCode,
		ReferredBy:   referredBy,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == emailConstraint {
			// lost a race with a concurrent registration
			return nil, NewEmailAlreadyExistsError()
		}
		return nil, WrapInternalError(err, "failed to create user")
	}

	token, err := generateSecureToken()
	if err != nil {
		return nil, WrapInternalError(err, "failed to generate verification token")
	}

	params := database.CreateEmailVerificationTokenParams{
		ID:        uuid.New(),
		Token:     token,
		UserId:    user.ID,
		ExpiresAt: s.now().Add(s.cfg.VerificationTokenTTL),
	}

	if s.cfg.TokenWriteDelay > 0 {
		s.writeTokenLater(params, user.Email)
	} else if _, err := s.store.CreateEmailVerificationToken(ctx, params); err != nil {
		return nil, WrapInternalError(err, "failed to store verification token")
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("email", user.Email),
		slog.Duration("token_write_delay", s.cfg.TokenWriteDelay),
	)

	// no email is sent: the verification token is only readable from the database
	return &authapi.RegisterData{User: toAPIUser(user), EmailSent: false}, nil
}

// writeTokenLater stores the verification token after TokenWriteDelay.
// A server shutdown cuts the delay short but the token is still written.
func (s *Service) writeTokenLater(params database.CreateEmailVerificationTokenParams, email string) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		timer := time.NewTimer(s.cfg.TokenWriteDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.base.Done():
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.base), tokenWriteTimeout)
		defer cancel()

		if _, err := s.store.CreateEmailVerificationToken(ctx, params); err != nil {
			s.logger.Error("delayed verification token write failed",
				slog.String("email", email),
				slog.String("error", err.Error()))
			return
		}
		s.logger.Debug("verification token written", slog.String("email", email))
	}()
}

// Wait blocks until delayed token writes have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// VerifyEmail consumes a verification token and marks its user as verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*authapi.VerifyEmailData, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, NewMissingTokenError()
	}

	record, err := s.store.GetEmailVerificationToken(ctx, token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewInvalidTokenError()
	}
	if err != nil {
		return nil, WrapInternalError(err, "failed to load verification token")
	}

	if record.Used {
		return nil, NewTokenAlreadyUsedError()
	}
	if s.now().After(record.ExpiresAt) {
		return nil, NewTokenExpiredError()
	}

	// verify the user first: a failure between the two writes leaves the token reusable
	user, err := s.store.MarkUserVerified(ctx, record.UserId)
	if err != nil {
		return nil, WrapInternalError(err, "failed to verify user")
	}
	if err := s.store.MarkEmailVerificationTokenUsed(ctx, record.ID); err != nil {
		return nil, WrapInternalError(err, "failed to consume verification token")
	}

	s.logger.Info("email verified", slog.String("user_id", user.ID.String()))

	return &authapi.VerifyEmailData{User: toAPIUser(user)}, nil
}

// Login checks the credentials and issues an access token and a refresh token.
func (s *Service) Login(ctx context.Context, req authapi.LoginRequest) (*authapi.LoginData, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, NewValidationError("Email e senha são obrigatórios")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewInvalidCredentialsError()
	}
	if err != nil {
		return nil, WrapInternalError(err, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, NewInvalidCredentialsError()
	}
	if !user.IsActive {
		return nil, NewAccountDisabledError()
	}
	if !user.IsVerified {
		return nil, NewEmailNotVerifiedError()
	}

	accessToken, err := s.issuer.Issue(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, WrapInternalError(err, "failed to issue access token")
	}

	refreshToken, err := generateSecureToken()
	if err != nil {
		return nil, WrapInternalError(err, "failed to generate refresh token")
	}

	if err := s.store.CreateUserSession(ctx, database.CreateUserSessionParams{
		ID:        uuid.New(),
		UserId:    user.ID,
		Token:     refreshToken,
		ExpiresAt: s.now().Add(s.cfg.SessionTTL),
	}); err != nil {
		return nil, WrapInternalError(err, "failed to create session")
	}

	if err := s.store.UpdateUserLastLogin(ctx, user.ID); err != nil {
		return nil, WrapInternalError(err, "failed to update last login")
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID.String()))

	return &authapi.LoginData{
		User: toAPIUser(user),
		Tokens: authapi.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		},
	}, nil
}

// lookupReferrer returns the id of the user owning code, or nil when no code was given.
func (s *Service) lookupReferrer(ctx context.Context, code string) (*uuid.UUID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	id, err := s.store.GetUserIDByReferralCode(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewInvalidReferralCodeError()
	}
	if err != nil {
		return nil, WrapInternalError(err, "failed to check referral code")
	}
	return &id, nil
}

func (s *Service) uniqueReferralCode(ctx context.Context) (string, error) {
	for range maxReferralCodeAttempts {
		code, err := generateReferralCode()
		if err != nil {
			return "", WrapInternalError(err, "failed to generate referral code")
		}

		exists, err := s.store.ExistsUserByReferralCode(ctx, code)
		if err != nil {
			return "", WrapInternalError(err, "failed to check referral code")
		}
		if !exists {
			return code, nil
		}
	}
	return "", WrapInternalError(errors.New("referral code space exhausted"), "failed to generate referral code")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toAPIUser(u database.User) authapi.User {
	var balance float64
	if f, err := u.Balance.Float64Value(); err == nil && f.Valid {
		balance = f.Float64
	}

	createdAt := u.CreatedAt
	return authapi.User{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		IsVerified:   u.IsVerified,
		Balance:      balance,
		ReferralCode: u.ReferralCode,
		CreatedAt:    &createdAt,
	}
}
