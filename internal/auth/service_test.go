package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"

	"github.com/betforbes/authflow/internal/accesstoken"
	"github.com/betforbes/authflow/internal/auth/authtest"
	"github.com/betforbes/authflow/internal/authapi"
)

func newTestService(t *testing.T, cfg Config) (*Service, *authtest.MemStore) {
	t.Helper()

	issuer, err := accesstoken.NewIssuer("authstub-test", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer() error: %v", err)
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.MinCost
	}
	if cfg.VerificationTokenTTL == 0 {
		cfg.VerificationTokenTTL = 24 * time.Hour
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 720 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := authtest.NewMemStore()
	return NewService(ctx, store, issuer, cfg, nil), store
}

func fakeRegistration() authapi.RegisterRequest {
	return authapi.RegisterRequest{
		Name:     gofakeit.Name(),
		Email:    gofakeit.Email(),
		Password: gofakeit.Password(true, true, true, false, false, 12) + "Aa1",
	}
}

func assertCode(t *testing.T, err error, want authapi.ErrorCode) {
	t.Helper()

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want *AuthError with code %s", err, want)
	}
	if authErr.Code() != want {
		t.Errorf("code = %s, want %s", authErr.Code(), want)
	}
}

func TestRegisterVerifyLogin(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, Config{})

	req := fakeRegistration()
	req.Email = strings.ToUpper(req.Email)

	registered, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	email := strings.ToLower(req.Email)
	if registered.User.Email != email {
		t.Errorf("email = %q, want lower-cased %q", registered.User.Email, email)
	}
	if registered.User.IsVerified {
		t.Error("new user must not be verified")
	}
	if len(registered.User.ReferralCode) != referralCodeLength {
		t.Errorf("referral code = %q", registered.User.ReferralCode)
	}

	stored, ok := store.User(email)
	if !ok {
		t.Fatal("user not stored")
	}
	if stored.Password == req.Password {
		t.Error("password stored in clear text")
	}

	token, err := store.GetLatestVerificationTokenByEmail(ctx, email)
	if err != nil {
		t.Fatalf("no verification token stored: %v", err)
	}
	if len(token) != 2*secureTokenBytes {
		t.Errorf("token length = %d, want %d hex characters", len(token), 2*secureTokenBytes)
	}

	// login before verification is refused
	_, err = svc.Login(ctx, authapi.LoginRequest{Email: email, Password: req.Password})
	assertCode(t, err, authapi.ErrCodeEmailNotVerified)

	verified, err := svc.VerifyEmail(ctx, token)
	if err != nil {
		t.Fatalf("VerifyEmail() error: %v", err)
	}
	if !verified.User.IsVerified {
		t.Error("user not verified")
	}

	// tokens are single use
	_, err = svc.VerifyEmail(ctx, token)
	assertCode(t, err, authapi.ErrCodeTokenAlreadyUsed)

	loggedIn, err := svc.Login(ctx, authapi.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if loggedIn.Tokens.RefreshToken == "" {
		t.Error("missing refresh token")
	}

	claims, err := accesstoken.Inspect(loggedIn.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("access token not decodable: %v", err)
	}
	if claims.Subject != stored.ID.String() || claims.Email != email {
		t.Errorf("claims = %+v", claims)
	}

	if n := store.Sessions(stored.ID); n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}
	if u, _ := store.User(email); u.LastLoginAt == nil {
		t.Error("lastLoginAt not updated")
	}
}

func TestRegisterErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, Config{})

	existing := fakeRegistration()
	if _, err := svc.Register(ctx, existing); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	tests := []struct {
		name   string
		modify func(r *authapi.RegisterRequest)
		want   authapi.ErrorCode
	}{
		{"duplicate email", func(r *authapi.RegisterRequest) { r.Email = existing.Email }, authapi.ErrCodeEmailAlreadyExists},
		{"duplicate email different case", func(r *authapi.RegisterRequest) { r.Email = strings.ToUpper(existing.Email) }, authapi.ErrCodeEmailAlreadyExists},
		{"short name", func(r *authapi.RegisterRequest) { r.Name = "A" }, authapi.ErrCodeValidation},
		{"bad email", func(r *authapi.RegisterRequest) { r.Email = "not-an-email" }, authapi.ErrCodeValidation},
		{"empty email", func(r *authapi.RegisterRequest) { r.Email = "" }, authapi.ErrCodeValidation},
		{"short password", func(r *authapi.RegisterRequest) { r.Password = "Ab1" }, authapi.ErrCodeValidation},
		{"password without digit", func(r *authapi.RegisterRequest) { r.Password = "abcdefGHIJ" }, authapi.ErrCodeValidation},
		{"password without upper case", func(r *authapi.RegisterRequest) { r.Password = "abcdef1234" }, authapi.ErrCodeValidation},
		{"password over bcrypt limit", func(r *authapi.RegisterRequest) { r.Password = "Aa1" + strings.Repeat("x", 90) }, authapi.ErrCodeValidation},
		{"multi-byte password over bcrypt limit", func(r *authapi.RegisterRequest) { r.Password = "Aa1" + strings.Repeat("é", 35) }, authapi.ErrCodeValidation},
		{"unknown referral code", func(r *authapi.RegisterRequest) { r.ReferralCode = "NOSUCH99" }, authapi.ErrCodeInvalidReferral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := fakeRegistration()
			tt.modify(&req)

			_, err := svc.Register(ctx, req)
			assertCode(t, err, tt.want)
		})
	}
}

func TestPasswordAtBcryptLimit(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	req := fakeRegistration()
	req.Password = "Aa1" + strings.Repeat("x", maxPasswordBytes-3)

	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Errorf("Register() with a %d byte password error: %v", len(req.Password), err)
	}
}

func TestRegisterWithReferralCode(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, Config{})

	referrer, err := svc.Register(ctx, fakeRegistration())
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	req := fakeRegistration()
	req.ReferralCode = referrer.User.ReferralCode
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("Register() with referral code error: %v", err)
	}

	referred, _ := store.User(strings.ToLower(req.Email))
	if referred.ReferredBy == nil || referred.ReferredBy.String() != referrer.User.ID {
		t.Errorf("referredBy = %v, want %s", referred.ReferredBy, referrer.User.ID)
	}

	// deleting the referrer clears the link, like ON DELETE SET NULL
	if _, err := store.DeleteUserByEmail(ctx, referrer.User.Email); err != nil {
		t.Fatalf("DeleteUserByEmail() error: %v", err)
	}
	referred, _ = store.User(strings.ToLower(req.Email))
	if referred.ReferredBy != nil {
		t.Errorf("referredBy = %v after referrer was deleted", referred.ReferredBy)
	}
}

func TestVerifyEmailErrors(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, Config{})

	_, err := svc.VerifyEmail(ctx, "  ")
	assertCode(t, err, authapi.ErrCodeMissingToken)

	_, err = svc.VerifyEmail(ctx, strings.Repeat("ab", 32))
	assertCode(t, err, authapi.ErrCodeInvalidToken)

	req := fakeRegistration()
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	token, err := store.GetLatestVerificationTokenByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		t.Fatalf("token lookup: %v", err)
	}

	store.ExpireTokens()
	_, err = svc.VerifyEmail(ctx, token)
	assertCode(t, err, authapi.ErrCodeTokenExpired)
}

func TestLoginErrors(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, Config{})

	req := fakeRegistration()
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	email := strings.ToLower(req.Email)

	token, _ := store.GetLatestVerificationTokenByEmail(ctx, email)
	if _, err := svc.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail() error: %v", err)
	}

	_, err := svc.Login(ctx, authapi.LoginRequest{Email: "nobody@example.com", Password: req.Password})
	assertCode(t, err, authapi.ErrCodeInvalidCredentials)

	_, err = svc.Login(ctx, authapi.LoginRequest{Email: email, Password: req.Password + "x"})
	assertCode(t, err, authapi.ErrCodeInvalidCredentials)

	_, err = svc.Login(ctx, authapi.LoginRequest{Email: email})
	assertCode(t, err, authapi.ErrCodeValidation)

	store.SetUserActive(email, false)
	_, err = svc.Login(ctx, authapi.LoginRequest{Email: email, Password: req.Password})
	assertCode(t, err, authapi.ErrCodeAccountDisabled)
}

func TestDelayedTokenWrite(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, Config{TokenWriteDelay: 50 * time.Millisecond})

	req := fakeRegistration()
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	email := strings.ToLower(req.Email)

	if _, err := store.GetLatestVerificationTokenByEmail(ctx, email); err == nil {
		t.Fatal("token visible before the write delay elapsed")
	}

	svc.Wait()

	if _, err := store.GetLatestVerificationTokenByEmail(ctx, email); err != nil {
		t.Errorf("token not written after delay: %v", err)
	}
}

func TestStoreFailureIsInternal(t *testing.T) {
	svc, store := newTestService(t, Config{})
	store.Err = errors.New("connection refused")

	_, err := svc.Register(context.Background(), fakeRegistration())
	assertCode(t, err, authapi.ErrCodeInternal)
}

func TestGeneratedCodes(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		code, err := generateReferralCode()
		if err != nil {
			t.Fatalf("generateReferralCode() error: %v", err)
		}
		if len(code) != referralCodeLength || strings.Trim(code, referralCodeAlphabet) != "" {
			t.Errorf("bad referral code %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Errorf("only %d distinct referral codes out of 50", len(seen))
	}

	a, _ := generateSecureToken()
	b, _ := generateSecureToken()
	if a == b || len(a) != 64 {
		t.Errorf("secure tokens %q / %q", a, b)
	}
}
