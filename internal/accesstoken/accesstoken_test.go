package accesstoken

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, ttl time.Duration) *Issuer {
	t.Helper()

	issuer, err := NewIssuer("authstub-test", ttl)
	if err != nil {
		t.Fatalf("NewIssuer() error: %v", err)
	}
	return issuer
}

// serveJWKS publishes the issuer's public keys the way the authstub server does
func serveJWKS(t *testing.T, issuer *Issuer) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(issuer.PublicKeySet()); err != nil {
			t.Errorf("encode JWK set: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/.well-known/jwks.json"
}

func TestIssueAndInspect(t *testing.T) {
	issuer := newTestIssuer(t, 15*time.Minute)

	raw, err := issuer.Issue("user-1", "teste.flow@gmail.com", "USER")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, err := Inspect(raw)
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}

	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q", claims.Subject)
	}
	if claims.Email != "teste.flow@gmail.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Role != "USER" {
		t.Errorf("Role = %q", claims.Role)
	}
	if claims.Issuer != "authstub-test" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
	if claims.Verified {
		t.Error("Inspect must not mark claims as verified")
	}
	if claims.Expired(time.Now()) {
		t.Error("fresh token reported as expired")
	}
	if !claims.Expired(time.Now().Add(time.Hour)) {
		t.Error("token should be expired an hour from now")
	}
	if !strings.Contains(claims.String(), "signature=unchecked") {
		t.Errorf("String() = %q", claims.String())
	}
}

func TestKeyIDIsThumbprintPrefix(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)

	if len(issuer.KeyID()) != 16 {
		t.Errorf("KeyID() = %q, want 16 hex characters", issuer.KeyID())
	}

	key, ok := issuer.PublicKeySet().Key(0)
	if !ok {
		t.Fatal("public key set is empty")
	}
	kid, _ := key.KeyID()
	if kid != issuer.KeyID() {
		t.Errorf("published kid %q != issuer kid %q", kid, issuer.KeyID())
	}
}

func TestSigningKeyRoundTrip(t *testing.T) {
	key, err := GenerateSigningKey("stub-key-1")
	if err != nil {
		t.Fatalf("GenerateSigningKey() error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "authstub.private.jwk")
	if err := SaveKey(key, path); err != nil {
		t.Fatalf("SaveKey() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("permissions = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadSigningKey(path)
	if err != nil {
		t.Fatalf("LoadSigningKey() error: %v", err)
	}

	// a token from the first issuer verifies against the second one's published keys
	first, err := NewIssuerWithKey("authstub-test", time.Minute, key)
	if err != nil {
		t.Fatalf("NewIssuerWithKey() error: %v", err)
	}
	second, err := NewIssuerWithKey("authstub-test", time.Minute, loaded)
	if err != nil {
		t.Fatalf("NewIssuerWithKey() error: %v", err)
	}
	if second.KeyID() != "stub-key-1" {
		t.Errorf("KeyID() = %q", second.KeyID())
	}

	raw, err := first.Issue("user-1", "teste.flow@gmail.com", "USER")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	verifier, err := NewVerifier(t.Context(), serveJWKS(t, second), nil)
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}
	if _, err := verifier.Verify(t.Context(), raw); err != nil {
		t.Errorf("Verify() with reloaded key error: %v", err)
	}
}

func TestLoadSigningKeyRejectsPublicKey(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)
	public, _ := issuer.PublicKeySet().Key(0)

	path := filepath.Join(t.TempDir(), "authstub.public.jwk")
	if err := SaveKey(public, path); err != nil {
		t.Fatalf("SaveKey() error: %v", err)
	}

	if _, err := LoadSigningKey(path); err == nil {
		t.Error("LoadSigningKey() accepted a public key")
	}
	if _, err := LoadSigningKey(filepath.Join(t.TempDir(), "missing.jwk")); err == nil {
		t.Error("LoadSigningKey() accepted a missing file")
	}
}

func TestInspectRejectsOpaqueTokens(t *testing.T) {
	for _, raw := range []string{"", "opaque-session-token", "a.b", "a.b.c"} {
		_, err := Inspect(raw)
		if err == nil {
			t.Errorf("Inspect(%q) expected error", raw)
			continue
		}
		if code, _ := ErrorCodeOf(err); code != ErrCodeMalformed {
			t.Errorf("Inspect(%q) code = %q, want %q", raw, code, ErrCodeMalformed)
		}
	}
}

func TestVerifier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	issuer := newTestIssuer(t, 15*time.Minute)
	jwksURL := serveJWKS(t, issuer)

	verifier, err := NewVerifier(ctx, jwksURL, nil)
	if err != nil {
		t.Fatalf("NewVerifier() error: %v", err)
	}

	t.Run("valid token", func(t *testing.T) {
		raw, err := issuer.Issue("user-2", "a@example.com", "USER")
		if err != nil {
			t.Fatalf("Issue() error: %v", err)
		}

		claims, err := verifier.Verify(ctx, raw)
		if err != nil {
			t.Fatalf("Verify() error: %v", err)
		}
		if !claims.Verified {
			t.Error("Verified = false")
		}
		if claims.Subject != "user-2" {
			t.Errorf("Subject = %q", claims.Subject)
		}
	})

	t.Run("token from another key", func(t *testing.T) {
		other := newTestIssuer(t, 15*time.Minute)
		raw, err := other.Issue("user-3", "b@example.com", "USER")
		if err != nil {
			t.Fatalf("Issue() error: %v", err)
		}

		_, err = verifier.Verify(ctx, raw)
		if err == nil {
			t.Fatal("expected verification error")
		}
		if code, _ := ErrorCodeOf(err); code != ErrCodeVerification {
			t.Errorf("code = %q, want %q", code, ErrCodeVerification)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
		defer func() { issuer.now = time.Now }()

		raw, err := issuer.Issue("user-4", "c@example.com", "USER")
		if err != nil {
			t.Fatalf("Issue() error: %v", err)
		}

		if _, err := verifier.Verify(ctx, raw); err == nil {
			t.Fatal("expected expired token to fail verification")
		}
	})
}
