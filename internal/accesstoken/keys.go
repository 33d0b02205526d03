package accesstoken

// keys.go converts Ed25519 keys to JWK format for signing and for publication via /.well-known/jwks.json.

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// ed25519KeyToJWK imports an Ed25519 public or private key and sets kid, alg and use.
func ed25519KeyToJWK(raw any, keyID string) (jwk.Key, error) {
	if keyID == "" {
		return nil, fmt.Errorf("keyID is required")
	}

	key, err := jwk.Import(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK from Ed25519 key: %w", err)
	}

	// Set key ID
	if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("failed to set key ID: %w", err)
	}

	// Set algorithm
	if err := key.Set(jwk.AlgorithmKey, jwa.EdDSA()); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}

	// Set key usage
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, fmt.Errorf("failed to set key usage: %w", err)
	}

	return key, nil
}

// keyIDFromPublicKey derives a key ID from the SHA-256 JWK thumbprint of the key.
// Returns the first 16 characters of the hex-encoded thumbprint.
func keyIDFromPublicKey(publicKey ed25519.PublicKey) (string, error) {
	jwkKey, err := jwk.Import(publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to import key: %w", err)
	}

	thumbprint, err := jwkKey.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to generate thumbprint: %w", err)
	}

	return fmt.Sprintf("%x", thumbprint)[:16], nil
}

// GenerateSigningKey creates a fresh Ed25519 private JWK. keyID defaults to the thumbprint prefix.
func GenerateSigningKey(keyID string) (jwk.Key, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	if keyID == "" {
		keyID, err = keyIDFromPublicKey(publicKey)
		if err != nil {
			return nil, err
		}
	}

	return ed25519KeyToJWK(privateKey, keyID)
}

// LoadSigningKey reads a private Ed25519 JWK (or a JWK set holding exactly one) from path.
func LoadSigningKey(path string) (jwk.Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	set, err := jwk.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key %s: %w", path, err)
	}
	if set.Len() != 1 {
		return nil, fmt.Errorf("expected exactly one key in %s, got %d", path, set.Len())
	}
	key, _ := set.Key(0)

	var raw ed25519.PrivateKey
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("signing key in %s is not an Ed25519 private key: %w", path, err)
	}

	keyID, _ := key.KeyID()
	if keyID == "" {
		keyID, err = keyIDFromPublicKey(raw.Public().(ed25519.PublicKey))
		if err != nil {
			return nil, err
		}
	}

	// normalise kid, alg and use regardless of what the file carried
	return ed25519KeyToJWK(raw, keyID)
}

// SaveKey writes key as JSON. Private keys are written with 0600 permissions.
func SaveKey(key jwk.Key, path string) error {
	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JWK: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// publicKeySet returns a set holding the public half of a private JWK.
func publicKeySet(privateKey jwk.Key) (jwk.Set, error) {
	publicJWK, err := jwk.PublicKeyOf(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(publicJWK); err != nil {
		return nil, fmt.Errorf("failed to add key to set: %w", err)
	}
	return set, nil
}
