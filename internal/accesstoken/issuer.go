package accesstoken

import (
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// Issuer signs access tokens with an Ed25519 key.
type Issuer struct {
	issuer     string
	ttl        time.Duration
	privateKey jwk.Key
	publicSet  jwk.Set
	keyID      string
	now        func() time.Time
}

// NewIssuer signs with a key generated on the spot.
// Tokens then cannot be verified once the process that issued them has exited.
func NewIssuer(issuer string, ttl time.Duration) (*Issuer, error) {
	privateKey, err := GenerateSigningKey("")
	if err != nil {
		return nil, wrapError(ErrCodeInternal, err, "failed to create signing key")
	}
	return NewIssuerWithKey(issuer, ttl, privateKey)
}

// NewIssuerWithKey signs with privateKey, e.g. one loaded with LoadSigningKey.
func NewIssuerWithKey(issuer string, ttl time.Duration, privateKey jwk.Key) (*Issuer, error) {
	publicSet, err := publicKeySet(privateKey)
	if err != nil {
		return nil, wrapError(ErrCodeInternal, err, "failed to publish signing key")
	}

	keyID, _ := privateKey.KeyID()

	return &Issuer{
		issuer:     issuer,
		ttl:        ttl,
		privateKey: privateKey,
		publicSet:  publicSet,
		keyID:      keyID,
		now:        time.Now,
	}, nil
}

// Issue returns a signed JWT for the user.
func (i *Issuer) Issue(subject, email, role string) (string, error) {
	now := i.now()

	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Issuer(i.issuer).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(i.ttl)).
		Claim(emailClaim, email).
		Claim(roleClaim, role).
		Build()
	if err != nil {
		return "", wrapError(ErrCodeInternal, err, "failed to build access token")
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.EdDSA(), i.privateKey))
	if err != nil {
		return "", wrapError(ErrCodeInternal, err, "failed to sign access token")
	}

	return string(signed), nil
}

// PublicKeySet returns the JWK set to publish at /.well-known/jwks.json.
func (i *Issuer) PublicKeySet() jwk.Set {
	return i.publicSet
}

func (i *Issuer) KeyID() string {
	return i.keyID
}
