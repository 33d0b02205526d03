package accesstoken

import (
	"context"
	"log/slog"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// clockSkew tolerated when validating exp/iat/nbf
const clockSkew = 30 * time.Second

// Verifier checks access token signatures against a remote JWK set.
//
// The JWK set is held in a jwx cache backed by httprc, so repeated verifications
// reuse the fetched keys and the cache refreshes them in the background.
// The cache stops when the context passed to NewVerifier is cancelled.
type Verifier struct {
	jwksURL string
	cache   *jwk.Cache
	logger  *slog.Logger
}

// NewVerifier registers jwksURL with a new JWK cache and waits for the first fetch.
func NewVerifier(ctx context.Context, jwksURL string, logger *slog.Logger) (*Verifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := httprc.NewClient()

	cache, err := jwk.NewCache(ctx, client)
	if err != nil {
		return nil, wrapError(ErrCodeKeyFetch, err, "failed to create JWK cache")
	}

	if err := cache.Register(ctx, jwksURL,
		jwk.WithMinInterval(time.Minute),
		jwk.WithWaitReady(true),
	); err != nil {
		return nil, wrapError(ErrCodeKeyFetch, err, "failed to register JWK endpoint "+jwksURL)
	}

	logger.Debug("registered JWK endpoint", slog.String("jwk_url", jwksURL))

	return &Verifier{
		jwksURL: jwksURL,
		cache:   cache,
		logger:  logger,
	}, nil
}

// Verify checks the signature and the registered time claims and returns the token claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	keySet, err := v.cache.Lookup(ctx, v.jwksURL)
	if err != nil {
		return nil, wrapError(ErrCodeKeyFetch, err, "failed to lookup JWK set")
	}

	token, err := jwt.Parse([]byte(raw),
		jwt.WithKeySet(keySet, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(clockSkew),
	)
	if err != nil {
		return nil, wrapError(ErrCodeVerification, err, "access token verification failed")
	}

	return claimsFromToken(token, true)
}
