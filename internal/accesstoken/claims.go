// Package accesstoken issues and inspects the JWT access tokens returned by the login endpoint.
//
// The authflow CLI uses Inspect (decode only) or a Verifier (signature checked against
// the service's JWK set) to report on the token it received. The authstub server uses
// an Issuer to mint tokens and publish its public key.
package accesstoken

import (
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

const (
	emailClaim = "email"
	roleClaim  = "role"
)

// Claims is the subset of access token claims the flow reports on.
type Claims struct {
	Subject   string
	Issuer    string
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Verified is true when the signature was checked against a JWK set
	Verified bool
}

// Expired reports whether the token has an expiry and it is before now.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(now)
}

func (c *Claims) String() string {
	parts := make([]string, 0, 6)
	if c.Subject != "" {
		parts = append(parts, "sub="+c.Subject)
	}
	if c.Email != "" {
		parts = append(parts, "email="+c.Email)
	}
	if c.Role != "" {
		parts = append(parts, "role="+c.Role)
	}
	if c.Issuer != "" {
		parts = append(parts, "iss="+c.Issuer)
	}
	if !c.ExpiresAt.IsZero() {
		parts = append(parts, "exp="+c.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if c.Verified {
		parts = append(parts, "signature=verified")
	} else {
		parts = append(parts, "signature=unchecked")
	}
	return strings.Join(parts, " ")
}

// Inspect decodes the token claims without checking the signature or validating the claims.
func Inspect(raw string) (*Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return nil, wrapError(ErrCodeMalformed, nil, "access token is not a compact JWS")
	}

	token, err := jwt.ParseInsecure([]byte(raw))
	if err != nil {
		return nil, wrapError(ErrCodeMalformed, err, "failed to decode access token")
	}

	return claimsFromToken(token, false)
}

func claimsFromToken(token jwt.Token, verified bool) (*Claims, error) {
	claims := &Claims{Verified: verified}

	claims.Subject, _ = token.Subject()
	claims.Issuer, _ = token.Issuer()
	claims.IssuedAt, _ = token.IssuedAt()
	claims.ExpiresAt, _ = token.Expiration()

	if token.Has(emailClaim) {
		if err := token.Get(emailClaim, &claims.Email); err != nil {
			return nil, wrapError(ErrCodeMalformed, err, fmt.Sprintf("invalid %q claim", emailClaim))
		}
	}
	if token.Has(roleClaim) {
		if err := token.Get(roleClaim, &claims.Role); err != nil {
			return nil, wrapError(ErrCodeMalformed, err, fmt.Sprintf("invalid %q claim", roleClaim))
		}
	}

	return claims, nil
}
