package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Inspector reads claims out of access tokens without verifying the signature.
// The client never holds the signing key; verification is the server's job.
// The only question asked here is "is this token worth sending".
type Inspector struct {
	leeway time.Duration
}

// NewInspector creates an Inspector. Tokens expiring within leeway are treated
// as already expired so a refresh can happen before the server rejects them.
func NewInspector(leeway time.Duration) *Inspector {
	return &Inspector{leeway: leeway}
}

// ExpiresAt returns the token's expiry claim. A malformed token or a token
// without an exp claim returns the zero time and an error.
func (i *Inspector) ExpiresAt(tokenString string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, jwt.ErrTokenInvalidClaims
	}
	return exp.Time, nil
}

// Expired reports whether the token is expired or expires within the
// configured leeway. Malformed tokens count as expired.
func (i *Inspector) Expired(tokenString string, now time.Time) bool {
	exp, err := i.ExpiresAt(tokenString)
	if err != nil {
		return true
	}
	return !now.Add(i.leeway).Before(exp)
}
