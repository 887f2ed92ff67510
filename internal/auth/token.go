// Package auth provides stateless identity tokens and credential checks.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures. Callers branch on these with errors.Is; all of them
// mean the connection is rejected before any session state exists.
var (
	ErrMalformedToken   = errors.New("auth: malformed token")
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrTokenExpired     = errors.New("auth: token expired")
)

// Authenticator issues and verifies signed identity tokens. It holds no
// state beyond the signing secret and is safe for concurrent use.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

// NewAuthenticator constructs an Authenticator with the server-held secret
// and the time-to-live applied to issued tokens.
func NewAuthenticator(secret []byte, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: secret, ttl: ttl}
}

// Issue creates a signed HS256 token for the given subject. It returns the
// token string and its expiry time.
func (a *Authenticator) Issue(subject string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks the token's signature and expiry and returns the subject
// identity it carries. No I/O and no shared state: a bad token never
// touches anything beyond this call.
func (a *Authenticator) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "", ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	default:
		return "", ErrMalformedToken
	}

	if claims.Subject == "" {
		return "", ErrMalformedToken
	}
	return claims.Subject, nil
}
