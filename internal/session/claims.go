package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rileyhilliard/proxmon/internal/errors"
)

// Claims are the facts readable from a credential without asking the
// server. They are display hints only and never grant a capability.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// Expired reports whether the credential's exp is in the past. Nothing
// enforces this locally; the server decides.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// DecodeClaims reads the claims of a JWT without verifying the signature.
func DecodeClaims(token string) (Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return Claims{}, errors.WrapWithCode(err, errors.ErrInput,
			"Credential is not a readable token", "Log in again")
	}
	c := Claims{Subject: tc.Subject, Role: tc.Role}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}
