// SPDX-License-Identifier: MIT

// Package identity exposes the current signed-in identity and its token.
package identity

import (
	"context"
	"errors"
	"time"
)

// ErrSessionInvalid is returned when no valid token can be produced and
// the user must re-authenticate.
var ErrSessionInvalid = errors.New("identity: session invalid, re-authentication required")

// Identity describes the signed-in account, if any.
type Identity struct {
	AccountID string
	Anonymous bool
}

// Token is a bearer credential with its expiry.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the token is usable at time now.
func (t Token) Valid(now time.Time) bool {
	if t.Value == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt)
}

// Provider is the identity contract consumed by the sync engine.
type Provider interface {
	// Current returns the signed-in identity, or nil when signed out.
	Current() *Identity
	// RefreshToken returns a fresh token. With force false a cached,
	// still-valid token may be returned. Fails with ErrSessionInvalid
	// when the session cannot be renewed.
	RefreshToken(ctx context.Context, force bool) (Token, error)
}

// Static is a fixed-identity Provider for tests and single-token setups.
type Static struct {
	Identity   *Identity
	Tok        Token
	RefreshErr error
}

func (s *Static) Current() *Identity { return s.Identity }

func (s *Static) RefreshToken(ctx context.Context, force bool) (Token, error) {
	if s.RefreshErr != nil {
		return Token{}, s.RefreshErr
	}
	return s.Tok, nil
}

// Token makes Static usable as a ledger token source.
func (s *Static) Token(ctx context.Context) (string, error) {
	tok, err := s.RefreshToken(ctx, false)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}
