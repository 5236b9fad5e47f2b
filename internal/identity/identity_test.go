// SPDX-License-Identifier: MIT

package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenValid(t *testing.T) {
	now := time.Now()

	assert.False(t, Token{}.Valid(now), "empty token is invalid")
	assert.True(t, Token{Value: "t"}.Valid(now), "no expiry means valid")
	assert.True(t, Token{Value: "t", ExpiresAt: now.Add(time.Hour)}.Valid(now))
	assert.False(t, Token{Value: "t", ExpiresAt: now.Add(-time.Hour)}.Valid(now))
}

func TestFileProviderSignedOut(t *testing.T) {
	p := NewFileProvider("acct-1", filepath.Join(t.TempDir(), "absent.json"))

	assert.Nil(t, p.Current())

	_, err := p.RefreshToken(context.Background(), false)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestFileProviderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := Token{Value: "secret", ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second)}
	require.NoError(t, SaveToken(path, tok))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	p := NewFileProvider("acct-1", path)
	ident := p.Current()
	require.NotNil(t, ident)
	assert.Equal(t, "acct-1", ident.AccountID)
	assert.False(t, ident.Anonymous)

	got, err := p.RefreshToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Value)

	// Token source view.
	val, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", val)
}

func TestFileProviderCachesUntilForced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, Token{Value: "one", ExpiresAt: time.Now().Add(time.Hour)}))

	p := NewFileProvider("acct-1", path)
	_, err := p.RefreshToken(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, SaveToken(path, Token{Value: "two", ExpiresAt: time.Now().Add(time.Hour)}))

	got, err := p.RefreshToken(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Value, "non-forced refresh serves the cached token")

	got, err = p.RefreshToken(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Value)
}

func TestFileProviderExpiredToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, Token{Value: "old", ExpiresAt: time.Now().Add(-time.Minute)}))

	p := NewFileProvider("acct-1", path)
	_, err := p.RefreshToken(context.Background(), false)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestStaticProvider(t *testing.T) {
	p := &Static{
		Identity: &Identity{AccountID: "acct-1", Anonymous: true},
		Tok:      Token{Value: "tok"},
	}
	assert.True(t, p.Current().Anonymous)

	val, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", val)

	p.RefreshErr = ErrSessionInvalid
	_, err = p.Token(context.Background())
	assert.ErrorIs(t, err, ErrSessionInvalid)
}
