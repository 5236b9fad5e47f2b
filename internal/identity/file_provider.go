// SPDX-License-Identifier: MIT

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// FileProvider reads the device token from a JSON file provisioned by the
// sign-in flow. Suitable for a headless device daemon: the UI (or an
// operator) installs the token file; the daemon only consumes it.
type FileProvider struct {
	account string
	path    string

	mu     sync.Mutex
	cached Token
}

// NewFileProvider creates a provider for the given account reading tokens
// from path. The file may not exist yet; the provider then reports a
// signed-out state.
func NewFileProvider(account, path string) *FileProvider {
	return &FileProvider{account: account, path: path}
}

// Current returns the identity when a readable token file exists.
func (p *FileProvider) Current() *Identity {
	if _, err := os.Stat(p.path); err != nil {
		return nil
	}
	return &Identity{AccountID: p.account}
}

// RefreshToken returns the cached token when still valid (and force is
// unset), otherwise re-reads the token file.
func (p *FileProvider) RefreshToken(ctx context.Context, force bool) (Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !force && p.cached.Valid(time.Now()) {
		return p.cached, nil
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		return Token{}, fmt.Errorf("%w: read token file: %v", ErrSessionInvalid, err)
	}
	var tok Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return Token{}, fmt.Errorf("%w: parse token file: %v", ErrSessionInvalid, err)
	}
	if !tok.Valid(time.Now()) {
		return Token{}, fmt.Errorf("%w: token expired at %s", ErrSessionInvalid, tok.ExpiresAt.Format(time.RFC3339))
	}

	p.cached = tok
	return tok, nil
}

// Token makes FileProvider usable as a ledger token source.
func (p *FileProvider) Token(ctx context.Context) (string, error) {
	tok, err := p.RefreshToken(ctx, false)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// SaveToken atomically installs a token file. renameio guarantees the
// daemon never observes a partially written file.
func SaveToken(path string, tok Token) error {
	buf, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending token file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(buf); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace token file: %w", err)
	}
	return nil
}
