// SPDX-License-Identifier: MIT

// Package ledger abstracts the per-account cloud document holding the
// syncable record, plus the client-side snapshot cache tier in front of it.
package ledger

import (
	"context"

	"github.com/ManuGH/vidsync/internal/model"
)

// Source selects which tier a read is served from.
type Source string

const (
	// SourceServer reads the authoritative cloud document.
	SourceServer Source = "server"
	// SourceCache reads the client's last-known-good snapshot.
	SourceCache Source = "cache"
)

// Ledger is the per-account document store contract.
//
// Get returns (nil, nil) when the account has no document yet; absence is
// not an error. All errors returned by implementations are classifiable
// via errors.Is against the sentinels in this package.
type Ledger interface {
	Get(ctx context.Context, account string, source Source) (*model.SyncRecord, error)
	// Set writes the record. With mergeFields, fields absent from the
	// write are left untouched server-side.
	Set(ctx context.Context, account string, record model.SyncRecord, mergeFields bool) error
	Delete(ctx context.Context, account string) error
	// DeleteProfile removes the associated profile document, if any.
	DeleteProfile(ctx context.Context, account string) error
}

// TokenSource supplies a bearer token for ledger requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
