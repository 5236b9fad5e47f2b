// SPDX-License-Identifier: MIT

package ledger

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vidsync/internal/model"
)

// CachingLedger wraps a Ledger with a read-through snapshot cache. Server
// reads refresh the snapshot; cache reads are served locally without
// touching the network. Writes keep the snapshot in step so an offline
// restart still sees the last record this device saw.
type CachingLedger struct {
	inner  Ledger
	cache  SnapshotCache
	logger zerolog.Logger
}

// NewCachingLedger wraps inner with the given snapshot cache.
func NewCachingLedger(inner Ledger, cache SnapshotCache, logger zerolog.Logger) *CachingLedger {
	return &CachingLedger{inner: inner, cache: cache, logger: logger}
}

func (l *CachingLedger) Get(ctx context.Context, account string, source Source) (*model.SyncRecord, error) {
	if source == SourceCache {
		rec, ok := l.cache.Get(account)
		if !ok {
			return nil, nil // no snapshot yet; absence is not an error
		}
		return rec, nil
	}

	rec, err := l.inner.Get(ctx, account, SourceServer)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		l.cache.Put(account, *rec)
		l.logger.Debug().Str("account", account).Msg("snapshot refreshed from server read")
	}
	return rec, nil
}

func (l *CachingLedger) Set(ctx context.Context, account string, record model.SyncRecord, mergeFields bool) error {
	if err := l.inner.Set(ctx, account, record, mergeFields); err != nil {
		return err
	}
	// The uploaded record is the freshest full view this device has.
	record.Normalize()
	l.cache.Put(account, record)
	return nil
}

func (l *CachingLedger) Delete(ctx context.Context, account string) error {
	if err := l.inner.Delete(ctx, account); err != nil {
		return err
	}
	l.cache.Delete(account)
	return nil
}

func (l *CachingLedger) DeleteProfile(ctx context.Context, account string) error {
	return l.inner.DeleteProfile(ctx, account)
}

var _ Ledger = (*CachingLedger)(nil)
