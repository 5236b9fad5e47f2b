// SPDX-License-Identifier: MIT

// Package sync implements the cross-device synchronization engine: it
// reconciles the device's local engagement data with the account's remote
// ledger document.
package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/vidsync/internal/identity"
	"github.com/ManuGH/vidsync/internal/ledger"
	"github.com/ManuGH/vidsync/internal/log"
	"github.com/ManuGH/vidsync/internal/metrics"
	"github.com/ManuGH/vidsync/internal/model"
	"github.com/ManuGH/vidsync/internal/netstat"
	"github.com/ManuGH/vidsync/internal/store"
	"github.com/ManuGH/vidsync/internal/telemetry"
)

// Engine composes the transcoder, merge resolver and retry controller
// into the four account sync operations. All methods are safe for
// concurrent use: operations for one account are serialized internally,
// and concurrent Sync calls for the same account collapse into one run.
type Engine struct {
	store    store.Store
	ledger   ledger.Ledger
	identity identity.Provider
	network  netstat.Monitor
	retry    Retryer
	opts     MergeOptions
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time

	group singleflight.Group

	mu    stdsync.Mutex
	locks map[string]*stdsync.Mutex
}

// Config wires an Engine. Store, Ledger, Identity and Network are
// required; the rest defaults.
type Config struct {
	Store    store.Store
	Ledger   ledger.Ledger
	Identity identity.Provider
	Network  netstat.Monitor

	MaxAttempts int
	BaseDelay   time.Duration
	Merge       MergeOptions
	Logger      zerolog.Logger
}

// New creates an Engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{
		store:    cfg.Store,
		ledger:   cfg.Ledger,
		identity: cfg.Identity,
		network:  cfg.Network,
		retry:    NewRetryer(cfg.MaxAttempts, cfg.BaseDelay, cfg.Logger.With().Str(log.FieldComponent, "retry").Logger()),
		opts:     cfg.Merge,
		logger:   cfg.Logger,
		tracer:   otel.Tracer("vidsync/sync"),
		now:      time.Now,
		locks:    make(map[string]*stdsync.Mutex),
	}
}

// accountLock returns the per-account mutex, creating it on first use.
func (e *Engine) accountLock(account string) *stdsync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[account]
	if !ok {
		l = &stdsync.Mutex{}
		e.locks[account] = l
	}
	return l
}

// requireIdentity enforces the signed-in and non-anonymous gates shared
// by every operation. No I/O happens before these checks.
func (e *Engine) requireIdentity() (*identity.Identity, error) {
	ident := e.identity.Current()
	if ident == nil {
		metrics.PreconditionRejectTotal.WithLabelValues("signed-in").Inc()
		return nil, ErrNotSignedIn
	}
	if ident.Anonymous {
		metrics.PreconditionRejectTotal.WithLabelValues("anonymous").Inc()
		return nil, ErrAnonymousIdentity
	}
	return ident, nil
}

func (e *Engine) requireConsent(ctx context.Context) error {
	consent, err := e.store.HasConsent(ctx)
	if err != nil {
		return fmt.Errorf("read consent flag: %w", err)
	}
	if !consent {
		metrics.PreconditionRejectTotal.WithLabelValues("consent").Inc()
		return ErrConsentRequired
	}
	return nil
}

// startSpan opens an operation span carrying the account and operation
// attributes. The returned finish func records the error classification
// on the span before ending it.
func (e *Engine) startSpan(ctx context.Context, name, account, operation string) (context.Context, trace.Span, func(err error)) {
	ctx, span := e.tracer.Start(ctx, name,
		trace.WithAttributes(telemetry.SyncAttributes(account, operation, "")...))
	finish := func(err error) {
		if err != nil {
			span.SetAttributes(telemetry.ErrorAttributes(string(Classify(err)))...)
		}
		span.End()
	}
	return ctx, span, finish
}

// Upload builds a SyncRecord from the local store and writes it to the
// remote ledger with field-level merge semantics. It requires a signed-in,
// non-anonymous identity and granted consent, checked before any remote
// call. Re-uploading the same record is side-effect free.
func (e *Engine) Upload(ctx context.Context) error {
	ident, err := e.requireIdentity()
	if err != nil {
		metrics.RecordOutcome("upload", err)
		return err
	}
	if err := e.requireConsent(ctx); err != nil {
		metrics.RecordOutcome("upload", err)
		return err
	}
	ctx = log.ContextWithAccountID(ctx, ident.AccountID)

	lock := e.accountLock(ident.AccountID)
	lock.Lock()
	defer lock.Unlock()

	err = e.uploadLocked(ctx, ident.AccountID)
	metrics.RecordOutcome("upload", err)
	return err
}

func (e *Engine) uploadLocked(ctx context.Context, account string) (err error) {
	ctx, span, finish := e.startSpan(ctx, "sync.upload", account, "upload")
	defer func() { finish(err) }()
	start := e.now()
	defer func() { metrics.SyncDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds()) }()

	rec, err := Materialize(ctx, e.store)
	if err != nil {
		return err
	}
	rec.LastSyncedAt = e.now().UnixMilli()
	span.SetAttributes(telemetry.RecordCountAttributes(len(rec.History), len(rec.Favorites), len(rec.Playlists))...)

	if err := e.ledger.Set(ctx, account, rec, true); err != nil {
		return fmt.Errorf("upload record: %w", err)
	}

	logger := log.WithContext(ctx, e.logger)
	logger.Info().
		Int(log.FieldHistoryCount, len(rec.History)).
		Int(log.FieldFavoritesCount, len(rec.Favorites)).
		Int(log.FieldPlaylistsCount, len(rec.Playlists)).
		Msg("record uploaded")
	return nil
}

// Download fetches the account's remote record. Offline, or once server
// retries are exhausted on transient failures, it serves the last cached
// snapshot instead; a missing snapshot yields an empty default record,
// never an error. Permanent failures and malformed documents surface as
// errors and never fall back to the cache. When the account has no remote
// document yet, an empty default document is created server-side
// (idempotently) and returned. Download never mutates the local store.
func (e *Engine) Download(ctx context.Context) (model.SyncRecord, error) {
	ident, err := e.requireIdentity()
	if err != nil {
		metrics.RecordOutcome("download", err)
		return model.SyncRecord{}, err
	}
	ctx = log.ContextWithAccountID(ctx, ident.AccountID)

	lock := e.accountLock(ident.AccountID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := e.downloadLocked(ctx, ident.AccountID)
	metrics.RecordOutcome("download", err)
	return rec, err
}

func (e *Engine) downloadLocked(ctx context.Context, account string) (rec model.SyncRecord, err error) {
	ctx, span, finish := e.startSpan(ctx, "sync.download", account, "download")
	defer func() { finish(err) }()
	start := e.now()
	defer func() { metrics.SyncDuration.WithLabelValues("download").Observe(time.Since(start).Seconds()) }()

	logger := log.WithContext(ctx, e.logger)

	// Token staleness check before touching the ledger.
	if _, err := e.identity.RefreshToken(ctx, false); err != nil {
		return model.SyncRecord{}, err
	}

	if !e.network.IsConnected() {
		logger.Info().Str(log.FieldSource, string(ledger.SourceCache)).Msg("offline, serving cached snapshot")
		metrics.CacheFallbackTotal.WithLabelValues("offline").Inc()
		span.SetAttributes(telemetry.SyncAttributes("", "", string(ledger.SourceCache))...)
		return e.cachedOrEmpty(ctx, account)
	}

	var remote *model.SyncRecord
	err = e.retry.Do(ctx, "download", func(ctx context.Context) error {
		rec, err := e.ledger.Get(ctx, account, ledger.SourceServer)
		if err != nil {
			return err
		}
		remote = rec
		return nil
	})
	switch {
	case err == nil:
	case !ledger.IsTransient(err):
		// Permission, auth and parse failures surface; serving a stale
		// snapshot would mask a document the caller must know is bad.
		return model.SyncRecord{}, err
	case ctx.Err() != nil:
		return model.SyncRecord{}, err
	default:
		// Transient budget exhausted: fall back to the snapshot tier.
		logger.Warn().Err(err).Str(log.FieldSource, string(ledger.SourceCache)).Msg("server read exhausted, serving cached snapshot")
		metrics.CacheFallbackTotal.WithLabelValues("exhausted").Inc()
		span.SetAttributes(telemetry.SyncAttributes("", "", string(ledger.SourceCache))...)
		return e.cachedOrEmpty(ctx, account)
	}
	span.SetAttributes(telemetry.SyncAttributes("", "", string(ledger.SourceServer))...)

	if remote == nil {
		// First sync for this account: establish the remote record.
		empty := model.Empty()
		empty.LastSyncedAt = e.now().UnixMilli()
		if err := e.ledger.Set(ctx, account, empty, true); err != nil {
			return model.SyncRecord{}, fmt.Errorf("create remote record: %w", err)
		}
		logger.Info().Msg("remote record created")
		return empty, nil
	}

	remote.Normalize()
	return *remote, nil
}

// cachedOrEmpty reads the ledger's cache tier. Absence of a snapshot is a
// successful empty result: there is simply nothing to merge from the
// cloud yet.
func (e *Engine) cachedOrEmpty(ctx context.Context, account string) (model.SyncRecord, error) {
	rec, err := e.ledger.Get(ctx, account, ledger.SourceCache)
	if err != nil {
		return model.SyncRecord{}, fmt.Errorf("%w: cache read failed: %v", ledger.ErrUnavailable, err)
	}
	if rec == nil {
		return model.Empty(), nil
	}
	rec.Normalize()
	return *rec, nil
}

// Sync runs the bidirectional sequence: download the remote record, merge
// it with the local state, apply the merged view locally, then upload it.
// A download failure mutates nothing. An upload failure after apply
// leaves the local store holding the merged view; the device then shows
// the best-known state and a later Sync heals the remote copy. Concurrent
// Sync calls for the same account share a single run.
func (e *Engine) Sync(ctx context.Context) (model.SyncRecord, error) {
	ident, err := e.requireIdentity()
	if err != nil {
		metrics.RecordOutcome("sync", err)
		return model.SyncRecord{}, err
	}
	if err := e.requireConsent(ctx); err != nil {
		metrics.RecordOutcome("sync", err)
		return model.SyncRecord{}, err
	}
	ctx = log.ContextWithAccountID(ctx, ident.AccountID)

	v, err, _ := e.group.Do(ident.AccountID, func() (any, error) {
		lock := e.accountLock(ident.AccountID)
		lock.Lock()
		defer lock.Unlock()
		return e.syncLocked(ctx, ident.AccountID)
	})
	metrics.RecordOutcome("sync", err)
	if err != nil {
		return model.SyncRecord{}, err
	}
	return v.(model.SyncRecord), nil
}

func (e *Engine) syncLocked(ctx context.Context, account string) (merged model.SyncRecord, err error) {
	ctx, span, finish := e.startSpan(ctx, "sync.bidirectional", account, "sync")
	defer func() { finish(err) }()
	start := e.now()
	defer func() { metrics.SyncDuration.WithLabelValues("sync").Observe(time.Since(start).Seconds()) }()

	remote, err := e.downloadLocked(ctx, account)
	if err != nil {
		return model.SyncRecord{}, fmt.Errorf("download stage: %w", err)
	}
	// The local store is untouched up to this point; a cancellation while
	// downloading leaves the device exactly as it was.
	if err := ctx.Err(); err != nil {
		return model.SyncRecord{}, err
	}

	local, err := Materialize(ctx, e.store)
	if err != nil {
		return model.SyncRecord{}, err
	}

	merged = MergeWith(local, remote, e.opts)
	span.SetAttributes(telemetry.RecordCountAttributes(len(merged.History), len(merged.Favorites), len(merged.Playlists))...)

	if err := Apply(ctx, e.store, merged); err != nil {
		return model.SyncRecord{}, fmt.Errorf("apply merged record: %w", err)
	}

	merged.LastSyncedAt = e.now().UnixMilli()
	if err := e.ledger.Set(ctx, account, merged, true); err != nil {
		// Local already holds the merged view; report the failed upload.
		return merged, fmt.Errorf("upload stage: %w", err)
	}

	logger := log.WithContext(ctx, e.logger)
	logger.Info().
		Int(log.FieldHistoryCount, len(merged.History)).
		Int(log.FieldFavoritesCount, len(merged.Favorites)).
		Int(log.FieldPlaylistsCount, len(merged.Playlists)).
		Msg("bidirectional sync complete")
	return merged, nil
}

// DeleteRemote removes the account's ledger document and associated
// profile document. The local store is untouched. Deleting an absent
// document is a no-op, so repeated calls are safe.
func (e *Engine) DeleteRemote(ctx context.Context) (err error) {
	ident, err := e.requireIdentity()
	if err != nil {
		metrics.RecordOutcome("delete", err)
		return err
	}
	ctx = log.ContextWithAccountID(ctx, ident.AccountID)

	lock := e.accountLock(ident.AccountID)
	lock.Lock()
	defer lock.Unlock()

	ctx, _, finish := e.startSpan(ctx, "sync.delete_remote", ident.AccountID, "delete")
	defer func() { finish(err) }()

	if err := e.ledger.Delete(ctx, ident.AccountID); err != nil {
		metrics.RecordOutcome("delete", err)
		return fmt.Errorf("delete remote record: %w", err)
	}
	if err := e.ledger.DeleteProfile(ctx, ident.AccountID); err != nil {
		metrics.RecordOutcome("delete", err)
		return fmt.Errorf("delete profile document: %w", err)
	}

	logger := log.WithContext(ctx, e.logger)
	logger.Info().Msg("remote account data deleted")
	metrics.RecordOutcome("delete", nil)
	return nil
}
