// SPDX-License-Identifier: MIT

package sync

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/goleak"

	"github.com/ManuGH/vidsync/internal/identity"
	"github.com/ManuGH/vidsync/internal/ledger"
	"github.com/ManuGH/vidsync/internal/model"
	"github.com/ManuGH/vidsync/internal/store"
	"github.com/ManuGH/vidsync/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// toggleNet is a Network Monitor whose answer can change mid-test.
type toggleNet struct{ connected bool }

func (n *toggleNet) IsConnected() bool { return n.connected }

type fixture struct {
	engine *Engine
	store  *store.MemoryStore
	remote *ledger.Fake
	ident  *identity.Static
	net    *toggleNet
}

const account = "acct-1"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewMemoryStore(),
		remote: ledger.NewFake(),
		ident: &identity.Static{
			Identity: &identity.Identity{AccountID: account},
			Tok:      identity.Token{Value: "tok"},
		},
		net: &toggleNet{connected: true},
	}
	caching := ledger.NewCachingLedger(f.remote, ledger.NewMemoryCache(time.Hour, 0), zerolog.Nop())
	f.engine = New(Config{
		Store:       f.store,
		Ledger:      caching,
		Identity:    f.ident,
		Network:     f.net,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Logger:      zerolog.Nop(),
	})
	return f
}

func (f *fixture) grantConsent(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.SetSettingValue(context.Background(), store.SettingCloudSyncConsent, true))
}

func TestPreconditionGates(t *testing.T) {
	ctx := context.Background()

	t.Run("not signed in", func(t *testing.T) {
		f := newFixture(t)
		f.ident.Identity = nil

		assert.ErrorIs(t, f.engine.Upload(ctx), ErrNotSignedIn)
		_, err := f.engine.Download(ctx)
		assert.ErrorIs(t, err, ErrNotSignedIn)
		_, err = f.engine.Sync(ctx)
		assert.ErrorIs(t, err, ErrNotSignedIn)
		assert.ErrorIs(t, f.engine.DeleteRemote(ctx), ErrNotSignedIn)
		assert.Zero(t, f.remote.GetCalls+f.remote.SetCalls+f.remote.DeleteCalls, "no remote call on gate failure")
	})

	t.Run("anonymous identity", func(t *testing.T) {
		f := newFixture(t)
		f.ident.Identity.Anonymous = true

		assert.ErrorIs(t, f.engine.Upload(ctx), ErrAnonymousIdentity)
		_, err := f.engine.Download(ctx)
		assert.ErrorIs(t, err, ErrAnonymousIdentity)
		assert.Zero(t, f.remote.GetCalls+f.remote.SetCalls)
	})

	t.Run("consent gate", func(t *testing.T) {
		f := newFixture(t)
		// No consent granted.
		assert.ErrorIs(t, f.engine.Upload(ctx), ErrConsentRequired)
		_, err := f.engine.Sync(ctx)
		assert.ErrorIs(t, err, ErrConsentRequired)
		assert.Zero(t, f.remote.SetCalls, "ledger set never invoked without consent")

		// Download does not require consent.
		_, err = f.engine.Download(ctx)
		assert.NoError(t, err)
	})
}

func TestUploadWritesLocalState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.grantConsent(t)
	require.NoError(t, f.store.SetHistory(ctx, []model.HistoryEntry{{VideoID: "v1", WatchedAt: 10}}))

	require.NoError(t, f.engine.Upload(ctx))

	doc, ok := f.remote.Document(account)
	require.True(t, ok)
	require.Len(t, doc.History, 1)
	assert.Equal(t, "v1", doc.History[0].VideoID)
	assert.NotZero(t, doc.LastSyncedAt)

	// Re-uploading the same state is safe.
	require.NoError(t, f.engine.Upload(ctx))
	doc2, _ := f.remote.Document(account)
	assert.Equal(t, doc.History, doc2.History)
}

func TestDownloadCreatesRemoteRecordIdempotently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec, err := f.engine.Download(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsEmpty())

	_, ok := f.remote.Document(account)
	assert.True(t, ok, "empty default record established server-side")

	// A second download returns the same established record.
	rec, err = f.engine.Download(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsEmpty())
	assert.Equal(t, 1, f.remote.SetCalls, "record only created once")
}

func TestDownloadReturnsRemoteRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := model.Empty()
	seeded.Favorites = append(seeded.Favorites, model.FavoriteEntry{VideoID: "v7", AddedAt: 3})
	f.remote.Seed(account, seeded)

	rec, err := f.engine.Download(ctx)
	require.NoError(t, err)
	require.Len(t, rec.Favorites, 1)
	assert.Equal(t, "v7", rec.Favorites[0].VideoID)

	history, err := f.store.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history, "download alone never mutates local state")
}

func TestDownloadOfflineNoSnapshotReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.net.connected = false

	rec, err := f.engine.Download(ctx)
	require.NoError(t, err, "offline download never fails")
	assert.True(t, rec.IsEmpty())
	assert.Zero(t, f.remote.GetCalls, "network path skipped while offline")
}

func TestDownloadOfflineServesSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := model.Empty()
	seeded.History = append(seeded.History, model.HistoryEntry{VideoID: "v1", WatchedAt: 5})
	f.remote.Seed(account, seeded)

	// Online download warms the snapshot tier.
	_, err := f.engine.Download(ctx)
	require.NoError(t, err)

	f.net.connected = false
	rec, err := f.engine.Download(ctx)
	require.NoError(t, err)
	require.Len(t, rec.History, 1)
	assert.Equal(t, "v1", rec.History[0].VideoID)
}

func TestDownloadTransientExhaustedFallsBackToSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := model.Empty()
	seeded.History = append(seeded.History, model.HistoryEntry{VideoID: "v1", WatchedAt: 5})
	f.remote.Seed(account, seeded)
	_, err := f.engine.Download(ctx) // warm snapshot
	require.NoError(t, err)

	f.remote.GetErrs = []error{
		&ledger.Error{Sentinel: ledger.ErrUnavailable},
		&ledger.Error{Sentinel: ledger.ErrUnavailable},
		&ledger.Error{Sentinel: ledger.ErrUnavailable},
	}

	rec, err := f.engine.Download(ctx)
	require.NoError(t, err, "exhausted transient retries fall back to cache")
	require.Len(t, rec.History, 1)
}

func TestDownloadTransientThenSuccessRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.Seed(account, model.Empty())
	f.remote.GetErrs = []error{
		&ledger.Error{Sentinel: ledger.ErrUnavailable},
		&ledger.Error{Sentinel: ledger.ErrUnavailable},
		nil,
	}

	_, err := f.engine.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, f.remote.GetCalls)
}

func TestDownloadPermanentFailurePropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.GetErrs = []error{&ledger.Error{Sentinel: ledger.ErrPermissionDenied}}

	_, err := f.engine.Download(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrPermissionDenied)
	assert.Equal(t, 1, f.remote.GetCalls, "permanent failure is not retried")
	assert.Equal(t, KindPermissionDenied, Classify(err))
}

func TestDownloadMalformedDocumentSurfaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seeded := model.Empty()
	seeded.History = append(seeded.History, model.HistoryEntry{VideoID: "v1", WatchedAt: 5})
	f.remote.Seed(account, seeded)
	_, err := f.engine.Download(ctx) // warm snapshot
	require.NoError(t, err)
	calls := f.remote.GetCalls

	f.remote.GetErrs = []error{&ledger.Error{Sentinel: ledger.ErrBadDocument}}

	_, err = f.engine.Download(ctx)
	require.Error(t, err, "a corrupt document must not read as a successful download")
	assert.Equal(t, KindParseFailure, Classify(err))
	assert.Equal(t, calls+1, f.remote.GetCalls, "malformed document is not retried")
}

func TestSyncMalformedDocumentMutatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.grantConsent(t)
	require.NoError(t, f.store.SetHistory(ctx, []model.HistoryEntry{{VideoID: "local", WatchedAt: 10}}))
	f.remote.GetErrs = []error{&ledger.Error{Sentinel: ledger.ErrBadDocument}}

	_, err := f.engine.Sync(ctx)
	require.Error(t, err)
	assert.Equal(t, KindParseFailure, Classify(err))
	assert.Zero(t, f.remote.SetCalls, "no upload after a failed download stage")
	history, err := f.store.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1, "local state untouched by the failed sync")
}

func TestDownloadStaleSessionFailsBeforeLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ident.RefreshErr = identity.ErrSessionInvalid

	_, err := f.engine.Download(ctx)
	require.Error(t, err)
	assert.Equal(t, KindAuthExpired, Classify(err))
	assert.Zero(t, f.remote.GetCalls)
}

func TestSyncEndToEndFirstSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.grantConsent(t)
	local := []model.HistoryEntry{
		{VideoID: "v1", WatchedAt: 100},
		{VideoID: "v2", WatchedAt: 300},
		{VideoID: "v3", WatchedAt: 200},
	}
	require.NoError(t, f.store.SetHistory(ctx, local))

	merged, err := f.engine.Sync(ctx)
	require.NoError(t, err)

	// Remote document now holds exactly the local entries, sorted.
	doc, ok := f.remote.Document(account)
	require.True(t, ok)
	require.Len(t, doc.History, 3)
	assert.Equal(t, []string{"v2", "v3", "v1"},
		[]string{doc.History[0].VideoID, doc.History[1].VideoID, doc.History[2].VideoID})

	// Local count unchanged: merging with empty yields the local view.
	history, err := f.store.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Len(t, merged.History, 3)
}

func TestSyncPullsRemoteChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.grantConsent(t)
	require.NoError(t, f.store.SetFavorites(ctx, []model.FavoriteEntry{{VideoID: "l1", AddedAt: 10}}))

	seeded := model.Empty()
	seeded.Favorites = append(seeded.Favorites, model.FavoriteEntry{VideoID: "r1", AddedAt: 20})
	f.remote.Seed(account, seeded)

	_, err := f.engine.Sync(ctx)
	require.NoError(t, err)

	favorites, err := f.store.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 2)
	assert.Equal(t, "r1", favorites[0].VideoID, "remote favorite merged in, sorted first")

	doc, _ := f.remote.Document(account)
	assert.Len(t, doc.Favorites, 2, "merged view uploaded back")
}

func TestSyncDownloadFailureMutatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.grantConsent(t)
	require.NoError(t, f.store.SetHistory(ctx, []model.HistoryEntry{{VideoID: "v1", WatchedAt: 1}}))
	f.remote.GetErrs = []error{&ledger.Error{Sentinel: ledger.ErrPermissionDenied}}

	_, err := f.engine.Sync(ctx)
	require.Error(t, err)

	history, err := f.store.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "v1", history[0].VideoID, "failed download leaves local state untouched")
	assert.Zero(t, f.remote.SetCalls)
}

func TestSyncUploadFailureKeepsLocalMerged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.grantConsent(t)
	seeded := model.Empty()
	seeded.Favorites = append(seeded.Favorites, model.FavoriteEntry{VideoID: "r1", AddedAt: 20})
	f.remote.Seed(account, seeded)
	f.remote.SetErr = &ledger.Error{Sentinel: ledger.ErrUnavailable}

	_, err := f.engine.Sync(ctx)
	require.Error(t, err, "upload stage failure surfaces")

	favorites, ferr := f.store.Favorites(ctx)
	require.NoError(t, ferr)
	require.Len(t, favorites, 1)
	assert.Equal(t, "r1", favorites[0].VideoID,
		"local store keeps the merged view even though the upload failed")
}

func TestSyncCanceledBeforeDownloadCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t)
	f.grantConsent(t)
	require.NoError(t, f.store.SetHistory(ctx, []model.HistoryEntry{{VideoID: "v1", WatchedAt: 1}}))
	cancel()

	_, err := f.engine.Sync(ctx)
	require.Error(t, err)

	history, herr := f.store.History(context.Background())
	require.NoError(t, herr)
	require.Len(t, history, 1, "cancellation during download leaves local state untouched")
}

func TestDeleteRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.grantConsent(t)
	require.NoError(t, f.store.SetHistory(ctx, []model.HistoryEntry{{VideoID: "v1", WatchedAt: 1}}))
	require.NoError(t, f.engine.Upload(ctx))

	require.NoError(t, f.engine.DeleteRemote(ctx))

	_, ok := f.remote.Document(account)
	assert.False(t, ok)

	history, err := f.store.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1, "local store untouched by remote deletion")

	// Deleting again is a no-op.
	require.NoError(t, f.engine.DeleteRemote(ctx))
}

func TestDownloadSpanCarriesSyncAttributes(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		_ = tp.Shutdown(context.Background())
	})

	f := newFixture(t)
	f.remote.Seed(account, model.Empty())
	_, err := f.engine.Download(ctx)
	require.NoError(t, err)

	var span sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "sync.download" {
			span = s
		}
	}
	require.NotNil(t, span, "download must open a sync.download span")

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, account, attrs[attribute.Key(telemetry.SyncAccountKey)].AsString())
	assert.Equal(t, "download", attrs[attribute.Key(telemetry.SyncOperationKey)].AsString())
	assert.Equal(t, string(ledger.SourceServer), attrs[attribute.Key(telemetry.SyncSourceKey)].AsString())
}

func TestOperationLogsCarryAccountID(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	f := newFixture(t)
	f.grantConsent(t)
	f.engine.logger = zerolog.New(&buf)

	require.NoError(t, f.engine.Upload(ctx))
	assert.Contains(t, buf.String(), `"account_id":"acct-1"`)
}
