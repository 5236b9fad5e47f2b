// SPDX-License-Identifier: MIT

package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidsync/internal/model"
)

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) { return string(s), nil }

func TestClientGet(t *testing.T) {
	doc := model.Empty()
	doc.History = append(doc.History, model.HistoryEntry{VideoID: "v1", WatchedAt: 42})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acct-1/sync", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticTokens("tok"))
	rec, err := c.Get(context.Background(), "acct-1", SourceServer)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Len(t, rec.History, 1)
	assert.Equal(t, "v1", rec.History[0].VideoID)
	assert.NotNil(t, rec.Settings, "decoded record must be normalized")
}

func TestClientGetAbsentDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	rec, err := c.Get(context.Background(), "acct-1", SourceServer)
	require.NoError(t, err, "absent document is not an error")
	assert.Nil(t, rec)
}

func TestClientErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthenticated},
		{"forbidden", http.StatusForbidden, ErrPermissionDenied},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
		{"rate limited", http.StatusTooManyRequests, ErrUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, nil)
			_, err := c.Get(context.Background(), "acct-1", SourceServer)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)

			var rich *Error
			require.ErrorAs(t, err, &rich)
			assert.Equal(t, tc.status, rich.Status)
		})
	}
}

func TestClientGetMalformedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"watchHistory": "not-a-list"`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Get(context.Background(), "acct-1", SourceServer)
	assert.ErrorIs(t, err, ErrBadDocument)
}

func TestClientTransportFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil) // nothing listens here
	_, err := c.Get(context.Background(), "acct-1", SourceServer)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientSetMethods(t *testing.T) {
	var gotMethod string
	var gotBody model.SyncRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	rec := model.Empty()
	rec.Favorites = append(rec.Favorites, model.FavoriteEntry{VideoID: "v1", AddedAt: 7})

	require.NoError(t, c.Set(context.Background(), "acct-1", rec, true))
	assert.Equal(t, http.MethodPatch, gotMethod, "mergeFields write is a PATCH")
	require.Len(t, gotBody.Favorites, 1)

	require.NoError(t, c.Set(context.Background(), "acct-1", rec, false))
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestClientDeleteIdempotent(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodDelete, r.Method)
		if calls == 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.NotFound(w, r) // already gone
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	require.NoError(t, c.Delete(context.Background(), "acct-1"))
	require.NoError(t, c.Delete(context.Background(), "acct-1"), "deleting an absent document succeeds")
	require.NoError(t, c.DeleteProfile(context.Background(), "acct-1"))
}

func TestClientCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, nil)
	_, err := c.Get(ctx, "acct-1", SourceServer)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "ok", Describe(nil))
	assert.Equal(t, "permission-denied", Describe(&Error{Sentinel: ErrPermissionDenied}))
	assert.Equal(t, "unauthenticated", Describe(&Error{Sentinel: ErrUnauthenticated}))
	assert.Equal(t, "unavailable", Describe(&Error{Sentinel: ErrUnavailable}))
	assert.Equal(t, "parse-failure", Describe(&Error{Sentinel: ErrBadDocument}))
}
