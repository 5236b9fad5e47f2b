// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ManuGH/vidsync/internal/identity"
	syncengine "github.com/ManuGH/vidsync/internal/sync"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"error": code, "detail": detail})
}

// statusFor maps a sync error classification to an HTTP status. The
// daemon is a local control surface, so client-side preconditions map to
// 412 and upstream failures to gateway statuses.
func statusFor(kind syncengine.Kind) int {
	switch kind {
	case syncengine.KindNotSignedIn, syncengine.KindAnonymous, syncengine.KindConsentRequired:
		return http.StatusPreconditionFailed
	case syncengine.KindPermissionDenied:
		return http.StatusForbidden
	case syncengine.KindAuthExpired:
		return http.StatusUnauthorized
	case syncengine.KindUnavailable, syncengine.KindParseFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	kind := syncengine.Classify(err)
	writeError(w, statusFor(kind), string(kind), err.Error())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports ready once the local store answers reads.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.cfg.Store.HasConsent(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	Version   string `json:"version"`
	UptimeSec int64  `json:"uptimeSeconds"`

	Account   string `json:"account,omitempty"`
	SignedIn  bool   `json:"signedIn"`
	Anonymous bool   `json:"anonymous,omitempty"`
	Consent   bool   `json:"consent"`
	Connected bool   `json:"connected"`

	HistoryCount   int   `json:"historyCount"`
	FavoritesCount int   `json:"favoritesCount"`
	PlaylistsCount int   `json:"playlistsCount"`
	LastSyncedAt   int64 `json:"lastSyncedAt,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := statusResponse{
		Version:   s.cfg.Version,
		UptimeSec: int64(time.Since(s.startTime).Seconds()),
		Connected: s.cfg.Network.IsConnected(),
	}
	if ident := s.cfg.Identity.Current(); ident != nil {
		resp.Account = ident.AccountID
		resp.SignedIn = true
		resp.Anonymous = ident.Anonymous
	}

	consent, err := s.cfg.Store.HasConsent(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	resp.Consent = consent

	rec, err := syncengine.Materialize(ctx, s.cfg.Store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	resp.HistoryCount = len(rec.History)
	resp.FavoritesCount = len(rec.Favorites)
	resp.PlaylistsCount = len(rec.Playlists)
	resp.LastSyncedAt = rec.LastSyncedAt

	writeJSON(w, http.StatusOK, resp)
}

type syncResponse struct {
	HistoryCount   int   `json:"historyCount"`
	FavoritesCount int   `json:"favoritesCount"`
	PlaylistsCount int   `json:"playlistsCount"`
	LastSyncedAt   int64 `json:"lastSyncedAt"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	merged, err := s.cfg.Engine.Sync(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{
		HistoryCount:   len(merged.History),
		FavoritesCount: len(merged.Favorites),
		PlaylistsCount: len(merged.Playlists),
		LastSyncedAt:   merged.LastSyncedAt,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Engine.Upload(r.Context()); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "uploaded"})
}

func (s *Server) handleDeleteRemote(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Engine.DeleteRemote(r.Context()); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleToken installs a new bearer token for the daemon's account. The
// write is atomic so a crash never leaves a torn token file.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var tok identity.Token
	if err := json.NewDecoder(r.Body).Decode(&tok); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid token payload")
		return
	}
	if !tok.Valid(time.Now()) {
		writeError(w, http.StatusBadRequest, "bad_request", "token missing or already expired")
		return
	}
	if err := identity.SaveToken(s.cfg.TokenPath, tok); err != nil {
		writeError(w, http.StatusInternalServerError, "token_write_failed", err.Error())
		return
	}
	s.logger.Info().Time("expires_at", tok.ExpiresAt).Msg("token installed")
	writeJSON(w, http.StatusOK, map[string]string{"status": "token saved"})
}
