// SPDX-License-Identifier: MIT

package sync

import (
	"context"
	"fmt"

	"github.com/ManuGH/vidsync/internal/model"
	"github.com/ManuGH/vidsync/internal/store"
)

// Materialize builds a fresh SyncRecord from the current local store
// contents. The record is not persisted anywhere; it exists only for the
// duration of one sync operation.
func Materialize(ctx context.Context, s store.Store) (model.SyncRecord, error) {
	rec := model.Empty()

	history, err := s.History(ctx)
	if err != nil {
		return rec, fmt.Errorf("read history: %w", err)
	}
	favorites, err := s.Favorites(ctx)
	if err != nil {
		return rec, fmt.Errorf("read favorites: %w", err)
	}
	playlists, err := s.Playlists(ctx)
	if err != nil {
		return rec, fmt.Errorf("read playlists: %w", err)
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return rec, fmt.Errorf("read settings: %w", err)
	}

	rec.History = history
	rec.Favorites = favorites
	rec.Playlists = playlists
	rec.Settings = settings
	rec.Normalize()
	return rec, nil
}

// Apply writes a merged record back into the local store. Settings are
// written key by key; keys present locally but absent from the record are
// left alone (the merge resolver never drops a local key, so an absent
// key was never local to begin with).
func Apply(ctx context.Context, s store.Store, rec model.SyncRecord) error {
	if err := s.SetHistory(ctx, rec.History); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := s.SetFavorites(ctx, rec.Favorites); err != nil {
		return fmt.Errorf("write favorites: %w", err)
	}
	if err := s.SetPlaylists(ctx, rec.Playlists); err != nil {
		return fmt.Errorf("write playlists: %w", err)
	}
	for key, value := range rec.Settings {
		if err := s.SetSettingValue(ctx, key, value); err != nil {
			return fmt.Errorf("write setting %q: %w", key, err)
		}
	}
	return nil
}
