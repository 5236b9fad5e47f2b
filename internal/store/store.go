// SPDX-License-Identifier: MIT

// Package store provides the on-device durable storage for watch history,
// favorites, playlists and settings.
package store

import (
	"context"
	"fmt"

	"github.com/ManuGH/vidsync/internal/model"
)

// Setting keys with engine-level meaning. Everything else in the settings
// map is opaque to the sync engine.
const (
	SettingCloudSyncConsent = "cloudSyncConsent"
)

// Store is the local data store contract consumed by the sync engine.
// Implementations must be safe for concurrent use.
type Store interface {
	History(ctx context.Context) ([]model.HistoryEntry, error)
	SetHistory(ctx context.Context, entries []model.HistoryEntry) error

	Favorites(ctx context.Context) ([]model.FavoriteEntry, error)
	SetFavorites(ctx context.Context, entries []model.FavoriteEntry) error

	Playlists(ctx context.Context) ([]model.PlaylistEntry, error)
	SetPlaylists(ctx context.Context, entries []model.PlaylistEntry) error

	// Settings returns the full settings map.
	Settings(ctx context.Context) (model.Settings, error)
	// SettingValue returns a single setting; ok is false when the key is
	// absent.
	SettingValue(ctx context.Context, key string) (value any, ok bool, err error)
	SetSettingValue(ctx context.Context, key string, value any) error

	// HasConsent reports whether the user has granted cloud sync consent.
	HasConsent(ctx context.Context) (bool, error)

	Close() error
}

// Open creates a Store based on the backend configuration.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "badger", "":
		return OpenBadgerStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
