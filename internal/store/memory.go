// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sync"

	"github.com/ManuGH/vidsync/internal/model"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs.
type MemoryStore struct {
	mu        sync.RWMutex
	history   []model.HistoryEntry
	favorites []model.FavoriteEntry
	playlists []model.PlaylistEntry
	settings  model.Settings
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: model.Settings{}}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) History(ctx context.Context) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.HistoryEntry, len(s.history))
	copy(out, s.history)
	return out, nil
}

func (s *MemoryStore) SetHistory(ctx context.Context, entries []model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = make([]model.HistoryEntry, len(entries))
	copy(s.history, entries)
	return nil
}

func (s *MemoryStore) Favorites(ctx context.Context) ([]model.FavoriteEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.FavoriteEntry, len(s.favorites))
	copy(out, s.favorites)
	return out, nil
}

func (s *MemoryStore) SetFavorites(ctx context.Context, entries []model.FavoriteEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites = make([]model.FavoriteEntry, len(entries))
	copy(s.favorites, entries)
	return nil
}

func (s *MemoryStore) Playlists(ctx context.Context) ([]model.PlaylistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PlaylistEntry, len(s.playlists))
	copy(out, s.playlists)
	return out, nil
}

func (s *MemoryStore) SetPlaylists(ctx context.Context, entries []model.PlaylistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists = make([]model.PlaylistEntry, len(entries))
	copy(s.playlists, entries)
	return nil
}

func (s *MemoryStore) Settings(ctx context.Context) (model.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(model.Settings, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) SettingValue(ctx context.Context, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *MemoryStore) SetSettingValue(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *MemoryStore) HasConsent(ctx context.Context) (bool, error) {
	v, ok, err := s.SettingValue(ctx, SettingCloudSyncConsent)
	if err != nil || !ok {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}
