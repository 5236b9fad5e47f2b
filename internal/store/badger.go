// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/ManuGH/vidsync/internal/model"
)

// Key layout:
// - lists:    "history", "favorites", "playlists" (JSON arrays)
// - settings: "setting:<key>" (JSON scalar)
const (
	keyHistory   = "history"
	keyFavorites = "favorites"
	keyPlaylists = "playlists"
	settingPfx   = "setting:"
)

// BadgerStore is the durable per-device store.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the store at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) getJSON(key string, out any) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *BadgerStore) setJSON(key string, value any) error {
	buf, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), buf)
	})
}

func (s *BadgerStore) History(ctx context.Context) ([]model.HistoryEntry, error) {
	var out []model.HistoryEntry
	if _, err := s.getJSON(keyHistory, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) SetHistory(ctx context.Context, entries []model.HistoryEntry) error {
	return s.setJSON(keyHistory, entries)
}

func (s *BadgerStore) Favorites(ctx context.Context) ([]model.FavoriteEntry, error) {
	var out []model.FavoriteEntry
	if _, err := s.getJSON(keyFavorites, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) SetFavorites(ctx context.Context, entries []model.FavoriteEntry) error {
	return s.setJSON(keyFavorites, entries)
}

func (s *BadgerStore) Playlists(ctx context.Context) ([]model.PlaylistEntry, error) {
	var out []model.PlaylistEntry
	if _, err := s.getJSON(keyPlaylists, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) SetPlaylists(ctx context.Context, entries []model.PlaylistEntry) error {
	return s.setJSON(keyPlaylists, entries)
}

func (s *BadgerStore) Settings(ctx context.Context) (model.Settings, error) {
	out := model.Settings{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(settingPfx)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), settingPfx)
			if err := item.Value(func(val []byte) error {
				var v any
				if err := json.Unmarshal(val, &v); err != nil {
					return err
				}
				out[key] = v
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) SettingValue(ctx context.Context, key string) (any, bool, error) {
	var v any
	ok, err := s.getJSON(settingPfx+key, &v)
	if err != nil || !ok {
		return nil, false, err
	}
	return v, true, nil
}

func (s *BadgerStore) SetSettingValue(ctx context.Context, key string, value any) error {
	return s.setJSON(settingPfx+key, value)
}

func (s *BadgerStore) HasConsent(ctx context.Context) (bool, error) {
	v, ok, err := s.SettingValue(ctx, SettingCloudSyncConsent)
	if err != nil || !ok {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}
