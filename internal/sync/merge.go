// SPDX-License-Identifier: MIT

package sync

import (
	"sort"
	"time"

	"github.com/ManuGH/vidsync/internal/metrics"
	"github.com/ManuGH/vidsync/internal/model"
)

// MergeOptions tune the merge resolver.
type MergeOptions struct {
	// PreferNewerPlaylists switches playlist conflicts from unconditional
	// local-wins to last-writer-wins on UpdatedAt. Off by default: the
	// shipped client contract is that a local playlist is never replaced,
	// even by a newer remote edit. Ties still keep local.
	PreferNewerPlaylists bool
}

// Merge reconciles two account records with default options.
func Merge(local, remote model.SyncRecord) model.SyncRecord {
	return MergeWith(local, remote, MergeOptions{})
}

// MergeWith reconciles two account records into one, field by field:
//
//   - history:   union deduped by (videoId, watchedAt), local entry wins
//     ties, sorted descending by watchedAt, capped at 1000
//   - favorites: union deduped by videoId, local wins, sorted descending
//     by addedAt, capped at 500
//   - playlists: every local playlist kept; remote playlists added only
//     when their id is absent locally (see PreferNewerPlaylists)
//   - settings:  shallow merge, local value wins per key
//
// The function is pure and deterministic: identical inputs produce
// identical output, and the result is always sorted and cap-respecting,
// so callers never re-validate it.
func MergeWith(local, remote model.SyncRecord, opts MergeOptions) model.SyncRecord {
	start := time.Now()
	defer func() { metrics.MergeDuration.Observe(time.Since(start).Seconds()) }()

	out := model.SyncRecord{
		History:   mergeHistory(local.History, remote.History),
		Favorites: mergeFavorites(local.Favorites, remote.Favorites),
		Playlists: mergePlaylists(local.Playlists, remote.Playlists, opts),
		Settings:  mergeSettings(local.Settings, remote.Settings),
	}
	out.LastSyncedAt = local.LastSyncedAt
	if remote.LastSyncedAt > out.LastSyncedAt {
		out.LastSyncedAt = remote.LastSyncedAt
	}
	return out
}

func mergeHistory(local, remote []model.HistoryEntry) []model.HistoryEntry {
	seen := make(map[string]struct{}, len(local)+len(remote))
	out := make([]model.HistoryEntry, 0, len(local)+len(remote))
	for _, e := range local {
		if _, dup := seen[e.Key()]; dup {
			continue
		}
		seen[e.Key()] = struct{}{}
		out = append(out, e)
	}
	for _, e := range remote {
		if _, dup := seen[e.Key()]; dup {
			continue
		}
		seen[e.Key()] = struct{}{}
		out = append(out, e)
	}
	// Stable keeps the local-first union order for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WatchedAt > out[j].WatchedAt
	})
	if len(out) > model.MaxHistoryEntries {
		out = out[:model.MaxHistoryEntries]
	}
	return out
}

func mergeFavorites(local, remote []model.FavoriteEntry) []model.FavoriteEntry {
	seen := make(map[string]struct{}, len(local)+len(remote))
	out := make([]model.FavoriteEntry, 0, len(local)+len(remote))
	for _, e := range local {
		if _, dup := seen[e.VideoID]; dup {
			continue
		}
		seen[e.VideoID] = struct{}{}
		out = append(out, e)
	}
	for _, e := range remote {
		if _, dup := seen[e.VideoID]; dup {
			continue
		}
		seen[e.VideoID] = struct{}{}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AddedAt > out[j].AddedAt
	})
	if len(out) > model.MaxFavoriteEntries {
		out = out[:model.MaxFavoriteEntries]
	}
	return out
}

func mergePlaylists(local, remote []model.PlaylistEntry, opts MergeOptions) []model.PlaylistEntry {
	byID := make(map[string]int, len(local))
	out := make([]model.PlaylistEntry, 0, len(local)+len(remote))
	for _, p := range local {
		byID[p.ID] = len(out)
		out = append(out, p)
	}
	for _, p := range remote {
		idx, exists := byID[p.ID]
		if !exists {
			out = append(out, p)
			continue
		}
		if opts.PreferNewerPlaylists && p.UpdatedAt > out[idx].UpdatedAt {
			out[idx] = p
		}
	}
	return out
}

func mergeSettings(local, remote model.Settings) model.Settings {
	out := make(model.Settings, len(local)+len(remote))
	for k, v := range remote {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}
