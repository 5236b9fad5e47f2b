// SPDX-License-Identifier: MIT

// Package model defines the syncable account record exchanged between a
// device and its cloud document.
package model

import "fmt"

// Caps enforced on merged records. A record that has passed through the
// merge resolver never exceeds these.
const (
	MaxHistoryEntries  = 1000
	MaxFavoriteEntries = 500
)

// Settings is a flat string-keyed map of primitive values (bool, number or
// string), e.g. data collection and weekly summary toggles.
type Settings map[string]any

// SyncRecord is the whole-account payload. It is materialized fresh from
// the local store on every sync and never persisted locally as its own
// entity; the remote document is the only durable copy.
type SyncRecord struct {
	History      []HistoryEntry  `json:"watchHistory"`
	Favorites    []FavoriteEntry `json:"favorites"`
	Playlists    []PlaylistEntry `json:"playlists"`
	Settings     Settings        `json:"settings"`
	LastSyncedAt int64           `json:"lastSyncTimestamp"`
}

// HistoryEntry is a single watch event. The same video watched at two
// different times is two distinct entries.
type HistoryEntry struct {
	VideoID       string  `json:"videoId"`
	Title         string  `json:"title"`
	ChannelTitle  string  `json:"channelTitle"`
	ThumbnailURL  string  `json:"thumbnailUrl"`
	Duration      string  `json:"duration"`
	WatchedAt     int64   `json:"watchedAt"`
	WatchDuration int64   `json:"watchDuration"` // milliseconds
	WatchPosition float64 `json:"watchPosition"` // 0..1 fraction of the video
}

// Key returns the dedup identity of a history entry.
func (h HistoryEntry) Key() string {
	return fmt.Sprintf("%s@%d", h.VideoID, h.WatchedAt)
}

// FavoriteEntry marks a video as favorited. A video can be favorited at
// most once, so VideoID alone is the identity.
type FavoriteEntry struct {
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Duration     string `json:"duration"`
	AddedAt      int64  `json:"addedAt"`
}

// VideoRef is a lightweight reference to a video inside a playlist.
type VideoRef struct {
	VideoID      string `json:"videoId"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Duration     string `json:"duration"`
}

// PlaylistEntry is a user-created playlist. Video order inside a playlist
// is kept as stored.
type PlaylistEntry struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Videos      []VideoRef `json:"videos"`
	CreatedAt   int64      `json:"createdAt"`
	UpdatedAt   int64      `json:"updatedAt"`
}

// Empty returns a valid zero-content record with non-nil collections.
func Empty() SyncRecord {
	return SyncRecord{
		History:   []HistoryEntry{},
		Favorites: []FavoriteEntry{},
		Playlists: []PlaylistEntry{},
		Settings:  Settings{},
	}
}

// Clone returns a deep copy. The merge resolver and engine hand records
// across goroutine and store boundaries, so aliasing the slices is not safe.
func (r SyncRecord) Clone() SyncRecord {
	out := SyncRecord{
		History:      make([]HistoryEntry, len(r.History)),
		Favorites:    make([]FavoriteEntry, len(r.Favorites)),
		Playlists:    make([]PlaylistEntry, len(r.Playlists)),
		Settings:     make(Settings, len(r.Settings)),
		LastSyncedAt: r.LastSyncedAt,
	}
	copy(out.History, r.History)
	copy(out.Favorites, r.Favorites)
	for i, p := range r.Playlists {
		cp := p
		cp.Videos = make([]VideoRef, len(p.Videos))
		copy(cp.Videos, p.Videos)
		out.Playlists[i] = cp
	}
	for k, v := range r.Settings {
		out.Settings[k] = v
	}
	return out
}

// IsEmpty reports whether the record carries no user data.
func (r SyncRecord) IsEmpty() bool {
	return len(r.History) == 0 && len(r.Favorites) == 0 &&
		len(r.Playlists) == 0 && len(r.Settings) == 0
}

// Normalize replaces nil collections with empty ones so JSON round-trips
// produce [] and {} instead of null.
func (r *SyncRecord) Normalize() {
	if r.History == nil {
		r.History = []HistoryEntry{}
	}
	if r.Favorites == nil {
		r.Favorites = []FavoriteEntry{}
	}
	if r.Playlists == nil {
		r.Playlists = []PlaylistEntry{}
	}
	if r.Settings == nil {
		r.Settings = Settings{}
	}
	for i := range r.Playlists {
		if r.Playlists[i].Videos == nil {
			r.Playlists[i].Videos = []VideoRef{}
		}
	}
}
