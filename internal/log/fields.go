// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldAccountID = "account_id"
	FieldRequestID = "request_id"

	// Sync fields
	FieldOperation = "operation"
	FieldComponent = "component"
	FieldAttempt   = "attempt"
	FieldSource    = "source"

	// Record fields
	FieldHistoryCount   = "history_count"
	FieldFavoritesCount = "favorites_count"
	FieldPlaylistsCount = "playlists_count"
)
