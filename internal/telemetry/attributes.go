// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Sync attributes
	SyncAccountKey   = "sync.account"
	SyncOperationKey = "sync.operation"
	SyncSourceKey    = "sync.source"
	SyncHistoryKey   = "sync.history_count"
	SyncFavoritesKey = "sync.favorites_count"
	SyncPlaylistsKey = "sync.playlists_count"

	// Retry attributes
	RetryAttemptKey = "retry.attempt"
	RetryBudgetKey  = "retry.budget"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SyncAttributes creates sync-operation span attributes. Empty values are
// omitted.
func SyncAttributes(account, operation, source string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if account != "" {
		attrs = append(attrs, attribute.String(SyncAccountKey, account))
	}
	if operation != "" {
		attrs = append(attrs, attribute.String(SyncOperationKey, operation))
	}
	if source != "" {
		attrs = append(attrs, attribute.String(SyncSourceKey, source))
	}
	return attrs
}

// RecordCountAttributes creates span attributes for the size of a sync record.
func RecordCountAttributes(history, favorites, playlists int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(SyncHistoryKey, history),
		attribute.Int(SyncFavoritesKey, favorites),
		attribute.Int(SyncPlaylistsKey, playlists),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
