// SPDX-License-Identifier: MIT

package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/vidsync/internal/model"
)

// Client talks to the cloud document store over HTTP. It has no cache
// tier of its own; wrap it in a CachingLedger for SourceCache reads.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout overrides the default 10s request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient creates a document store client for the given base URL.
// tokens may be nil for unauthenticated stores.
func NewClient(base string, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) syncURL(account string) string {
	return c.base + "/v1/accounts/" + url.PathEscape(account) + "/sync"
}

func (c *Client) profileURL(account string) string {
	return c.base + "/v1/accounts/" + url.PathEscape(account) + "/profile"
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, &Error{Sentinel: ErrUnavailable, Operation: method, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, &Error{Sentinel: ErrUnauthenticated, Operation: method, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Sentinel: ErrUnavailable, Operation: method, Err: err}
	}
	return res, nil
}

// classify maps a non-2xx response to a ledger error. The body is read
// (bounded) for diagnostics.
func classify(op string, res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	sentinel := ErrUnavailable
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		sentinel = ErrUnauthenticated
	case res.StatusCode == http.StatusForbidden:
		sentinel = ErrPermissionDenied
	case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
		sentinel = ErrUnavailable
	}
	return &Error{
		Sentinel:  sentinel,
		Operation: op,
		Status:    res.StatusCode,
		Body:      strings.TrimSpace(string(body)),
	}
}

// Get fetches the account document. The raw client always reads the
// server tier regardless of source.
func (c *Client) Get(ctx context.Context, account string, _ Source) (*model.SyncRecord, error) {
	res, err := c.do(ctx, http.MethodGet, c.syncURL(account), nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, nil // document absent, not an error
	case res.StatusCode != http.StatusOK:
		return nil, classify("get", res)
	}

	var rec model.SyncRecord
	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		return nil, &Error{Sentinel: ErrBadDocument, Operation: "get", Err: err}
	}
	rec.Normalize()
	return &rec, nil
}

// Set writes the account document. With mergeFields the write is a PATCH:
// top-level fields absent from the payload keep their server-side value.
func (c *Client) Set(ctx context.Context, account string, record model.SyncRecord, mergeFields bool) error {
	record.Normalize()
	payload, err := json.Marshal(record)
	if err != nil {
		return &Error{Sentinel: ErrBadDocument, Operation: "set", Err: err}
	}

	method := http.MethodPut
	if mergeFields {
		method = http.MethodPatch
	}
	res, err := c.do(ctx, method, c.syncURL(account), payload)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated && res.StatusCode != http.StatusNoContent {
		return classify("set", res)
	}
	return nil
}

// Delete removes the account document. Deleting an absent document is a
// no-op so the operation stays idempotent.
func (c *Client) Delete(ctx context.Context, account string) error {
	return c.deleteURL(ctx, "delete", c.syncURL(account))
}

// DeleteProfile removes the associated profile document.
func (c *Client) DeleteProfile(ctx context.Context, account string) error {
	return c.deleteURL(ctx, "delete-profile", c.profileURL(account))
}

func (c *Client) deleteURL(ctx context.Context, op, rawURL string) error {
	res, err := c.do(ctx, http.MethodDelete, rawURL, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusOK || res.StatusCode == http.StatusNoContent {
		return nil
	}
	return classify(op, res)
}

var _ Ledger = (*Client)(nil)

// Describe returns a short human-readable classification for err, used by
// callers that surface errors to an operator.
func Describe(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPermissionDenied):
		return "permission-denied"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrBadDocument):
		return "parse-failure"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return fmt.Sprintf("unknown (%T)", err)
	}
}
