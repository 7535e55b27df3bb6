// Package api implements the REST client for the Pactly backend. The cache
// layer treats these fetchers as opaque sources of truth; no business rules
// live here.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.pactly.app/datakit/internal/core/domain"
	"go.trai.ch/zerr"
)

// Client performs authenticated JSON calls against the backend.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// NewClient creates a Client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchFriends returns the current social graph snapshot.
func (c *Client) FetchFriends(ctx context.Context, token string) (domain.FriendsSnapshot, error) {
	var snap domain.FriendsSnapshot
	if err := c.getJSON(ctx, token, "/v1/friends", &snap); err != nil {
		return domain.FriendsSnapshot{}, err
	}
	return snap, nil
}

// FetchAnalytics returns the recipient habit analytics aggregate.
func (c *Client) FetchAnalytics(ctx context.Context, token string) ([]domain.AnalyticsRecord, error) {
	var records []domain.AnalyticsRecord
	if err := c.getJSON(ctx, token, "/v1/recipients/analytics", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FetchAppState returns the generic app state snapshot.
func (c *Client) FetchAppState(ctx context.Context, token string) (domain.AppState, error) {
	var state domain.AppState
	if err := c.getJSON(ctx, token, "/v1/state", &state); err != nil {
		return domain.AppState{}, err
	}
	return state, nil
}

func (c *Client) getJSON(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to build request"), "path", path)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "request failed"), "path", path)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return zerr.With(zerr.With(domain.ErrUnauthorized, "status", resp.StatusCode), "path", path)
	case resp.StatusCode != http.StatusOK:
		return zerr.With(zerr.New(fmt.Sprintf("unexpected status %d", resp.StatusCode)), "path", path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to decode response"), "path", path)
	}
	return nil
}
