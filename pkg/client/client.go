// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client talks to an adbridge daemon over HTTP and its websocket
// event stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/analytics"
	"github.com/luxfi/adbridge/pkg/api"
)

// Client is the adbridge client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new adbridge client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("adbridge: %d %s", e.StatusCode, e.Message)
}

// NewIdentifier returns a random ad identifier
func NewIdentifier() ads.Identifier {
	return ads.Identifier(uuid.NewString())
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var msg struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil || msg.Error == "" {
			msg.Error = resp.Status
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Initialize initialises the SDK behind the daemon
func (c *Client) Initialize(ctx context.Context, appKey string) error {
	return c.do(ctx, http.MethodPost, "/sdk/init", api.InitRequest{AppKey: appKey}, nil)
}

// Status describes the SDK state
type Status struct {
	Initialized    bool   `json:"initialized"`
	Version        string `json:"version"`
	Environment    string `json:"environment"`
	LoggingEnabled bool   `json:"loggingEnabled"`
	MinLogLevel    string `json:"minLogLevel"`
	Instances      int    `json:"instances"`
	Subscribers    int    `json:"subscribers"`
}

// Status returns the SDK state
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/sdk/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetEnvironment changes the SDK environment and log settings
func (c *Client) SetEnvironment(ctx context.Context, req api.EnvironmentRequest) error {
	return c.do(ctx, http.MethodPut, "/sdk/environment", req, nil)
}

// Privacy returns the current privacy signals
func (c *Client) Privacy(ctx context.Context) (*api.PrivacyState, error) {
	var state api.PrivacyState
	if err := c.do(ctx, http.MethodGet, "/privacy", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// UpdatePrivacy applies the non-nil fields of req
func (c *Client) UpdatePrivacy(ctx context.Context, req api.PrivacyRequest) (*api.PrivacyState, error) {
	var state api.PrivacyState
	if err := c.do(ctx, http.MethodPut, "/privacy", req, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SetTargeting sets user identifiers and key-values
func (c *Client) SetTargeting(ctx context.Context, req api.TargetingRequest) error {
	return c.do(ctx, http.MethodPut, "/targeting", req, nil)
}

// ClearTargeting removes every targeting value
func (c *Client) ClearTargeting(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/targeting", nil, nil)
}

// CreateAd creates an instance. An empty id is replaced by NewIdentifier.
func (c *Client) CreateAd(ctx context.Context, t ads.Type, id ads.Identifier, placement string, size ads.BannerSize) (ads.Identifier, error) {
	if id == "" {
		id = NewIdentifier()
	}
	req := api.CreateAdRequest{Identifier: id, Placement: placement, Size: string(size)}
	if err := c.do(ctx, http.MethodPost, "/ads/"+t.String(), req, nil); err != nil {
		return "", err
	}
	return id, nil
}

func adPath(t ads.Type, id ads.Identifier, action string) string {
	return fmt.Sprintf("/ads/%s/%s/%s", t, url.PathEscape(string(id)), action)
}

// Load starts loading (t, id)
func (c *Client) Load(ctx context.Context, t ads.Type, id ads.Identifier) error {
	return c.do(ctx, http.MethodPost, adPath(t, id, "load"), nil, nil)
}

// Show shows (t, id)
func (c *Client) Show(ctx context.Context, t ads.Type, id ads.Identifier) error {
	return c.do(ctx, http.MethodPost, adPath(t, id, "show"), nil, nil)
}

// HideBanner hides a banner
func (c *Client) HideBanner(ctx context.Context, id ads.Identifier) error {
	return c.do(ctx, http.MethodPost, adPath(ads.Banner, id, "hide"), nil, nil)
}

// SetAutoRefresh starts or stops banner auto-refresh
func (c *Client) SetAutoRefresh(ctx context.Context, id ads.Identifier, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.do(ctx, http.MethodPost, adPath(ads.Banner, id, "autorefresh"), body, nil)
}

// IsReady reports whether (t, id) has a loaded ad
func (c *Client) IsReady(ctx context.Context, t ads.Type, id ads.Identifier) (bool, error) {
	var out struct {
		Ready bool `json:"ready"`
	}
	if err := c.do(ctx, http.MethodGet, adPath(t, id, "ready"), nil, &out); err != nil {
		return false, err
	}
	return out.Ready, nil
}

// Ads lists the live instances
func (c *Client) Ads(ctx context.Context) ([]api.AdView, error) {
	var out struct {
		Ads []api.AdView `json:"ads"`
	}
	if err := c.do(ctx, http.MethodGet, "/ads", nil, &out); err != nil {
		return nil, err
	}
	return out.Ads, nil
}

// Destroy destroys the instance registered under id
func (c *Client) Destroy(ctx context.Context, id ads.Identifier) error {
	return c.do(ctx, http.MethodDelete, "/ads/"+url.PathEscape(string(id)), nil, nil)
}

// Stats retrieves the analytics snapshot
func (c *Client) Stats(ctx context.Context) (*analytics.Snapshot, error) {
	var snap analytics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Filter selects streamed events. Empty fields match all.
type Filter struct {
	Types       []ads.Type
	Identifiers []ads.Identifier
}

func (c *Client) streamURL(filter Filter) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	q := url.Values{}
	for _, t := range filter.Types {
		q.Add("type", t.String())
	}
	for _, id := range filter.Identifiers {
		q.Add("id", string(id))
	}
	if len(q) == 0 {
		return base + "/ws/events"
	}
	return base + "/ws/events?" + q.Encode()
}

// Subscribe streams events until ctx is done or the server closes the
// stream. The returned channel is closed when the stream ends.
func (c *Client) Subscribe(ctx context.Context, filter Filter) (<-chan ads.Event, error) {
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("X-API-Key", c.apiKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL(filter), header)
	if err != nil {
		return nil, err
	}

	out := make(chan ads.Event)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()
	go func() {
		defer close(out)
		defer close(done)
		for {
			var ev ads.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
