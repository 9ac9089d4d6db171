// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/analytics"
	"github.com/luxfi/adbridge/pkg/api"
	"github.com/luxfi/adbridge/pkg/bridge"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/native/simulated"
	"github.com/luxfi/adbridge/pkg/router"
)

func newDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sdk := simulated.New(simulated.Config{
		Floor: 0.1,
		Demand: []simulated.DemandPartner{
			{Name: "unity", MinCPM: 4, MaxCPM: 4, FillRate: 1},
		},
		RefreshInterval: time.Hour,
		Seed:            5,
	}, log.NoOp())
	module := bridge.New(sdk, log.NoOp(), bridge.Options{})
	tracker := analytics.NewTracker(module.Placement, log.NoOp())

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := module.Subscribe(router.Filter{})
	require.NoError(t, err)
	go tracker.Run(ctx, sub)

	srv := httptest.NewServer(api.NewServer(module, tracker, nil, log.NoOp(), api.Config{}).Router())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		module.Close()
		sdk.Close()
	})
	return srv
}

func TestClientAdLifecycle(t *testing.T) {
	require := require.New(t)
	srv := newDaemon(t)
	c := NewClient(srv.URL+"/", "key")
	ctx := context.Background()

	_, err := c.CreateAd(ctx, ads.Rewarded, "", "level_end", "")
	var apiErr *APIError
	require.True(errors.As(err, &apiErr))
	require.Equal(http.StatusPreconditionFailed, apiErr.StatusCode)

	require.NoError(c.Initialize(ctx, "app"))
	status, err := c.Status(ctx)
	require.NoError(err)
	require.True(status.Initialized)

	streamCtx, stop := context.WithCancel(ctx)
	defer stop()
	events, err := c.Subscribe(streamCtx, Filter{Types: []ads.Type{ads.Rewarded}})
	require.NoError(err)

	id, err := c.CreateAd(ctx, ads.Rewarded, "", "level_end", "")
	require.NoError(err)
	require.NotEmpty(id)
	require.NoError(c.Load(ctx, ads.Rewarded, id))

	select {
	case ev := <-events:
		require.Equal(ads.Loaded, ev.Kind)
		require.Equal(id, ev.Identifier)
		require.Equal("unity", ev.Ad.Bidder)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	ready, err := c.IsReady(ctx, ads.Rewarded, id)
	require.NoError(err)
	require.True(ready)

	list, err := c.Ads(ctx)
	require.NoError(err)
	require.Len(list, 1)

	require.Eventually(func() bool {
		snap, err := c.Stats(ctx)
		return err == nil && snap.TotalEvents == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(c.Destroy(ctx, id))
	_, err = c.IsReady(ctx, ads.Rewarded, id)
	require.NoError(err)

	err = c.Load(ctx, ads.Rewarded, id)
	require.True(errors.As(err, &apiErr))
	require.Equal(http.StatusNotFound, apiErr.StatusCode)

	stop()
	require.Eventually(func() bool {
		_, open := <-events
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClientPrivacy(t *testing.T) {
	require := require.New(t)
	c := NewClient(newDaemon(t).URL, "")
	ctx := context.Background()

	ccpa := "1YNN"
	state, err := c.UpdatePrivacy(ctx, api.PrivacyRequest{CCPAString: &ccpa})
	require.NoError(err)
	require.Equal("1YNN", state.CCPAString)

	state, err = c.Privacy(ctx)
	require.NoError(err)
	require.Equal("1YNN", state.CCPAString)

	require.NoError(c.SetTargeting(ctx, api.TargetingRequest{App: map[string]string{"build": "42"}}))
	require.NoError(c.ClearTargeting(ctx))
}

func TestStreamURL(t *testing.T) {
	c := NewClient("https://ads.example.com", "")
	require.Equal(t, "wss://ads.example.com/ws/events", c.streamURL(Filter{}))

	c = NewClient("http://localhost:8080", "")
	require.Equal(t,
		"ws://localhost:8080/ws/events?id=a&id=b&type=banner",
		c.streamURL(Filter{Types: []ads.Type{ads.Banner}, Identifiers: []ads.Identifier{"a", "b"}}),
	)
}
