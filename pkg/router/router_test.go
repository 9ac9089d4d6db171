// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/metric"
	"github.com/luxfi/adbridge/pkg/native"
	"github.com/luxfi/adbridge/pkg/registry"
)

type stubAd struct{ handle native.Handle }

func (s *stubAd) Handle() native.Handle { return s.handle }
func (s *stubAd) Load()                 {}
func (s *stubAd) Show()                 {}
func (s *stubAd) IsReady() bool         { return true }
func (s *stubAd) Destroy()              {}

type harness struct {
	reg     *registry.Registry
	disp    *Dispatcher
	router  *Router
	metrics *metric.Metrics
}

func newHarness(t *testing.T, cfg DispatcherConfig) *harness {
	t.Helper()

	metrics, err := metric.NewMetrics()
	require.NoError(t, err)

	reg := registry.New(registry.FactoryFunc(func(ads.Type, registry.Config) (native.Ad, error) {
		return &stubAd{handle: native.NextHandle()}, nil
	}), log.NoOp())
	disp := NewDispatcher(cfg, log.NoOp(), metrics)
	t.Cleanup(disp.Close)

	return &harness{
		reg:     reg,
		disp:    disp,
		router:  New(reg, disp, log.NoOp(), metrics),
		metrics: metrics,
	}
}

func (h *harness) create(t *testing.T, typ ads.Type, id ads.Identifier) native.Handle {
	t.Helper()
	ad, err := h.reg.Create(typ, id, registry.Config{Placement: "p"})
	require.NoError(t, err)
	return ad.Handle()
}

func receive(t *testing.T, sub *Subscription) ads.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ads.Event{}
}

func TestRouterInterstitialScenario(t *testing.T) {
	require := require.New(t)
	h := newHarness(t, DispatcherConfig{})

	sub, err := h.disp.Subscribe(Filter{})
	require.NoError(err)

	handle := h.create(t, ads.Interstitial, "intA")

	h.router.OnAdLoaded(handle, &ads.AdInfo{PlacementName: "home"})
	h.router.OnAdClicked(handle, nil)
	h.router.OnAdHidden(handle, nil)

	loaded := receive(t, sub)
	require.Equal(ads.Identifier("intA"), loaded.Identifier)
	require.Equal(ads.Interstitial, loaded.Type)
	require.Equal(ads.Loaded, loaded.Kind)
	require.Equal("home", loaded.Ad.PlacementName)

	require.Equal(ads.Clicked, receive(t, sub).Kind)

	closed := receive(t, sub)
	require.Equal(ads.Hidden, closed.Kind)
	require.Equal("onInterstitialClosed", closed.Name())
	require.Greater(closed.Seq, loaded.Seq)
}

func TestRouterCallbackKinds(t *testing.T) {
	require := require.New(t)
	h := newHarness(t, DispatcherConfig{})

	sub, err := h.disp.Subscribe(Filter{})
	require.NoError(err)

	rw := h.create(t, ads.Rewarded, "rw")
	bn := h.create(t, ads.Banner, "bn")

	failure := &ads.ErrorInfo{Code: "NO_FILL", Message: "no fill"}
	calls := []struct {
		fire func()
		kind ads.EventKind
	}{
		{func() { h.router.OnAdLoadFailed(rw, failure) }, ads.FailedToLoad},
		{func() { h.router.OnAdDisplayed(rw, nil) }, ads.Shown},
		{func() { h.router.OnAdDisplayFailed(rw, failure) }, ads.FailedToShow},
		{func() { h.router.OnAdImpression(rw, nil) }, ads.Impression},
		{func() { h.router.OnUserRewarded(rw, nil) }, ads.RewardEarned},
		{func() { h.router.OnAdRevenuePaid(rw, nil) }, ads.RevenuePaid},
		{func() { h.router.OnAdExpanded(bn, nil) }, ads.Expanded},
		{func() { h.router.OnAdCollapsed(bn, nil) }, ads.Collapsed},
		{func() { h.router.OnAdOpened(bn, nil) }, ads.Opened},
	}

	for _, c := range calls {
		c.fire()
		ev := receive(t, sub)
		require.Equal(c.kind, ev.Kind)
		if c.kind == ads.FailedToLoad || c.kind == ads.FailedToShow {
			require.Equal("NO_FILL", ev.Error.Code)
		}
	}

	require.Equal(1.0, testutil.ToFloat64(h.metrics.EventsEmitted.WithLabelValues("banner", "Opened")))
}

func TestRouterDropsCallbackAfterRemove(t *testing.T) {
	require := require.New(t)
	h := newHarness(t, DispatcherConfig{})

	sub, err := h.disp.Subscribe(Filter{Identifiers: []ads.Identifier{"intA"}})
	require.NoError(err)

	handle := h.create(t, ads.Interstitial, "intA")
	h.reg.Remove(ads.Interstitial, "intA")

	// A callback queued by the SDK before destroy arrives afterwards
	h.router.OnAdLoaded(handle, nil)
	h.router.OnAdClicked(native.Handle(0), nil)

	h.disp.Close()
	_, ok := <-sub.Events()
	require.False(ok, "no event expected for a removed instance")

	require.Equal(2.0, testutil.ToFloat64(h.metrics.EventsDropped.WithLabelValues(metric.DropUnknownInstance)))
}

func TestRouterPreservesPerIdentifierOrder(t *testing.T) {
	require := require.New(t)
	h := newHarness(t, DispatcherConfig{QueueSize: 4096, SubscriberBuffer: 4096})

	sub, err := h.disp.Subscribe(Filter{})
	require.NoError(err)

	const perAd = 300
	ids := []ads.Identifier{"ad1", "ad2", "ad3"}
	handles := make([]native.Handle, len(ids))
	for i, id := range ids {
		handles[i] = h.create(t, ads.Interstitial, id)
	}

	var wg sync.WaitGroup
	wg.Add(len(ids))
	for i := range ids {
		go func(handle native.Handle) {
			defer wg.Done()
			for n := 0; n < perAd; n++ {
				h.router.OnAdImpression(handle, &ads.AdInfo{PlacementID: strconv.Itoa(n)})
			}
		}(handles[i])
	}
	wg.Wait()
	h.disp.Close()

	next := make(map[ads.Identifier]int)
	var lastSeq uint64
	for ev := range sub.Events() {
		n, err := strconv.Atoi(ev.Ad.PlacementID)
		require.NoError(err)
		require.Equal(next[ev.Identifier], n, "out of order for %s", ev.Identifier)
		next[ev.Identifier]++

		require.Greater(ev.Seq, lastSeq)
		lastSeq = ev.Seq
	}
	for _, id := range ids {
		require.Equal(perAd, next[id])
	}
}

func TestRouterScenarioOrderAcrossIdentifiers(t *testing.T) {
	require := require.New(t)
	h := newHarness(t, DispatcherConfig{})

	sub, err := h.disp.Subscribe(Filter{Identifiers: []ads.Identifier{"ad1"}})
	require.NoError(err)

	ad1 := h.create(t, ads.Banner, "ad1")
	ad2 := h.create(t, ads.Banner, "ad2")

	h.router.OnAdLoaded(ad1, nil)
	h.router.OnAdLoaded(ad2, nil)
	h.router.OnAdImpression(ad1, nil)
	h.router.OnAdClicked(ad2, nil)
	h.router.OnAdClicked(ad1, nil)

	require.Equal(ads.Loaded, receive(t, sub).Kind)
	require.Equal(ads.Impression, receive(t, sub).Kind)
	require.Equal(ads.Clicked, receive(t, sub).Kind)
}
