// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bannerview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/native"
	"github.com/luxfi/adbridge/pkg/native/simulated"
)

type events struct {
	mu    sync.Mutex
	kinds []ads.EventKind
}

func (e *events) record(ev ads.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kinds = append(e.kinds, ev.Kind)
}

func (e *events) get() []ads.EventKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ads.EventKind(nil), e.kinds...)
}

func (e *events) callbacks() Callbacks {
	return Callbacks{
		OnAdLoaded:       e.record,
		OnAdFailedToLoad: e.record,
		OnAdShown:        e.record,
		OnAdFailedToShow: e.record,
		OnAdClicked:      e.record,
		OnAdHidden:       e.record,
		OnAdImpression:   e.record,
		OnAdRevenuePaid:  e.record,
		OnAdExpanded:     e.record,
		OnAdCollapsed:    e.record,
		OnAdOpened:       e.record,
	}
}

func newSDK(t *testing.T, fill float64) *simulated.SDK {
	t.Helper()
	sdk := simulated.New(simulated.Config{
		Latency: 20 * time.Millisecond,
		Floor:   0.1,
		Demand:  []simulated.DemandPartner{{Name: "meta", MinCPM: 2, MaxCPM: 2, FillRate: fill}},
		Seed:    7,
	}, log.NoOp())
	t.Cleanup(sdk.Close)
	require.NoError(t, sdk.Initialize(context.Background(), native.InitParams{AppKey: "app"}))
	return sdk
}

func TestViewLoadLifecycle(t *testing.T) {
	require := require.New(t)
	sdk := newSDK(t, 1)
	m := NewManager(sdk, log.NoOp())

	rec := &events{}
	v, err := m.Mount(Props{Placement: "footer", AdID: "b1", ShouldLoad: true}, rec.callbacks())
	require.NoError(err)
	require.Equal(Loading, v.State())
	require.Equal(1, m.Bound())

	// A second load while one is in flight does nothing
	require.NoError(v.LoadAd())
	sdk.Flush()

	require.Equal([]ads.EventKind{ads.Loaded, ads.Shown, ads.Impression, ads.RevenuePaid}, rec.get())
	require.Equal(Shown, v.State())

	sim, ok := sdk.Ad(v.Handle())
	require.True(ok)
	require.Equal(1, sim.Loads())
	require.Equal(ads.SizeBanner, v.Props().Size)

	sim.Hide()
	sdk.Flush()
	require.Equal(Hidden, v.State())

	// A hidden banner can be reloaded
	require.NoError(v.LoadAd())
	sdk.Flush()
	require.Equal(Loaded, v.State())
	require.Equal(2, sim.Loads())
}

func TestViewFailedLoadRetries(t *testing.T) {
	require := require.New(t)
	sdk := newSDK(t, 0)
	m := NewManager(sdk, log.NoOp())

	rec := &events{}
	v, err := m.Mount(Props{Placement: "footer", AdID: "b1"}, rec.callbacks())
	require.NoError(err)
	require.Equal(Uninitialized, v.State())
	require.Zero(v.Handle())

	require.NoError(v.LoadAd())
	sdk.Flush()
	require.Equal(FailedToLoad, v.State())

	require.NoError(v.LoadAd())
	sdk.Flush()
	require.Equal([]ads.EventKind{ads.FailedToLoad, ads.FailedToLoad}, rec.get())
}

func TestViewDestroyDropsLateCallbacks(t *testing.T) {
	require := require.New(t)
	sdk := newSDK(t, 1)
	m := NewManager(sdk, log.NoOp())

	rec := &events{}
	v, err := m.Mount(Props{Placement: "footer", AdID: "b1", ShouldLoad: true}, rec.callbacks())
	require.NoError(err)
	sdk.Flush()

	sim, _ := sdk.Ad(v.Handle())
	before := len(rec.get())

	m.Unmount(v)
	v.Destroy()
	require.Equal(Destroyed, v.State())
	require.Equal(0, m.Bound())
	require.Equal(0, sdk.Live())

	sim.SimulateClick()
	sdk.Flush()
	require.Len(rec.get(), before)

	require.NoError(v.LoadAd())
	require.ErrorIs(v.SetProps(Props{Placement: "footer"}), ads.ErrClosed)
}

func TestViewSetPropsReplacesBanner(t *testing.T) {
	require := require.New(t)
	sdk := newSDK(t, 1)
	m := NewManager(sdk, log.NoOp())

	v, err := m.Mount(Props{Placement: "footer", AdID: "b1", ShouldLoad: true}, Callbacks{})
	require.NoError(err)
	sdk.Flush()
	first := v.Handle()

	require.NoError(v.SetProps(Props{Placement: "footer", Size: ads.SizeMREC, AdID: "b1", ShouldLoad: true}))
	sdk.Flush()

	require.NotEqual(first, v.Handle())
	require.Equal(1, m.Bound())
	require.Equal(1, sdk.Live())
	require.Equal(Shown, v.State())
}

func TestViewDropsCallbackFromOtherBanner(t *testing.T) {
	require := require.New(t)
	sdk := newSDK(t, 1)
	m := NewManager(sdk, log.NoOp())

	rec := &events{}
	v, err := m.Mount(Props{Placement: "footer", AdID: "b1", ShouldLoad: true}, rec.callbacks())
	require.NoError(err)
	require.Equal(Loading, v.State())
	current := v.Handle()

	// A callback resolved to v just before its banner was swapped out
	v.handle(native.NextHandle(), ads.Loaded, &ads.AdInfo{}, nil)
	v.handle(native.NextHandle(), ads.FailedToLoad, nil, &ads.ErrorInfo{Message: "no fill"})
	require.Equal(Loading, v.State())
	require.Empty(rec.get())

	sdk.Flush()
	require.Equal(current, v.Handle())
	require.Equal(Shown, v.State())
	require.Equal([]ads.EventKind{ads.Loaded, ads.Shown, ads.Impression, ads.RevenuePaid}, rec.get())
}

func TestManagerCloseDestroysViews(t *testing.T) {
	require := require.New(t)
	sdk := newSDK(t, 1)
	m := NewManager(sdk, log.NoOp())

	loaded, err := m.Mount(Props{Placement: "footer", AdID: "b1", ShouldLoad: true}, Callbacks{})
	require.NoError(err)
	idle, err := m.Mount(Props{Placement: "header", AdID: "b2"}, Callbacks{})
	require.NoError(err)
	gone, err := m.Mount(Props{Placement: "feed", AdID: "b3", ShouldLoad: true}, Callbacks{})
	require.NoError(err)
	sdk.Flush()

	m.Unmount(gone)
	require.Equal(2, m.Mounted())
	require.Equal(1, m.Bound())
	require.Equal(1, sdk.Live())

	m.Close()
	m.Close()
	require.Equal(Destroyed, loaded.State())
	require.Equal(Destroyed, idle.State())
	require.Zero(m.Mounted())
	require.Zero(m.Bound())
	require.Zero(sdk.Live())

	_, err = m.Mount(Props{Placement: "footer", AdID: "b4", ShouldLoad: true}, Callbacks{})
	require.ErrorIs(err, ads.ErrClosed)
	require.Zero(sdk.Live())
}

func TestViewRequiresPlacement(t *testing.T) {
	m := NewManager(newSDK(t, 1), log.NoOp())

	_, err := m.Mount(Props{AdID: "b1", ShouldLoad: true}, Callbacks{})
	require.ErrorIs(t, err, ErrMissingPlacement)
}

func TestViewCallbackPanicRecovered(t *testing.T) {
	require := require.New(t)
	sdk := newSDK(t, 1)
	m := NewManager(sdk, log.NoOp())

	loaded := make(chan struct{})
	v, err := m.Mount(Props{Placement: "footer", AdID: "b1", ShouldLoad: true}, Callbacks{
		OnAdLoaded: func(ads.Event) { panic("host bug") },
		OnAdShown:  func(ads.Event) { close(loaded) },
	})
	require.NoError(err)

	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("shown callback never ran")
	}
	sdk.Flush()
	require.Equal(Shown, v.State())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "failedToLoad", FailedToLoad.String())
	require.Equal(t, "destroyed", Destroyed.String())
	require.Equal(t, "state(42)", State(42).String())
}
