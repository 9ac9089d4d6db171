// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulated

import (
	"sync"
	"time"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/native"
)

// Ad is one simulated ad object. Load, Show and the banner controls are
// ignored once the ad is destroyed. The Simulate methods model user or SDK
// activity already in flight and still post after Destroy, exactly like a
// callback the real SDK had queued before it was torn down.
type Ad struct {
	sdk       *SDK
	handle    native.Handle
	adType    ads.Type
	placement string
	size      ads.BannerSize

	delegate native.AdDelegate
	rewarded native.RewardedDelegate
	banner   native.BannerDelegate
	revenue  native.RevenueDelegate

	mu        sync.Mutex
	loading   bool
	loaded    *ads.AdInfo
	showing   bool
	hidden    bool
	destroyed bool
	loads     int
	refresh   chan struct{}
}

var _ native.Banner = (*Ad)(nil)

func (a *Ad) Handle() native.Handle { return a.handle }

// Type returns the ad format
func (a *Ad) Type() ads.Type { return a.adType }

// Placement returns the placement the ad was created for
func (a *Ad) Placement() string { return a.placement }

// Loads returns how many load rounds have been started
func (a *Ad) Loads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loads
}

// Destroyed reports whether Destroy has been called
func (a *Ad) Destroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}

func (a *Ad) Load() {
	a.mu.Lock()
	if a.destroyed || a.loading || a.showing {
		a.mu.Unlock()
		return
	}
	a.loading = true
	a.loads++
	a.mu.Unlock()

	a.sdk.post(func() {
		info, failure := a.sdk.auction(a)

		a.mu.Lock()
		a.loading = false
		if failure != nil {
			a.mu.Unlock()
			a.delegate.OnAdLoadFailed(a.handle, failure)
			return
		}
		a.loaded = info
		visibleBanner := a.adType == ads.Banner && !a.hidden
		a.mu.Unlock()

		a.delegate.OnAdLoaded(a.handle, info)
		if visibleBanner {
			a.displayed(info)
		}
	})
}

func (a *Ad) displayed(info *ads.AdInfo) {
	a.delegate.OnAdDisplayed(a.handle, info)
	a.delegate.OnAdImpression(a.handle, info)
	if a.revenue != nil {
		a.revenue.OnAdRevenuePaid(a.handle, info)
	}
}

func (a *Ad) Show() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}

	if a.adType == ads.Banner {
		wasHidden := a.hidden
		a.hidden = false
		info := a.loaded
		a.mu.Unlock()

		if wasHidden && info != nil {
			a.sdk.post(func() { a.displayed(info) })
		}
		return
	}
	a.mu.Unlock()

	a.sdk.post(func() {
		a.mu.Lock()
		if a.showing {
			a.mu.Unlock()
			a.delegate.OnAdDisplayFailed(a.handle, &ads.ErrorInfo{Code: CodeAlreadyShowing, Message: "ad is already showing"})
			return
		}
		if a.loaded == nil {
			a.mu.Unlock()
			a.delegate.OnAdDisplayFailed(a.handle, &ads.ErrorInfo{Code: CodeNotReady, Message: "ad is not loaded"})
			return
		}
		a.showing = true
		info := a.loaded
		a.mu.Unlock()

		a.displayed(info)

		if d := a.sdk.cfg.AutoDismiss; d > 0 {
			time.AfterFunc(d, a.SimulateClose)
		}
	})
}

func (a *Ad) IsReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.destroyed && !a.showing && a.loaded != nil
}

func (a *Ad) Destroy() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.destroyed = true
	a.mu.Unlock()

	a.stopRefresh()
	a.sdk.forget(a.handle)
}

func (a *Ad) Hide() {
	a.mu.Lock()
	if a.destroyed || a.adType != ads.Banner || a.hidden {
		a.mu.Unlock()
		return
	}
	a.hidden = true
	info := a.loaded
	a.mu.Unlock()

	a.sdk.post(func() { a.delegate.OnAdHidden(a.handle, info) })
}

func (a *Ad) StartAutoRefresh() {
	interval := a.sdk.cfg.RefreshInterval

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed || a.adType != ads.Banner || a.refresh != nil || interval <= 0 {
		return
	}
	stop := make(chan struct{})
	a.refresh = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.Load()
			case <-stop:
				return
			}
		}
	}()
}

func (a *Ad) StopAutoRefresh() {
	a.stopRefresh()
}

// Refreshing reports whether auto-refresh is running
func (a *Ad) Refreshing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refresh != nil
}

func (a *Ad) stopRefresh() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.refresh != nil {
		close(a.refresh)
		a.refresh = nil
	}
}

// SimulateClick reports a user click on the current creative
func (a *Ad) SimulateClick() {
	a.mu.Lock()
	info := a.loaded
	a.mu.Unlock()

	a.sdk.post(func() { a.delegate.OnAdClicked(a.handle, info) })
}

// SimulateClose dismisses a full-screen ad. Rewarded ads grant the reward
// before the close is reported.
func (a *Ad) SimulateClose() {
	a.sdk.post(func() {
		a.mu.Lock()
		if !a.showing {
			a.mu.Unlock()
			return
		}
		a.showing = false
		info := a.loaded
		a.loaded = nil
		a.mu.Unlock()

		if a.rewarded != nil {
			a.rewarded.OnUserRewarded(a.handle, info)
		}
		a.delegate.OnAdHidden(a.handle, info)
	})
}

// SimulateExpand reports a banner expanding to full screen
func (a *Ad) SimulateExpand() {
	a.postBanner(func(d native.BannerDelegate, info *ads.AdInfo) { d.OnAdExpanded(a.handle, info) })
}

// SimulateCollapse reports an expanded banner collapsing back
func (a *Ad) SimulateCollapse() {
	a.postBanner(func(d native.BannerDelegate, info *ads.AdInfo) { d.OnAdCollapsed(a.handle, info) })
}

// SimulateOpen reports the banner opening its landing page
func (a *Ad) SimulateOpen() {
	a.postBanner(func(d native.BannerDelegate, info *ads.AdInfo) { d.OnAdOpened(a.handle, info) })
}

func (a *Ad) postBanner(fn func(native.BannerDelegate, *ads.AdInfo)) {
	if a.banner == nil {
		return
	}
	a.mu.Lock()
	info := a.loaded
	a.mu.Unlock()

	a.sdk.post(func() { fn(a.banner, info) })
}
