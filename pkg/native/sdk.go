// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package native describes the contract of the wrapped mobile ad SDK.
//
// The SDK is opaque: it creates ad objects, loads and shows them, and
// reports lifecycle changes through delegate callbacks invoked on
// goroutines it owns. Every ad object carries a Handle that is stable for
// its lifetime and is what callbacks identify themselves by.
package native

import (
	"context"
	"sync/atomic"

	"github.com/luxfi/adbridge/pkg/ads"
)

// Handle identifies one native ad object. Zero is never a valid handle.
type Handle uint64

var handleSeq atomic.Uint64

// NextHandle yields a process-unique, non-zero handle
func NextHandle() Handle {
	return Handle(handleSeq.Add(1))
}

// Ad is a native full-screen or banner ad object
type Ad interface {
	Handle() Handle
	Load()
	Show()
	IsReady() bool
	Destroy()
}

// Banner is a native banner view
type Banner interface {
	Ad
	Hide()
	StartAutoRefresh()
	StopAutoRefresh()
}

// AdDelegate holds the callbacks every ad format shares
type AdDelegate interface {
	OnAdLoaded(h Handle, ad *ads.AdInfo)
	OnAdLoadFailed(h Handle, err *ads.ErrorInfo)
	OnAdDisplayed(h Handle, ad *ads.AdInfo)
	OnAdDisplayFailed(h Handle, err *ads.ErrorInfo)
	OnAdClicked(h Handle, ad *ads.AdInfo)
	OnAdHidden(h Handle, ad *ads.AdInfo)
	OnAdImpression(h Handle, ad *ads.AdInfo)
}

// InterstitialDelegate receives interstitial callbacks
type InterstitialDelegate interface {
	AdDelegate
}

// RewardedDelegate receives rewarded callbacks
type RewardedDelegate interface {
	AdDelegate
	OnUserRewarded(h Handle, ad *ads.AdInfo)
}

// BannerDelegate receives banner callbacks
type BannerDelegate interface {
	AdDelegate
	OnAdExpanded(h Handle, ad *ads.AdInfo)
	OnAdCollapsed(h Handle, ad *ads.AdInfo)
	OnAdOpened(h Handle, ad *ads.AdInfo)
}

// RevenueDelegate receives impression-level revenue
type RevenueDelegate interface {
	OnAdRevenuePaid(h Handle, ad *ads.AdInfo)
}

// Environment selects the SDK initialisation server
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// InitParams configures SDK initialisation
type InitParams struct {
	AppKey      string
	Environment Environment
	HashedUser  string
}

// Privacy is the consent state forwarded to the SDK. Nil fields are unset.
type Privacy struct {
	UserConsent   *bool
	AgeRestricted *bool
	DoNotSell     *bool
	CCPAString    string
	GPPString     string
	GPPSectionIDs []int
}

// SDK is the wrapped native ad SDK
type SDK interface {
	Initialize(ctx context.Context, params InitParams) error
	Version() string
	SetLoggingEnabled(enabled bool)
	SetPrivacy(p Privacy)
	SetHashedUserID(id string)
	SetUserKeyValue(key, value string)
	SetAppKeyValue(key, value string)
	SetBidderKeyValue(bidder, key, value string)
	ClearAllKeyValues()

	CreateInterstitial(placement string, d InterstitialDelegate, r RevenueDelegate) (Ad, error)
	CreateRewarded(placement string, d RewardedDelegate, r RevenueDelegate) (Ad, error)
	CreateBanner(placement string, size ads.BannerSize, d BannerDelegate, r RevenueDelegate) (Banner, error)
}
