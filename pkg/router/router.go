// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package router turns native delegate callbacks into identifier-tagged
// events.
package router

import (
	"time"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/metric"
	"github.com/luxfi/adbridge/pkg/native"
)

// Resolver maps a native handle to the key it was registered under and runs
// fn while the mapping is guaranteed to be live
type Resolver interface {
	WithResolved(h native.Handle, fn func(ads.Key)) error
}

// Emitter accepts routed events
type Emitter interface {
	Emit(ev ads.Event) bool
}

var (
	_ native.InterstitialDelegate = (*Router)(nil)
	_ native.RewardedDelegate     = (*Router)(nil)
	_ native.BannerDelegate       = (*Router)(nil)
	_ native.RevenueDelegate      = (*Router)(nil)
)

// Router is the one delegate attached to every registered ad instance
type Router struct {
	resolver Resolver
	emitter  Emitter
	log      log.Logger
	metrics  *metric.Metrics
}

// New creates a router
func New(resolver Resolver, emitter Emitter, logger log.Logger, metrics *metric.Metrics) *Router {
	return &Router{
		resolver: resolver,
		emitter:  emitter,
		log:      logger,
		metrics:  metrics,
	}
}

func (r *Router) route(h native.Handle, kind ads.EventKind, ad *ads.AdInfo, errInfo *ads.ErrorInfo) {
	now := time.Now()

	err := r.resolver.WithResolved(h, func(key ads.Key) {
		ev := ads.Event{
			Type:       key.Type,
			Identifier: key.Identifier,
			Kind:       kind,
			Ad:         ad,
			Error:      errInfo,
			Time:       now,
		}
		if r.emitter.Emit(ev) && r.metrics != nil {
			r.metrics.EventsEmitted.WithLabelValues(key.Type.String(), kind.String()).Inc()
		}
	})
	if err != nil {
		// Instance was torn down between callback dispatch and delivery
		r.metrics.Dropped(metric.DropUnknownInstance)
		r.log.Debug("dropping callback for unknown instance",
			log.Uint64("handle", uint64(h)),
			log.Stringer("kind", kind),
		)
	}
}

func (r *Router) OnAdLoaded(h native.Handle, ad *ads.AdInfo) {
	r.route(h, ads.Loaded, ad, nil)
}

func (r *Router) OnAdLoadFailed(h native.Handle, err *ads.ErrorInfo) {
	r.route(h, ads.FailedToLoad, nil, err)
}

func (r *Router) OnAdDisplayed(h native.Handle, ad *ads.AdInfo) {
	r.route(h, ads.Shown, ad, nil)
}

func (r *Router) OnAdDisplayFailed(h native.Handle, err *ads.ErrorInfo) {
	r.route(h, ads.FailedToShow, nil, err)
}

func (r *Router) OnAdClicked(h native.Handle, ad *ads.AdInfo) {
	r.route(h, ads.Clicked, ad, nil)
}

func (r *Router) OnAdHidden(h native.Handle, ad *ads.AdInfo) {
	r.route(h, ads.Hidden, ad, nil)
}

func (r *Router) OnAdImpression(h native.Handle, ad *ads.AdInfo) {
	r.route(h, ads.Impression, ad, nil)
}

func (r *Router) OnUserRewarded(h native.Handle, ad *ads.AdInfo) {
	r.route(h, ads.RewardEarned, ad, nil)
}

func (r *Router) OnAdExpanded(h native.Handle, ad *ads.AdInfo) {
	r.route(h, ads.Expanded, ad, nil)
}

func (r *Router) OnAdCollapsed(h native.Handle, ad *ads.AdInfo) {
	r.route(h, ads.Collapsed, ad, nil)
}

func (r *Router) OnAdOpened(h native.Handle, ad *ads.AdInfo) {
	r.route(h, ads.Opened, ad, nil)
}

func (r *Router) OnAdRevenuePaid(h native.Handle, ad *ads.AdInfo) {
	r.route(h, ads.RevenuePaid, ad, nil)
}
