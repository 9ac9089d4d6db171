// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"errors"
	"fmt"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/native"
	"github.com/luxfi/adbridge/pkg/registry"
)

// Create registers a new ad of type t under id
func (m *Module) Create(t ads.Type, id ads.Identifier, placement string, size ads.BannerSize) (err error) {
	defer func() { m.metrics.Operation(t.String(), "create", err) }()

	if err := m.requireReady(); err != nil {
		return err
	}
	if placement == "" {
		return ErrMissingPlacement
	}
	if t != ads.Banner {
		size = ""
	}

	if _, err := m.reg.Create(t, id, registry.Config{Placement: placement, Size: size}); err != nil {
		return err
	}
	m.observeLive(t)

	m.log.Debug("ad created",
		log.Stringer("type", t),
		log.String("adId", string(id)),
		log.String("placement", placement),
	)
	return nil
}

func (m *Module) CreateInterstitial(id ads.Identifier, placement string) error {
	return m.Create(ads.Interstitial, id, placement, "")
}

func (m *Module) CreateRewarded(id ads.Identifier, placement string) error {
	return m.Create(ads.Rewarded, id, placement, "")
}

func (m *Module) CreateBanner(id ads.Identifier, placement string, size ads.BannerSize) error {
	return m.Create(ads.Banner, id, placement, size)
}

// lookup returns the live instance for (t, id) after the readiness check
func (m *Module) lookup(t ads.Type, id ads.Identifier) (native.Ad, error) {
	if err := m.requireReady(); err != nil {
		return nil, err
	}
	return m.reg.Get(t, id)
}

// Load starts a load. The outcome arrives as a Loaded or FailedToLoad event.
func (m *Module) Load(t ads.Type, id ads.Identifier) (err error) {
	defer func() { m.metrics.Operation(t.String(), "load", err) }()

	ad, err := m.lookup(t, id)
	if err != nil {
		return err
	}
	ad.Load()
	return nil
}

// Show presents a loaded ad. The outcome arrives as a Shown or FailedToShow event.
func (m *Module) Show(t ads.Type, id ads.Identifier) (err error) {
	defer func() { m.metrics.Operation(t.String(), "show", err) }()

	ad, err := m.lookup(t, id)
	if err != nil {
		return err
	}
	ad.Show()
	return nil
}

// IsReady reports whether (t, id) can be shown now. Unknown ads are not ready.
func (m *Module) IsReady(t ads.Type, id ads.Identifier) bool {
	ad, err := m.lookup(t, id)
	if err != nil {
		return false
	}
	return ad.IsReady()
}

func (m *Module) LoadInterstitial(id ads.Identifier) error { return m.Load(ads.Interstitial, id) }
func (m *Module) ShowInterstitial(id ads.Identifier) error { return m.Show(ads.Interstitial, id) }
func (m *Module) IsInterstitialReady(id ads.Identifier) bool {
	return m.IsReady(ads.Interstitial, id)
}

func (m *Module) LoadRewarded(id ads.Identifier) error { return m.Load(ads.Rewarded, id) }
func (m *Module) ShowRewarded(id ads.Identifier) error { return m.Show(ads.Rewarded, id) }
func (m *Module) IsRewardedReady(id ads.Identifier) bool {
	return m.IsReady(ads.Rewarded, id)
}

func (m *Module) LoadBanner(id ads.Identifier) error { return m.Load(ads.Banner, id) }
func (m *Module) ShowBanner(id ads.Identifier) error { return m.Show(ads.Banner, id) }

func (m *Module) banner(id ads.Identifier) (native.Banner, error) {
	ad, err := m.lookup(ads.Banner, id)
	if err != nil {
		return nil, err
	}
	b, ok := ad.(native.Banner)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a banner", ads.ErrInvalidAdType, id)
	}
	return b, nil
}

func (m *Module) HideBanner(id ads.Identifier) (err error) {
	defer func() { m.metrics.Operation(ads.Banner.String(), "hide", err) }()

	b, err := m.banner(id)
	if err != nil {
		return err
	}
	b.Hide()
	return nil
}

func (m *Module) StartAutoRefresh(id ads.Identifier) error {
	b, err := m.banner(id)
	if err != nil {
		return err
	}
	b.StartAutoRefresh()
	return nil
}

func (m *Module) StopAutoRefresh(id ads.Identifier) error {
	b, err := m.banner(id)
	if err != nil {
		return err
	}
	b.StopAutoRefresh()
	return nil
}

// DestroyAd destroys the ad registered under id whatever its type.
// Destroying an unknown identifier is a no-op.
func (m *Module) DestroyAd(id ads.Identifier) error {
	t, _, err := m.reg.Find(id)
	if errors.Is(err, ads.ErrNotFound) {
		m.log.Debug("destroy of unknown ad ignored", log.String("adId", string(id)))
		return nil
	}
	if err != nil {
		return err
	}
	return m.Destroy(t, id)
}

// Destroy removes (t, id) and releases the native instance. Callbacks
// still in flight for it are dropped once this returns.
func (m *Module) Destroy(t ads.Type, id ads.Identifier) (err error) {
	defer func() { m.metrics.Operation(t.String(), "destroy", err) }()

	if !t.Valid() {
		return ads.ErrInvalidAdType
	}
	ad := m.reg.Remove(t, id)
	if ad == nil {
		return nil
	}
	release(ad)
	m.observeLive(t)

	m.log.Debug("ad destroyed", log.Stringer("type", t), log.String("adId", string(id)))
	return nil
}

func (m *Module) DestroyInterstitial(id ads.Identifier) error {
	return m.Destroy(ads.Interstitial, id)
}

func (m *Module) DestroyRewarded(id ads.Identifier) error {
	return m.Destroy(ads.Rewarded, id)
}

func (m *Module) DestroyBanner(id ads.Identifier) error {
	return m.Destroy(ads.Banner, id)
}
