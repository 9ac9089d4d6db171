// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bannerview

import (
	"fmt"
	"sync"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/native"
	"github.com/luxfi/adbridge/pkg/registry"
)

// BannerCreator is the part of the native SDK the manager needs
type BannerCreator interface {
	CreateBanner(placement string, size ads.BannerSize, d native.BannerDelegate, r native.RevenueDelegate) (native.Banner, error)
}

// Manager mounts banner views and routes native banner callbacks to them
type Manager struct {
	sdk   BannerCreator
	views *registry.ReverseTable[*View]
	log   log.Logger

	mu      sync.Mutex
	mounted map[*View]struct{}
	closed  bool
}

var (
	_ native.BannerDelegate  = (*Manager)(nil)
	_ native.RevenueDelegate = (*Manager)(nil)
)

// NewManager creates a view manager on top of sdk
func NewManager(sdk BannerCreator, logger log.Logger) *Manager {
	return &Manager{
		sdk:   sdk,
		views:   registry.NewReverseTable[*View](),
		log:     logger,
		mounted: make(map[*View]struct{}),
	}
}

// Mount creates a view for props. The view loads immediately when
// props.ShouldLoad is set. Mount fails with ads.ErrClosed after Close.
func (m *Manager) Mount(props Props, callbacks Callbacks) (*View, error) {
	v := &View{
		m:         m,
		callbacks: callbacks,
		log:       m.log.With(log.String("adId", string(props.AdID))),
		props:     props,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ads.ErrClosed
	}
	m.mounted[v] = struct{}{}
	m.mu.Unlock()

	if props.ShouldLoad {
		if err := v.LoadAd(); err != nil {
			v.Destroy()
			return nil, err
		}
	}
	return v, nil
}

// Unmount destroys v
func (m *Manager) Unmount(v *View) {
	v.Destroy()
}

// Mounted returns the number of views not yet destroyed
func (m *Manager) Mounted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mounted)
}

// Close destroys every mounted view. Later mounts fail with ads.ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	views := make([]*View, 0, len(m.mounted))
	for v := range m.mounted {
		views = append(views, v)
	}
	m.mu.Unlock()

	for _, v := range views {
		v.Destroy()
	}
	if len(views) > 0 {
		m.log.Debug("banner views destroyed", log.Int("views", len(views)))
	}
}

func (m *Manager) forget(v *View) {
	m.mu.Lock()
	delete(m.mounted, v)
	m.mu.Unlock()
}

// Bound returns the number of views holding a native banner
func (m *Manager) Bound() int {
	return m.views.Len()
}

// acquire is called with v.mu held
func (m *Manager) acquire(v *View, p Props) (native.Banner, error) {
	size := p.Size
	if size == "" {
		size = ads.SizeBanner
	}
	banner, err := m.sdk.CreateBanner(p.Placement, size, m, m)
	if err != nil {
		return nil, fmt.Errorf("create banner for %q: %w", p.Placement, err)
	}
	if err := m.views.Bind(banner.Handle(), v); err != nil {
		banner.Destroy()
		return nil, fmt.Errorf("bind banner handle: %w", err)
	}
	return banner, nil
}

func (m *Manager) release(b native.Banner) {
	m.views.Unbind(b.Handle())
	b.StopAutoRefresh()
	b.Destroy()
}

func (m *Manager) dispatch(h native.Handle, kind ads.EventKind, info *ads.AdInfo, errInfo *ads.ErrorInfo) {
	v, err := m.views.Resolve(h)
	if err != nil {
		m.log.Debug("dropping banner callback",
			log.Uint64("handle", uint64(h)),
			log.Stringer("kind", kind),
		)
		return
	}
	v.handle(h, kind, info, errInfo)
}

func (m *Manager) OnAdLoaded(h native.Handle, ad *ads.AdInfo) {
	m.dispatch(h, ads.Loaded, ad, nil)
}

func (m *Manager) OnAdLoadFailed(h native.Handle, err *ads.ErrorInfo) {
	m.dispatch(h, ads.FailedToLoad, nil, err)
}

func (m *Manager) OnAdDisplayed(h native.Handle, ad *ads.AdInfo) {
	m.dispatch(h, ads.Shown, ad, nil)
}

func (m *Manager) OnAdDisplayFailed(h native.Handle, err *ads.ErrorInfo) {
	m.dispatch(h, ads.FailedToShow, nil, err)
}

func (m *Manager) OnAdClicked(h native.Handle, ad *ads.AdInfo) {
	m.dispatch(h, ads.Clicked, ad, nil)
}

func (m *Manager) OnAdHidden(h native.Handle, ad *ads.AdInfo) {
	m.dispatch(h, ads.Hidden, ad, nil)
}

func (m *Manager) OnAdImpression(h native.Handle, ad *ads.AdInfo) {
	m.dispatch(h, ads.Impression, ad, nil)
}

func (m *Manager) OnAdExpanded(h native.Handle, ad *ads.AdInfo) {
	m.dispatch(h, ads.Expanded, ad, nil)
}

func (m *Manager) OnAdCollapsed(h native.Handle, ad *ads.AdInfo) {
	m.dispatch(h, ads.Collapsed, ad, nil)
}

func (m *Manager) OnAdOpened(h native.Handle, ad *ads.AdInfo) {
	m.dispatch(h, ads.Opened, ad, nil)
}

func (m *Manager) OnAdRevenuePaid(h native.Handle, ad *ads.AdInfo) {
	m.dispatch(h, ads.RevenuePaid, ad, nil)
}
