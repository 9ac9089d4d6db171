// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bannerview adapts a host view component to a native banner.
//
// Each mounted View owns at most one native banner at a time. The Manager
// is the only delegate handed to the native SDK; it maps the callback
// handle back to its View through a reverse table, so a callback that
// arrives after the view was destroyed resolves to nothing and is dropped.
package bannerview

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/native"
)

var ErrMissingPlacement = errors.New("banner view requires a placement")

// State is the lifecycle position of a view
type State uint8

const (
	Uninitialized State = iota
	Loading
	Loaded
	FailedToLoad
	Shown
	Hidden
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case FailedToLoad:
		return "failedToLoad"
	case Shown:
		return "shown"
	case Hidden:
		return "hidden"
	case Destroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Props are the properties the host component passes down
type Props struct {
	Placement  string
	Size       ads.BannerSize
	AdID       ads.Identifier
	ShouldLoad bool
}

// Callbacks are the host component's event handlers. Nil handlers are skipped.
type Callbacks struct {
	OnAdLoaded       func(ads.Event)
	OnAdFailedToLoad func(ads.Event)
	OnAdShown        func(ads.Event)
	OnAdFailedToShow func(ads.Event)
	OnAdClicked      func(ads.Event)
	OnAdHidden       func(ads.Event)
	OnAdImpression   func(ads.Event)
	OnAdRevenuePaid  func(ads.Event)
	OnAdExpanded     func(ads.Event)
	OnAdCollapsed    func(ads.Event)
	OnAdOpened       func(ads.Event)
}

func (c *Callbacks) handler(kind ads.EventKind) func(ads.Event) {
	switch kind {
	case ads.Loaded:
		return c.OnAdLoaded
	case ads.FailedToLoad:
		return c.OnAdFailedToLoad
	case ads.Shown:
		return c.OnAdShown
	case ads.FailedToShow:
		return c.OnAdFailedToShow
	case ads.Clicked:
		return c.OnAdClicked
	case ads.Hidden:
		return c.OnAdHidden
	case ads.Impression:
		return c.OnAdImpression
	case ads.RevenuePaid:
		return c.OnAdRevenuePaid
	case ads.Expanded:
		return c.OnAdExpanded
	case ads.Collapsed:
		return c.OnAdCollapsed
	case ads.Opened:
		return c.OnAdOpened
	}
	return nil
}

// View is one mounted banner component
type View struct {
	m         *Manager
	callbacks Callbacks
	log       log.Logger

	mu     sync.Mutex
	props  Props
	state  State
	banner native.Banner
}

// State returns the current lifecycle state
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Props returns the last props applied
func (v *View) Props() Props {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.props
}

// Handle returns the native handle of the current banner, or 0
func (v *View) Handle() native.Handle {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.banner == nil {
		return 0
	}
	return v.banner.Handle()
}

// SetProps applies new props. Changing placement or size releases the
// current native banner so the next load creates a matching one.
// ShouldLoad triggers LoadAd.
func (v *View) SetProps(p Props) error {
	v.mu.Lock()
	if v.state == Destroyed {
		v.mu.Unlock()
		return ads.ErrClosed
	}

	var stale native.Banner
	if v.banner != nil && (p.Placement != v.props.Placement || p.Size != v.props.Size) {
		stale = v.banner
		v.banner = nil
		v.state = Uninitialized
	}
	v.props = p
	v.mu.Unlock()

	if stale != nil {
		v.m.release(stale)
	}
	if p.ShouldLoad {
		return v.LoadAd()
	}
	return nil
}

// LoadAd requests a creative. It is a no-op while a load is in flight
// or after the view has been destroyed.
func (v *View) LoadAd() error {
	v.mu.Lock()
	if v.state == Destroyed || v.state == Loading {
		v.mu.Unlock()
		return nil
	}
	if v.props.Placement == "" {
		v.mu.Unlock()
		return ErrMissingPlacement
	}

	if v.banner == nil {
		banner, err := v.m.acquire(v, v.props)
		if err != nil {
			v.mu.Unlock()
			return err
		}
		v.banner = banner
	}
	banner := v.banner
	v.state = Loading
	v.mu.Unlock()

	banner.Load()
	return nil
}

// Destroy unbinds and releases the native banner. It is idempotent.
func (v *View) Destroy() {
	v.mu.Lock()
	if v.state == Destroyed {
		v.mu.Unlock()
		return
	}
	v.state = Destroyed
	banner := v.banner
	v.banner = nil
	v.mu.Unlock()

	v.m.forget(v)
	if banner != nil {
		v.m.release(banner)
	}
}

// handle advances the state machine and runs the matching host callback.
// Callbacks from a banner other than the current one are dropped.
func (v *View) handle(h native.Handle, kind ads.EventKind, info *ads.AdInfo, errInfo *ads.ErrorInfo) {
	v.mu.Lock()
	if v.state == Destroyed || v.banner == nil || v.banner.Handle() != h {
		v.mu.Unlock()
		v.log.Debug("dropping stale banner callback",
			log.Uint64("handle", uint64(h)),
			log.Stringer("kind", kind),
		)
		return
	}
	switch kind {
	case ads.Loaded:
		v.state = Loaded
	case ads.FailedToLoad:
		v.state = FailedToLoad
	case ads.Shown:
		v.state = Shown
	case ads.Hidden:
		v.state = Hidden
	}
	ev := ads.Event{
		Type:       ads.Banner,
		Identifier: v.props.AdID,
		Kind:       kind,
		Ad:         info,
		Error:      errInfo,
		Time:       time.Now(),
	}
	v.mu.Unlock()

	fn := v.callbacks.handler(kind)
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			v.log.Error("banner view callback panicked",
				log.String("event", ev.Name()),
				log.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn(ev)
}
