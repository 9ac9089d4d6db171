// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package simulated is an in-process stand-in for the native ad SDK.
//
// It runs a first-price mediation round over OpenRTB bid responses from a
// configurable set of demand partners and reports the outcome through the
// native delegate contracts. Callbacks are delivered on one SDK-owned
// goroutine, in the order they were posted, the way a mobile SDK delivers
// them on its callback queue.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/shopspring/decimal"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/native"
)

const Version = "sim-1.4.0"

var (
	ErrMissingAppKey  = errors.New("app key is required")
	ErrNotInitialized = errors.New("sdk not initialized")
	ErrClosed         = errors.New("sdk closed")
)

// Native error codes reported in ads.ErrorInfo
const (
	CodeNoFill         = "NO_FILL"
	CodeNotReady       = "AD_NOT_READY"
	CodeAlreadyShowing = "AD_ALREADY_SHOWING"
)

// DemandPartner is one simulated bidder
type DemandPartner struct {
	Name     string
	MinCPM   float64
	MaxCPM   float64
	FillRate float64
}

// Config tunes the simulator
type Config struct {
	// Latency delays every callback
	Latency time.Duration
	// AutoDismiss closes full-screen ads this long after they are shown; zero waits for SimulateClose
	AutoDismiss time.Duration
	// RefreshInterval is the banner auto-refresh period
	RefreshInterval time.Duration
	// Floor is the minimum winning CPM
	Floor  float64
	Demand []DemandPartner
	Seed   int64
}

// DefaultConfig returns a simulator with three demand partners
func DefaultConfig() Config {
	return Config{
		Latency:         0,
		RefreshInterval: 30 * time.Second,
		Floor:           0.10,
		Demand: []DemandPartner{
			{Name: "meta", MinCPM: 1.0, MaxCPM: 6.0, FillRate: 0.9},
			{Name: "applovin", MinCPM: 0.5, MaxCPM: 8.0, FillRate: 0.8},
			{Name: "unity", MinCPM: 0.2, MaxCPM: 4.0, FillRate: 0.7},
		},
		Seed: time.Now().UnixNano(),
	}
}

// SDK is the simulated native SDK
type SDK struct {
	cfg Config
	log log.Logger

	mu          sync.Mutex
	rng         *rand.Rand
	initialized bool
	params      native.InitParams
	logging     bool
	privacy     native.Privacy
	hashedUser  string
	userKV      map[string]string
	appKV       map[string]string
	bidderKV    map[string]map[string]string
	ads         map[native.Handle]*Ad

	// qmu guards the callback queue; it is never held while taking mu
	qmu       sync.Mutex
	closed    bool
	callbacks chan func()
	done      chan struct{}
}

var _ native.SDK = (*SDK)(nil)

// New starts a simulated SDK
func New(cfg Config, logger log.Logger) *SDK {
	s := &SDK{
		cfg:       cfg,
		log:       logger,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		userKV:    make(map[string]string),
		appKV:     make(map[string]string),
		bidderKV:  make(map[string]map[string]string),
		ads:       make(map[native.Handle]*Ad),
		callbacks: make(chan func(), 4096),
		done:      make(chan struct{}),
	}

	go s.run()
	return s
}

func (s *SDK) run() {
	defer close(s.done)

	for fn := range s.callbacks {
		if s.cfg.Latency > 0 {
			time.Sleep(s.cfg.Latency)
		}
		fn()
	}
}

// post queues fn on the callback goroutine. Callbacks must not post.
func (s *SDK) post(fn func()) bool {
	s.qmu.Lock()
	defer s.qmu.Unlock()

	if s.closed {
		return false
	}
	s.callbacks <- fn
	return true
}

func (s *SDK) isClosed() bool {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return s.closed
}

// Flush blocks until every callback posted so far has run
func (s *SDK) Flush() {
	ch := make(chan struct{})
	if s.post(func() { close(ch) }) {
		<-ch
	}
}

// Close stops the callback goroutine after draining it
func (s *SDK) Close() {
	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.callbacks)
	s.qmu.Unlock()

	s.mu.Lock()
	live := make([]*Ad, 0, len(s.ads))
	for _, ad := range s.ads {
		live = append(live, ad)
	}
	s.mu.Unlock()

	for _, ad := range live {
		ad.stopRefresh()
	}
	<-s.done
}

func (s *SDK) Initialize(ctx context.Context, params native.InitParams) error {
	if params.AppKey == "" {
		return ErrMissingAppKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.params = params
	s.initialized = true

	s.log.Info("simulated sdk initialized",
		log.String("environment", string(params.Environment)),
		log.Int("demandPartners", len(s.cfg.Demand)),
	)
	return nil
}

func (s *SDK) Version() string {
	return Version
}

func (s *SDK) SetLoggingEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logging = enabled
}

func (s *SDK) SetPrivacy(p native.Privacy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privacy = p
}

func (s *SDK) SetHashedUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashedUser = id
}

func (s *SDK) SetUserKeyValue(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userKV[key] = value
}

func (s *SDK) SetAppKeyValue(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appKV[key] = value
}

func (s *SDK) SetBidderKeyValue(bidder, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, ok := s.bidderKV[bidder]
	if !ok {
		kv = make(map[string]string)
		s.bidderKV[bidder] = kv
	}
	kv[key] = value
}

func (s *SDK) ClearAllKeyValues() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userKV = make(map[string]string)
	s.appKV = make(map[string]string)
	s.bidderKV = make(map[string]map[string]string)
}

// Settings is a snapshot of what the bridge forwarded to the SDK
type Settings struct {
	Params     native.InitParams
	Logging    bool
	Privacy    native.Privacy
	HashedUser string
	UserKV     map[string]string
	AppKV      map[string]string
	BidderKV   map[string]map[string]string
}

// Settings returns a copy of the forwarded configuration
func (s *SDK) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Settings{
		Params:     s.params,
		Logging:    s.logging,
		Privacy:    s.privacy,
		HashedUser: s.hashedUser,
		UserKV:     make(map[string]string, len(s.userKV)),
		AppKV:      make(map[string]string, len(s.appKV)),
		BidderKV:   make(map[string]map[string]string, len(s.bidderKV)),
	}
	for k, v := range s.userKV {
		out.UserKV[k] = v
	}
	for k, v := range s.appKV {
		out.AppKV[k] = v
	}
	for b, kv := range s.bidderKV {
		inner := make(map[string]string, len(kv))
		for k, v := range kv {
			inner[k] = v
		}
		out.BidderKV[b] = inner
	}
	return out
}

// Ad returns the live simulated ad for h
func (s *SDK) Ad(h native.Handle) (*Ad, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ad, ok := s.ads[h]
	return ad, ok
}

// Live returns the number of ads not yet destroyed
func (s *SDK) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ads)
}

func (s *SDK) CreateInterstitial(placement string, d native.InterstitialDelegate, r native.RevenueDelegate) (native.Ad, error) {
	ad, err := s.newAd(ads.Interstitial, placement, "", d, r)
	if err != nil {
		return nil, err
	}
	s.register(ad)
	return ad, nil
}

func (s *SDK) CreateRewarded(placement string, d native.RewardedDelegate, r native.RevenueDelegate) (native.Ad, error) {
	ad, err := s.newAd(ads.Rewarded, placement, "", d, r)
	if err != nil {
		return nil, err
	}
	ad.rewarded = d
	s.register(ad)
	return ad, nil
}

func (s *SDK) CreateBanner(placement string, size ads.BannerSize, d native.BannerDelegate, r native.RevenueDelegate) (native.Banner, error) {
	ad, err := s.newAd(ads.Banner, placement, size, d, r)
	if err != nil {
		return nil, err
	}
	ad.banner = d
	s.register(ad)
	return ad, nil
}

func (s *SDK) newAd(t ads.Type, placement string, size ads.BannerSize, d native.AdDelegate, r native.RevenueDelegate) (*Ad, error) {
	if placement == "" {
		return nil, fmt.Errorf("placement is required")
	}
	if s.isClosed() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	initialized := s.initialized
	s.mu.Unlock()
	if !initialized {
		return nil, ErrNotInitialized
	}

	return &Ad{
		sdk:       s,
		handle:    native.NextHandle(),
		adType:    t,
		placement: placement,
		size:      size,
		delegate:  d,
		revenue:   r,
	}, nil
}

func (s *SDK) register(ad *Ad) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ads[ad.handle] = ad
}

func (s *SDK) forget(h native.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ads, h)
}

// auction runs one mediation round for ad and returns the winning creative
func (s *SDK) auction(ad *Ad) (*ads.AdInfo, *ads.ErrorInfo) {
	req := buildBidRequest(ad, s.cfg.Floor)

	s.mu.Lock()
	responses := make([]*openrtb2.BidResponse, 0, len(s.cfg.Demand))
	for _, partner := range s.cfg.Demand {
		if s.rng.Float64() >= partner.FillRate {
			continue
		}
		price := partner.MinCPM
		if partner.MaxCPM > partner.MinCPM {
			price += s.rng.Float64() * (partner.MaxCPM - partner.MinCPM)
		}
		responses = append(responses, bidResponse(req, partner.Name, price))
	}
	s.mu.Unlock()

	seat, bid := selectWinner(req, responses)
	if bid == nil {
		return nil, &ads.ErrorInfo{Code: CodeNoFill, Message: "no fill for placement " + ad.placement}
	}

	return &ads.AdInfo{
		PlacementName:       ad.placement,
		PlacementID:         req.Imp[0].TagID,
		Bidder:              seat,
		ExternalPlacementID: bid.CrID,
		Revenue:             decimal.NewFromFloat(bid.Price).Div(decimal.NewFromInt(1000)).Round(8),
	}, nil
}

func buildBidRequest(ad *Ad, floor float64) *openrtb2.BidRequest {
	imp := openrtb2.Imp{
		ID:          "1",
		TagID:       fmt.Sprintf("%s-%s", ad.adType, ad.placement),
		BidFloor:    floor,
		BidFloorCur: "USD",
	}

	switch ad.adType {
	case ads.Banner:
		w, h := bannerDimensions(ad.size)
		imp.Banner = &openrtb2.Banner{W: &w, H: &h}
	case ads.Rewarded:
		imp.Instl = 1
		imp.Rwdd = 1
		imp.Video = &openrtb2.Video{MIMEs: []string{"video/mp4"}}
	default:
		imp.Instl = 1
		imp.Video = &openrtb2.Video{MIMEs: []string{"video/mp4"}}
	}

	return &openrtb2.BidRequest{
		ID:   uuid.NewString(),
		Imp:  []openrtb2.Imp{imp},
		Cur:  []string{"USD"},
		TMax: 500,
	}
}

func bannerDimensions(size ads.BannerSize) (int64, int64) {
	switch size {
	case ads.SizeMREC:
		return 300, 250
	case ads.SizeLeaderboard:
		return 728, 90
	}
	return 320, 50
}

func bidResponse(req *openrtb2.BidRequest, seat string, price float64) *openrtb2.BidResponse {
	return &openrtb2.BidResponse{
		ID:  req.ID,
		Cur: "USD",
		SeatBid: []openrtb2.SeatBid{{
			Seat: seat,
			Bid: []openrtb2.Bid{{
				ID:    uuid.NewString(),
				ImpID: req.Imp[0].ID,
				Price: price,
				CrID:  fmt.Sprintf("%s-%s", seat, req.Imp[0].TagID),
			}},
		}},
	}
}

// selectWinner picks the highest bid at or above the impression floor
func selectWinner(req *openrtb2.BidRequest, responses []*openrtb2.BidResponse) (string, *openrtb2.Bid) {
	floor := req.Imp[0].BidFloor

	var (
		seat string
		best *openrtb2.Bid
	)
	for _, resp := range responses {
		for i := range resp.SeatBid {
			sb := &resp.SeatBid[i]
			for j := range sb.Bid {
				bid := &sb.Bid[j]
				if bid.ImpID != req.Imp[0].ID || bid.Price < floor {
					continue
				}
				if best == nil || bid.Price > best.Price {
					seat, best = sb.Seat, bid
				}
			}
		}
	}
	return seat, best
}
