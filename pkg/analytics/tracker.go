// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package analytics aggregates routed ad events into per-placement stats
package analytics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/router"
)

// PlacementResolver returns the placement an instance was created for
type PlacementResolver func(key ads.Key) (string, bool)

// Tracker tracks event totals, per-placement stats and a time series
type Tracker struct {
	// Real-time counters
	TotalEvents      atomic.Uint64
	TotalImpressions atomic.Uint64
	TotalClicks      atomic.Uint64
	TotalRewards     atomic.Uint64

	resolve PlacementResolver
	log     log.Logger

	mu         sync.RWMutex
	placements map[string]*PlacementStats
	revenue    decimal.Decimal

	TimeSeries *TimeSeriesData
}

// PlacementStats tracks individual placement performance
type PlacementStats struct {
	Placement    string          `json:"placement"`
	Type         ads.Type        `json:"type"`
	Loads        uint64          `json:"loads"`
	LoadFailures uint64          `json:"loadFailures"`
	ShowFailures uint64          `json:"showFailures"`
	Impressions  uint64          `json:"impressions"`
	Clicks       uint64          `json:"clicks"`
	Rewards      uint64          `json:"rewards"`
	Revenue      decimal.Decimal `json:"revenue"`
	FillRate     float64         `json:"fillRate"`
	CTR          float64         `json:"ctr"`
	ECPM         decimal.Decimal `json:"ecpm"`
	LastBidder   string          `json:"lastBidder,omitempty"`
}

// DefaultRetention is how far back from the newest bucket the series reaches
const DefaultRetention = 24 * time.Hour

// TimeSeriesData stores time-bucketed metrics. Buckets older than Retention
// relative to the newest bucket are evicted.
type TimeSeriesData struct {
	Buckets    map[int64]*MetricBucket
	BucketSize time.Duration
	Retention  time.Duration
	newest     int64
	mu         sync.RWMutex
}

// MetricBucket represents metrics for a time period
type MetricBucket struct {
	Timestamp   time.Time       `json:"timestamp"`
	Events      uint64          `json:"events"`
	Impressions uint64          `json:"impressions"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// Snapshot is a point-in-time copy of the tracker
type Snapshot struct {
	TotalEvents      uint64           `json:"totalEvents"`
	TotalImpressions uint64           `json:"totalImpressions"`
	TotalClicks      uint64           `json:"totalClicks"`
	TotalRewards     uint64           `json:"totalRewards"`
	TotalRevenue     decimal.Decimal  `json:"totalRevenue"`
	Placements       []PlacementStats `json:"placements"`
	Series           []MetricBucket   `json:"series"`
}

// NewTracker creates a tracker. resolve may be nil; events whose placement
// cannot be determined are grouped under their identifier.
func NewTracker(resolve PlacementResolver, logger log.Logger) *Tracker {
	return &Tracker{
		resolve:    resolve,
		log:        logger,
		placements: make(map[string]*PlacementStats),
		revenue:    decimal.Zero,
		TimeSeries: &TimeSeriesData{
			Buckets:    make(map[int64]*MetricBucket),
			BucketSize: 1 * time.Minute,
			Retention:  DefaultRetention,
		},
	}
}

// Run consumes sub until it closes or ctx is done
func (a *Tracker) Run(ctx context.Context, sub *router.Subscription) {
	defer sub.Close()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			a.Track(ev)
		case <-ctx.Done():
			return
		}
	}
}

// Track folds one event into the stats
func (a *Tracker) Track(ev ads.Event) {
	a.TotalEvents.Add(1)

	placement := a.placementOf(&ev)
	revenue := decimal.Zero

	a.mu.Lock()
	stats, ok := a.placements[placement]
	if !ok {
		stats = &PlacementStats{Placement: placement, Type: ev.Type, Revenue: decimal.Zero}
		a.placements[placement] = stats
	}

	switch ev.Kind {
	case ads.Loaded:
		stats.Loads++
		if ev.Ad != nil {
			stats.LastBidder = ev.Ad.Bidder
		}
	case ads.FailedToLoad:
		stats.LoadFailures++
	case ads.FailedToShow:
		stats.ShowFailures++
	case ads.Impression:
		stats.Impressions++
		a.TotalImpressions.Add(1)
	case ads.Clicked:
		stats.Clicks++
		a.TotalClicks.Add(1)
	case ads.RewardEarned:
		stats.Rewards++
		a.TotalRewards.Add(1)
	case ads.RevenuePaid:
		if ev.Ad != nil {
			revenue = ev.Ad.Revenue
			stats.Revenue = stats.Revenue.Add(revenue)
			a.revenue = a.revenue.Add(revenue)
		}
	}
	a.mu.Unlock()

	a.updateTimeSeries(&ev, revenue)
}

func (a *Tracker) placementOf(ev *ads.Event) string {
	if ev.Ad != nil && ev.Ad.PlacementName != "" {
		return ev.Ad.PlacementName
	}
	key := ads.Key{Type: ev.Type, Identifier: ev.Identifier}
	if a.resolve != nil {
		if p, ok := a.resolve(key); ok {
			return p
		}
	}
	return key.String()
}

func (a *Tracker) updateTimeSeries(ev *ads.Event, revenue decimal.Decimal) {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	size := int64(a.TimeSeries.BucketSize.Seconds())
	bucket := ts.Unix() / size

	series := a.TimeSeries
	series.mu.Lock()
	defer series.mu.Unlock()

	keep := int64(series.Retention.Seconds()) / size
	if keep > 0 && bucket < series.newest-keep {
		return
	}

	b, ok := series.Buckets[bucket]
	if !ok {
		b = &MetricBucket{
			Timestamp: time.Unix(bucket*size, 0).UTC(),
			Revenue:   decimal.Zero,
		}
		series.Buckets[bucket] = b
		if bucket > series.newest {
			series.newest = bucket
			if keep > 0 {
				series.evictBefore(bucket - keep)
			}
		}
	}

	b.Events++
	if ev.Kind == ads.Impression {
		b.Impressions++
	}
	b.Revenue = b.Revenue.Add(revenue)
}

// evictBefore is called with mu held
func (ts *TimeSeriesData) evictBefore(bucket int64) {
	for k := range ts.Buckets {
		if k < bucket {
			delete(ts.Buckets, k)
		}
	}
}

// Snapshot returns a copy of the current stats with derived rates filled in
func (a *Tracker) Snapshot() Snapshot {
	out := Snapshot{
		TotalEvents:      a.TotalEvents.Load(),
		TotalImpressions: a.TotalImpressions.Load(),
		TotalClicks:      a.TotalClicks.Load(),
		TotalRewards:     a.TotalRewards.Load(),
	}

	a.mu.RLock()
	out.TotalRevenue = a.revenue
	out.Placements = make([]PlacementStats, 0, len(a.placements))
	for _, p := range a.placements {
		s := *p
		if attempts := s.Loads + s.LoadFailures; attempts > 0 {
			s.FillRate = float64(s.Loads) / float64(attempts)
		}
		if s.Impressions > 0 {
			s.CTR = float64(s.Clicks) / float64(s.Impressions)
			s.ECPM = s.Revenue.Div(decimal.NewFromInt(int64(s.Impressions))).Mul(decimal.NewFromInt(1000))
		}
		out.Placements = append(out.Placements, s)
	}
	a.mu.RUnlock()

	sort.Slice(out.Placements, func(i, j int) bool {
		return out.Placements[i].Placement < out.Placements[j].Placement
	})

	a.TimeSeries.mu.RLock()
	out.Series = make([]MetricBucket, 0, len(a.TimeSeries.Buckets))
	for _, b := range a.TimeSeries.Buckets {
		out.Series = append(out.Series, *b)
	}
	a.TimeSeries.mu.RUnlock()

	sort.Slice(out.Series, func(i, j int) bool {
		return out.Series[i].Timestamp.Before(out.Series[j].Timestamp)
	})
	return out
}

// Placement returns the stats of one placement
func (a *Tracker) Placement(name string) (PlacementStats, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.placements[name]
	if !ok {
		return PlacementStats{}, false
	}
	return *p, true
}
