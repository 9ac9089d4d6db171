// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/metric"
)

func TestFilterMatch(t *testing.T) {
	ev := &ads.Event{Type: ads.Rewarded, Identifier: "rw1"}

	require.True(t, Filter{}.match(ev))
	require.True(t, Filter{Types: []ads.Type{ads.Banner, ads.Rewarded}}.match(ev))
	require.False(t, Filter{Types: []ads.Type{ads.Banner}}.match(ev))
	require.True(t, Filter{Identifiers: []ads.Identifier{"rw1"}}.match(ev))
	require.False(t, Filter{Types: []ads.Type{ads.Rewarded}, Identifiers: []ads.Identifier{"rw2"}}.match(ev))
}

func TestDispatcherSlowSubscriberDrops(t *testing.T) {
	require := require.New(t)

	metrics, err := metric.NewMetrics()
	require.NoError(err)
	d := NewDispatcher(DispatcherConfig{SubscriberBuffer: 1}, log.NoOp(), metrics)

	slow, err := d.Subscribe(Filter{})
	require.NoError(err)

	for i := 0; i < 3; i++ {
		require.True(d.Emit(ads.Event{Type: ads.Banner, Identifier: "b1", Kind: ads.Impression}))
	}
	d.Close()

	var got []ads.Event
	for ev := range slow.Events() {
		got = append(got, ev)
	}
	require.Len(got, 1)
	require.Equal(uint64(1), got[0].Seq)
	require.False(got[0].Time.IsZero())
	require.Equal(2.0, testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(metric.DropSubscriberFull)))
}

func TestDispatcherClose(t *testing.T) {
	require := require.New(t)
	d := NewDispatcher(DispatcherConfig{}, log.NoOp(), nil)

	sub, err := d.Subscribe(Filter{})
	require.NoError(err)
	require.Equal(1, d.Subscribers())

	d.Close()
	d.Close()

	_, ok := <-sub.Events()
	require.False(ok)
	sub.Close()

	require.False(d.Emit(ads.Event{Type: ads.Banner, Identifier: "b1", Kind: ads.Loaded}))

	_, err = d.Subscribe(Filter{})
	require.ErrorIs(err, ads.ErrClosed)
}

func TestSubscriptionClose(t *testing.T) {
	require := require.New(t)
	d := NewDispatcher(DispatcherConfig{}, log.NoOp(), nil)
	defer d.Close()

	sub, err := d.Subscribe(Filter{})
	require.NoError(err)

	sub.Close()
	sub.Close()
	require.Equal(0, d.Subscribers())

	_, ok := <-sub.Events()
	require.False(ok)
	require.True(d.Emit(ads.Event{Type: ads.Banner, Identifier: "b1", Kind: ads.Loaded}))
}

func TestDispatcherQueueFullDrops(t *testing.T) {
	require := require.New(t)

	metrics, err := metric.NewMetrics()
	require.NoError(err)

	// Delivery is not started, so nothing drains the queue
	d := &Dispatcher{
		queue:     make(chan ads.Event, 2),
		subBuffer: 1,
		subs:      make(map[string]*Subscription),
		done:      make(chan struct{}),
		log:       log.NoOp(),
		metrics:   metrics,
	}

	ev := ads.Event{Type: ads.Interstitial, Identifier: "int1", Kind: ads.Clicked}
	require.True(d.Emit(ev))
	require.True(d.Emit(ev))
	require.False(d.Emit(ev))
	require.False(d.Emit(ev))

	require.Equal(2.0, testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(metric.DropQueueFull)))
	require.Equal(2.0, testutil.ToFloat64(metrics.QueueDepth))
	require.Zero(testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(metric.DropClosed)))
}

func TestDispatcherEmitAfterCloseDrops(t *testing.T) {
	require := require.New(t)

	metrics, err := metric.NewMetrics()
	require.NoError(err)
	d := NewDispatcher(DispatcherConfig{}, log.NoOp(), metrics)

	require.True(d.Emit(ads.Event{Type: ads.Rewarded, Identifier: "rw1", Kind: ads.Loaded}))
	d.Close()

	require.False(d.Emit(ads.Event{Type: ads.Rewarded, Identifier: "rw1", Kind: ads.Shown}))
	require.False(d.Emit(ads.Event{Type: ads.Rewarded, Identifier: "rw1", Kind: ads.Hidden}))

	require.Equal(2.0, testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(metric.DropClosed)))
	require.Zero(testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(metric.DropQueueFull)))
}
