// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/metric"
)

const (
	DefaultQueueSize        = 1024
	DefaultSubscriberBuffer = 256
)

// DispatcherConfig sizes the delivery queues
type DispatcherConfig struct {
	QueueSize        int
	SubscriberBuffer int
}

// Filter selects the events a subscription receives. Empty fields match all.
type Filter struct {
	Types       []ads.Type
	Identifiers []ads.Identifier
}

func (f Filter) match(ev *ads.Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == ev.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Identifiers) > 0 {
		for _, id := range f.Identifiers {
			if id == ev.Identifier {
				return true
			}
		}
		return false
	}
	return true
}

// Subscription is one consumer of routed events
type Subscription struct {
	ID     string
	filter Filter
	ch     chan ads.Event
	d      *Dispatcher
	once   sync.Once
}

// Events returns the delivery channel. It is closed when the subscription
// or the dispatcher is closed.
func (s *Subscription) Events() <-chan ads.Event {
	return s.ch
}

// Close detaches the subscription; it is safe to call more than once
func (s *Subscription) Close() {
	s.d.unsubscribe(s)
}

// Dispatcher is the single ordered hand-off between native callback
// goroutines and event consumers. Events are delivered by one goroutine in
// the order they were enqueued, which keeps per-identifier order intact.
type Dispatcher struct {
	queue     chan ads.Event
	subBuffer int

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	seq  uint64
	done chan struct{}

	log     log.Logger
	metrics *metric.Metrics
}

// NewDispatcher starts a dispatcher
func NewDispatcher(cfg DispatcherConfig, logger log.Logger, metrics *metric.Metrics) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultSubscriberBuffer
	}

	d := &Dispatcher{
		queue:     make(chan ads.Event, cfg.QueueSize),
		subBuffer: cfg.SubscriberBuffer,
		subs:      make(map[string]*Subscription),
		done:      make(chan struct{}),
		log:       logger,
		metrics:   metrics,
	}

	go d.run()
	return d
}

// Emit enqueues ev without blocking. It returns false when the event was
// dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Emit(ev ads.Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.Dropped(metric.DropClosed)
		return false
	}

	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	select {
	case d.queue <- ev:
		if d.metrics != nil {
			d.metrics.QueueDepth.Set(float64(len(d.queue)))
		}
		return true
	default:
		d.metrics.Dropped(metric.DropQueueFull)
		d.log.Warn("event queue full, dropping event",
			log.Stringer("type", ev.Type),
			log.String("adId", string(ev.Identifier)),
			log.Stringer("kind", ev.Kind),
		)
		return false
	}
}

// Subscribe registers a consumer for events matching filter
func (d *Dispatcher) Subscribe(filter Filter) (*Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ads.ErrClosed
	}

	sub := &Subscription{
		ID:     uuid.NewString(),
		filter: filter,
		ch:     make(chan ads.Event, d.subBuffer),
		d:      d,
	}
	d.subs[sub.ID] = sub
	return sub, nil
}

func (d *Dispatcher) unsubscribe(s *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.subs[s.ID]; !ok {
		return
	}
	delete(d.subs, s.ID)
	s.once.Do(func() { close(s.ch) })
}

// Subscribers returns the number of attached subscriptions
func (d *Dispatcher) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Close stops accepting events, delivers what is queued and closes every
// subscription. It blocks until delivery has finished.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for ev := range d.queue {
		d.seq++
		ev.Seq = d.seq
		d.deliver(ev)
	}

	d.mu.Lock()
	for id, sub := range d.subs {
		delete(d.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
	d.mu.Unlock()
}

func (d *Dispatcher) deliver(ev ads.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.metrics != nil {
		d.metrics.QueueDepth.Set(float64(len(d.queue)))
		d.metrics.DeliveryLatency.Observe(time.Since(ev.Time).Seconds())
	}

	for _, sub := range d.subs {
		if !sub.filter.match(&ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			d.metrics.Dropped(metric.DropSubscriberFull)
			d.log.Debug("subscriber buffer full, dropping event",
				log.String("subscription", sub.ID),
				log.Uint64("seq", ev.Seq),
			)
		}
	}
}
