// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adbridge"

// Drop reasons recorded on EventsDropped
const (
	DropUnknownInstance = "unknown_instance"
	DropQueueFull       = "queue_full"
	DropSubscriberFull  = "subscriber_full"
	DropClosed          = "closed"
)

// Metrics holds all bridge metrics
type Metrics struct {
	registry *prometheus.Registry

	// Routing metrics
	EventsEmitted *prometheus.CounterVec
	EventsDropped *prometheus.CounterVec
	QueueDepth    prometheus.Gauge

	// Registry metrics
	LiveInstances *prometheus.GaugeVec
	AdOperations  *prometheus.CounterVec

	// API metrics
	RequestsProcessed *prometheus.CounterVec
	Subscribers       prometheus.Gauge

	// Performance metrics
	DeliveryLatency prometheus.Histogram
}

// NewMetrics creates a metrics instance on its own registry
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry registers all collectors on reg
func NewMetricsWithRegistry(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: reg}

	m.EventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "events_emitted_total",
		Help:      "Total number of routed ad events by ad type and kind",
	}, []string{"type", "kind"})

	m.EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "events_dropped_total",
		Help:      "Total number of ad events dropped by reason",
	}, []string{"reason"})

	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "queue_depth",
		Help:      "Events waiting for delivery",
	})

	m.LiveInstances = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "live_instances",
		Help:      "Number of registered ad instances by type",
	}, []string{"type"})

	m.AdOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "operations_total",
		Help:      "Total number of ad operations by type, operation and status",
	}, []string{"type", "op", "status"})

	m.RequestsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_processed_total",
		Help:      "Total number of API requests processed",
	}, []string{"method", "status"})

	m.Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "event_subscribers",
		Help:      "Number of connected event stream subscribers",
	})

	m.DeliveryLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "delivery_latency_seconds",
		Help:      "Time from native callback to subscriber delivery",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	for _, c := range []prometheus.Collector{
		m.EventsEmitted,
		m.EventsDropped,
		m.QueueDepth,
		m.LiveInstances,
		m.AdOperations,
		m.RequestsProcessed,
		m.Subscribers,
		m.DeliveryLatency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Dropped records one dropped event
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}

// Operation records the outcome of one registry operation
func (m *Metrics) Operation(adType, op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AdOperations.WithLabelValues(adType, op, status).Inc()
}

// GetGatherer returns the prometheus gatherer for metrics export
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	if m.registry != nil {
		return m.registry
	}
	return prometheus.DefaultGatherer
}

// GetRegisterer returns the prometheus registerer
func (m *Metrics) GetRegisterer() prometheus.Registerer {
	if m.registry != nil {
		return m.registry
	}
	return prometheus.DefaultRegisterer
}
