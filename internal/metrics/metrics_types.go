package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Topology Metrics
	FetchesTotal          *prometheus.CounterVec
	FetchDuration         prometheus.Histogram
	SnapshotNodes         prometheus.Gauge
	SnapshotEdges         prometheus.Gauge
	SnapshotLastSuccess   prometheus.Gauge
	ConsecutiveFetchFails prometheus.Gauge

	// Change Stream Metrics
	ChangeEventsTotal   *prometheus.CounterVec
	SubscriptionsActive prometheus.Gauge

	// Reconciliation Metrics
	OverridesActive    prometheus.Gauge
	OverridesCleared   *prometheus.CounterVec
	ReconcileTotal     prometheus.Counter
	EdgesDropped       prometheus.Gauge
	RenderRebuilds     prometheus.Counter
	RenderLayers       *prometheus.GaugeVec
	MapInstancesActive prometheus.Gauge

	// Stream Metrics
	StreamClients prometheus.Gauge

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)
