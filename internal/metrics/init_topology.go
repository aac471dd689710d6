package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTopologyMetrics() {
	r.FetchesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrotwin_topology_fetches_total",
			Help: "Total number of topology snapshot fetches by result",
		},
		[]string{"result"},
	)

	r.FetchDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydrotwin_topology_fetch_duration_seconds",
			Help:    "Topology snapshot fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	r.SnapshotNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydrotwin_snapshot_nodes",
			Help: "Number of nodes in the latest snapshot",
		},
	)

	r.SnapshotEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydrotwin_snapshot_edges",
			Help: "Number of edges in the latest snapshot",
		},
	)

	r.SnapshotLastSuccess = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydrotwin_snapshot_last_success_timestamp_seconds",
			Help: "Unix time of the last successful snapshot fetch",
		},
	)

	r.ConsecutiveFetchFails = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydrotwin_topology_consecutive_fetch_failures",
			Help: "Number of fetch failures since the last success",
		},
	)
}
