package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEngineMetrics() {
	r.ChangeEventsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrotwin_change_events_total",
			Help: "Pushed edge change events by action taken",
		},
		[]string{"action"},
	)

	r.SubscriptionsActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydrotwin_change_subscriptions_active",
			Help: "Number of open change stream subscriptions",
		},
	)

	r.OverridesActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydrotwin_overrides_active",
			Help: "Number of unconfirmed isolation overrides",
		},
	)

	r.OverridesCleared = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrotwin_overrides_cleared_total",
			Help: "Overrides removed from the ledger by reason",
		},
		[]string{"reason"},
	)

	r.ReconcileTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydrotwin_reconcile_passes_total",
			Help: "Number of reconciliation passes",
		},
	)

	r.EdgesDropped = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydrotwin_edges_dropped",
			Help: "Edges excluded from the last pass because an endpoint did not resolve",
		},
	)

	r.RenderRebuilds = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydrotwin_render_rebuilds_total",
			Help: "Number of full marker and line layer rebuilds",
		},
	)

	r.RenderLayers = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hydrotwin_render_layers",
			Help: "Layers currently drawn by kind",
		},
		[]string{"kind"},
	)

	r.MapInstancesActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydrotwin_map_instances_active",
			Help: "Number of live map instances",
		},
	)

	r.StreamClients = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydrotwin_stream_clients",
			Help: "Number of connected draw stream clients",
		},
	)
}
