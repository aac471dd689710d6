// Package metrics exposes Prometheus instrumentation for the topology engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry with every metric registered
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.registry.MustRegister(collectors.NewGoCollector())
	r.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r.initHTTPMetrics()
	r.initTopologyMetrics()
	r.initEngineMetrics()
	return r
}

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordFetch records one snapshot fetch
func (r *Registry) RecordFetch(err error, duration time.Duration, nodes, edges, consecutiveFailures int) {
	if r == nil {
		return
	}
	r.FetchDuration.Observe(duration.Seconds())
	r.ConsecutiveFetchFails.Set(float64(consecutiveFailures))
	if err != nil {
		r.FetchesTotal.WithLabelValues("error").Inc()
		return
	}
	r.FetchesTotal.WithLabelValues("ok").Inc()
	r.SnapshotNodes.Set(float64(nodes))
	r.SnapshotEdges.Set(float64(edges))
	r.SnapshotLastSuccess.SetToCurrentTime()
}

// RecordChangeEvent records a pushed change; action is "override" or "ignored"
func (r *Registry) RecordChangeEvent(action string) {
	if r == nil {
		return
	}
	r.ChangeEventsTotal.WithLabelValues(action).Inc()
}

// SetSubscriptionActive flips the active subscription gauge
func (r *Registry) SetSubscriptionActive(active bool) {
	if r == nil {
		return
	}
	if active {
		r.SubscriptionsActive.Inc()
	} else {
		r.SubscriptionsActive.Dec()
	}
}

// RecordReconcile records one reconciliation pass
func (r *Registry) RecordReconcile(overrides, dropped int) {
	if r == nil {
		return
	}
	r.ReconcileTotal.Inc()
	r.OverridesActive.Set(float64(overrides))
	r.EdgesDropped.Set(float64(dropped))
}

// RecordOverridesCleared counts overrides removed for reason
// ("confirmed", "expired" or "reset")
func (r *Registry) RecordOverridesCleared(reason string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.OverridesCleared.WithLabelValues(reason).Add(float64(n))
}

// RecordRebuild records a full layer rebuild
func (r *Registry) RecordRebuild(markers, lines int) {
	if r == nil {
		return
	}
	r.RenderRebuilds.Inc()
	r.RenderLayers.WithLabelValues("marker").Set(float64(markers))
	r.RenderLayers.WithLabelValues("polyline").Set(float64(lines))
}

// SetMapInstances sets the number of live map instances
func (r *Registry) SetMapInstances(n int) {
	if r == nil {
		return
	}
	r.MapInstancesActive.Set(float64(n))
}

// SetStreamClients sets the number of connected stream clients
func (r *Registry) SetStreamClients(n int) {
	if r == nil {
		return
	}
	r.StreamClients.Set(float64(n))
}
