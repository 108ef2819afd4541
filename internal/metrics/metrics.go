// Package metrics exposes Prometheus metrics for the editor: HTTP traffic,
// topology size, topology events and discovery outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"netlayers/internal/discovery"
	"netlayers/internal/domain"
	"netlayers/internal/topology"
)

const namespace = "netlayers"

// Registry holds all metrics for the application
type Registry struct {
	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Topology
	EventsTotal *prometheus.CounterVec

	// Discovery
	DiscoverySessionsTotal *prometheus.CounterVec
	DiscoveryRecordsTotal  *prometheus.CounterVec

	// Layout
	LayoutDuration *prometheus.HistogramVec

	// Project files
	ProjectSavesTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every metric initialized, plus the Go
// runtime and process collectors
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{registry: reg}
	r.initHTTPMetrics()
	r.initTopologyMetrics()
	return r
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	r.HTTPRequestsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
}

func (r *Registry) initTopologyMetrics() {
	r.EventsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topology_events_total",
			Help:      "Events published on the topology bus",
		},
		[]string{"type"},
	)

	r.DiscoverySessionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_sessions_total",
			Help:      "Finished discovery sessions by final state",
		},
		[]string{"state"},
	)

	r.DiscoveryRecordsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_records_total",
			Help:      "Discovered records merged, by outcome",
		},
		[]string{"outcome"},
	)

	r.LayoutDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_duration_seconds",
			Help:      "Time spent computing and applying a layout",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"layer", "algorithm"},
	)

	r.ProjectSavesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "project_saves_total",
			Help:      "Project files written",
		},
	)
}

// RegisterStore adds gauges reading the store size at scrape time
func (r *Registry) RegisterStore(store *topology.Store) {
	promauto.With(r.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topology_nodes",
			Help:      "Nodes in the topology",
		},
		func() float64 { return float64(store.NodeCount()) },
	)
	for _, layer := range domain.AllLayers {
		promauto.With(r.registry).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "topology_connections",
				Help:        "Connections in one layer",
				ConstLabels: prometheus.Labels{"layer": string(layer)},
			},
			func() float64 { return float64(store.ConnectionCount(layer)) },
		)
	}
}

// Attach counts events from bus and returns a func detaching again. The
// listener never calls back into the store.
func (r *Registry) Attach(bus *topology.EventBus) func() {
	return bus.Listen(r.observe)
}

func (r *Registry) observe(e topology.Event) {
	r.EventsTotal.WithLabelValues(string(e.Type)).Inc()

	switch e.Type {
	case topology.EventDiscoveryProgress:
		if p, ok := e.Payload.(map[string]any); ok {
			if outcome, ok := p["outcome"].(string); ok {
				r.DiscoveryRecordsTotal.WithLabelValues(outcome).Inc()
			}
		}
	case topology.EventDiscoveryComplete, topology.EventDiscoveryCanceled:
		if st, ok := e.Payload.(discovery.Status); ok {
			r.DiscoverySessionsTotal.WithLabelValues(string(st.State)).Inc()
		}
	case topology.EventProjectSaved:
		r.ProjectSavesTotal.Inc()
	}
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveLayout records one layout run
func (r *Registry) ObserveLayout(layer domain.Layer, algorithm string, duration time.Duration) {
	r.LayoutDuration.WithLabelValues(string(layer), algorithm).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
