package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus instruments. All methods are safe on a nil receiver so
// components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	UpstreamLatency    *prometheus.HistogramVec
	ResolutionOutcomes *prometheus.CounterVec
	Anomalies          *prometheus.CounterVec
	GateOutcomes       *prometheus.CounterVec
	SearchDuration     *prometheus.HistogramVec
}

// New creates the instruments on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "domainflip_upstream_duration_seconds",
			Help:    "Duration of availability authority calls by authority",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"authority"}), // authority: "primary", "secondary"

		ResolutionOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domainflip_resolutions_total",
			Help: "Candidate resolutions by terminal state",
		}, []string{"state"}),

		Anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domainflip_resolver_anomalies_total",
			Help: "Resolver anomalies by source and status token",
		}, []string{"source", "status"}),

		GateOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "domainflip_credit_gate_outcomes_total",
			Help: "Credit ledger gate outcomes by operation and result",
		}, []string{"operation", "result"}),

		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "domainflip_search_duration_seconds",
			Help:    "End-to-end pipeline duration by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveUpstream records the latency of a call to an availability authority.
func (m *Metrics) ObserveUpstream(authority string, d time.Duration) {
	if m != nil {
		m.UpstreamLatency.WithLabelValues(authority).Observe(d.Seconds())
	}
}

// IncResolution counts a resolved candidate.
func (m *Metrics) IncResolution(state string) {
	if m != nil {
		m.ResolutionOutcomes.WithLabelValues(state).Inc()
	}
}

// IncAnomaly counts a logged resolver anomaly.
func (m *Metrics) IncAnomaly(source, status string) {
	if m != nil {
		m.Anomalies.WithLabelValues(source, status).Inc()
	}
}

// IncGateOutcome counts a credit gate decision.
func (m *Metrics) IncGateOutcome(operation, result string) {
	if m != nil {
		m.GateOutcomes.WithLabelValues(operation, result).Inc()
	}
}

// ObserveSearch records a full pipeline run.
func (m *Metrics) ObserveSearch(operation string, d time.Duration) {
	if m != nil {
		m.SearchDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}
