package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the admin front-end.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	upstreamDuration *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
	logins           *prometheus.CounterVec
	forcedLogouts    prometheus.Counter
	imports          *prometheus.CounterVec
	routing          *prometheus.CounterVec
	refreshes        *prometheus.CounterVec
	sessionHits      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry lets tests build many.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "admin_upstream_request_duration_seconds",
				Help:    "Duration of backend API calls by endpoint and method.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "method"},
		),
		upstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_upstream_errors_total",
				Help: "Backend API calls that did not succeed, by endpoint and kind.",
			},
			[]string{"endpoint", "kind"},
		),
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_logins_total",
				Help: "Login attempts by variant and outcome.",
			},
			[]string{"variant", "outcome"},
		),
		forcedLogouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "admin_forced_logouts_total",
				Help: "Sessions torn down because the backend answered 401.",
			},
		),
		imports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_imports_total",
				Help: "Spreadsheet imports by entity type and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		routing: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_interface_routing_total",
				Help: "Root-path interface decisions by variant and reason.",
			},
			[]string{"variant", "reason"},
		),
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_entity_refreshes_total",
				Help: "Entity-changed deliveries by subscriber and outcome.",
			},
			[]string{"subscriber", "outcome"},
		),
		sessionHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_session_lookups_total",
				Help: "Session store lookups by store tier and result.",
			},
			[]string{"tier", "result"},
		),
	}
}

// RecordUpstream records the duration of one backend call.
func (m *Metrics) RecordUpstream(endpoint, method string, d time.Duration) {
	m.upstreamDuration.WithLabelValues(endpoint, method).Observe(d.Seconds())
}

// IncrUpstreamError counts a failed backend call. kind is network,
// unauthorized, or http.
func (m *Metrics) IncrUpstreamError(endpoint, kind string) {
	m.upstreamErrors.WithLabelValues(endpoint, kind).Inc()
}

// IncrLogin counts a login attempt.
func (m *Metrics) IncrLogin(variant, outcome string) {
	m.logins.WithLabelValues(variant, outcome).Inc()
}

// IncrForcedLogout counts one 401-driven logout.
func (m *Metrics) IncrForcedLogout() {
	m.forcedLogouts.Inc()
}

// IncrImport counts an import attempt.
func (m *Metrics) IncrImport(kind, outcome string) {
	m.imports.WithLabelValues(kind, outcome).Inc()
}

// IncrRouting counts a device routing decision.
func (m *Metrics) IncrRouting(variant, reason string) {
	m.routing.WithLabelValues(variant, reason).Inc()
}

// IncrRefresh counts an event delivery to a module.
func (m *Metrics) IncrRefresh(subscriber, outcome string) {
	m.refreshes.WithLabelValues(subscriber, outcome).Inc()
}

// IncrSessionLookup counts a session store lookup.
func (m *Metrics) IncrSessionLookup(tier, result string) {
	m.sessionHits.WithLabelValues(tier, result).Inc()
}

// ForcedLogouts returns the cumulative forced logout count.
func (m *Metrics) ForcedLogouts() float64 {
	return counterValue(m.forcedLogouts)
}

// Imports returns the cumulative import count for a kind and outcome.
func (m *Metrics) Imports(kind, outcome string) float64 {
	return counterValue(m.imports.WithLabelValues(kind, outcome))
}

// Logins returns the cumulative login count for a variant and outcome.
func (m *Metrics) Logins(variant, outcome string) float64 {
	return counterValue(m.logins.WithLabelValues(variant, outcome))
}

// counterValue extracts the current float64 value of a counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
