package fleet

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	evaluations     *prometheus.CounterVec
	evaluationError prometheus.Counter
	evalDuration    prometheus.Histogram
	adHocQueries    prometheus.Counter
}

// NewMetrics creates and registers the engine collectors on reg.
// Pass prometheus.DefaultRegisterer outside of tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_rule_evaluations_total",
			Help: "Completed rule evaluations by outcome.",
		}, []string{"outcome"}),
		evaluationError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_rule_evaluation_errors_total",
			Help: "Rule evaluations aborted by an error or timeout.",
		}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleet_rule_evaluation_duration_seconds",
			Help:    "Wall time of a single rule evaluation.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		adHocQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleet_adhoc_aggregate_queries_total",
			Help: "Interactive aggregate queries served outside rule evaluation.",
		}),
	}
	reg.MustRegister(m.evaluations, m.evaluationError, m.evalDuration, m.adHocQueries)
	return m
}

func (m *Metrics) observeOutcome(outcome Outcome, seconds float64) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(string(outcome)).Inc()
	m.evalDuration.Observe(seconds)
}

func (m *Metrics) observeError() {
	if m == nil {
		return
	}
	m.evaluationError.Inc()
}

func (m *Metrics) observeAdHocQuery() {
	if m == nil {
		return
	}
	m.adHocQueries.Inc()
}
