// Package metrics holds the pipeline's Prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts what the reconciler and the scheduler do. All counters are
// optional: a nil *Metrics is a valid no-op receiver, so tests and the
// query command don't have to wire a registry.
type Metrics struct {
	EventsApplied    *prometheus.CounterVec
	EventsStale      prometheus.Counter
	EventsDivergent  prometheus.Counter
	SourceRetries    prometheus.Counter
	SettlementsOK    prometheus.Counter
	SettlementErrors *prometheus.CounterVec
}

// New creates and registers the collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recur",
			Subsystem: "reconcile",
			Name:      "events_applied_total",
			Help:      "Events applied to the mirror, by kind.",
		}, []string{"kind"}),
		EventsStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recur",
			Subsystem: "reconcile",
			Name:      "events_stale_total",
			Help:      "Redelivered events discarded by the cursor gate.",
		}),
		EventsDivergent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recur",
			Subsystem: "reconcile",
			Name:      "events_divergent_total",
			Help:      "Events that disagreed with mirrored state.",
		}),
		SourceRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recur",
			Subsystem: "reconcile",
			Name:      "source_retries_total",
			Help:      "Transient source failures retried with backoff.",
		}),
		SettlementsOK: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recur",
			Subsystem: "scheduler",
			Name:      "settlements_submitted_total",
			Help:      "Settlement submissions accepted by the ledger program.",
		}),
		SettlementErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recur",
			Subsystem: "scheduler",
			Name:      "settlement_failures_total",
			Help:      "Settlement submissions rejected, by code.",
		}, []string{"code"}),
	}
	reg.MustRegister(
		m.EventsApplied,
		m.EventsStale,
		m.EventsDivergent,
		m.SourceRetries,
		m.SettlementsOK,
		m.SettlementErrors,
	)
	return m
}

// ObserveApplied increments the applied counter for a kind.
func (m *Metrics) ObserveApplied(kind string) {
	if m == nil {
		return
	}
	m.EventsApplied.WithLabelValues(kind).Inc()
}

// ObserveStale increments the stale counter.
func (m *Metrics) ObserveStale() {
	if m == nil {
		return
	}
	m.EventsStale.Inc()
}

// ObserveDivergent increments the divergence counter.
func (m *Metrics) ObserveDivergent() {
	if m == nil {
		return
	}
	m.EventsDivergent.Inc()
}

// ObserveSourceRetry increments the retry counter.
func (m *Metrics) ObserveSourceRetry() {
	if m == nil {
		return
	}
	m.SourceRetries.Inc()
}

// ObserveSettlement records one submission result.
func (m *Metrics) ObserveSettlement(code string) {
	if m == nil {
		return
	}
	if code == "" {
		m.SettlementsOK.Inc()
		return
	}
	m.SettlementErrors.WithLabelValues(code).Inc()
}
