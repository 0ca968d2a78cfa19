package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the session core's Prometheus collectors.
// A nil *Metrics is valid and records nothing, so components can run without a registry.
type Metrics struct {
	AuthTransitions *prometheus.CounterVec
	Switches        *prometheus.CounterVec
	EdgeDecisions   *prometheus.CounterVec
	StaleResponses  *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_auth_transitions_total",
				Help: "Auth state machine transitions by target state",
			},
			[]string{"state"},
		),
		Switches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_org_switches_total",
				Help: "Organization switch attempts by outcome",
			},
			[]string{"outcome"},
		),
		EdgeDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_edge_decisions_total",
				Help: "Edge route guard decisions by action",
			},
			[]string{"action"},
		),
		StaleResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_stale_responses_total",
				Help: "Responses discarded because the active organization or identity changed",
			},
			[]string{"source"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_org_cache_lookups_total",
				Help: "Organization-scoped cache lookups by result",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.AuthTransitions, m.Switches, m.EdgeDecisions, m.StaleResponses, m.CacheLookups)
	}
	return m
}

func (m *Metrics) AuthTransition(state string) {
	if m == nil {
		return
	}
	m.AuthTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) Switch(outcome string) {
	if m == nil {
		return
	}
	m.Switches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EdgeDecision(action string) {
	if m == nil {
		return
	}
	m.EdgeDecisions.WithLabelValues(action).Inc()
}

func (m *Metrics) Stale(source string) {
	if m == nil {
		return
	}
	m.StaleResponses.WithLabelValues(source).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
