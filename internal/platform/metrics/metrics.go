// Copyright (c) 2026 Stokria. All rights reserved.

// Package metrics registers the Prometheus instruments for the auth pipeline
// and exposes the /metrics handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// gateDecisions counts terminal outcomes per pipeline gate.
	// gate: authn | tenant | authz. outcome: forwarded | rejected_<kind>.
	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stokria_auth_gate_decisions_total",
			Help: "Terminal decisions made by the authentication/authorization gates.",
		},
		[]string{"gate", "outcome"},
	)

	// refreshRotations counts refresh-token rotation attempts by result.
	refreshRotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stokria_refresh_rotations_total",
			Help: "Refresh token rotation attempts.",
		},
		[]string{"result"},
	)
)

// Init registers all instruments with the default registry.
// Call exactly once, from main.
func Init() {
	prometheus.MustRegister(gateDecisions, refreshRotations)
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveGate increments the decision counter for one gate outcome.
func ObserveGate(gate, outcome string) {
	gateDecisions.WithLabelValues(gate, outcome).Inc()
}

// ObserveRefresh increments the rotation counter ("rotated" or "replayed").
func ObserveRefresh(result string) {
	refreshRotations.WithLabelValues(result).Inc()
}
