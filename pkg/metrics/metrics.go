// Copyright (C) 2026 Civic Sentinel Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package metrics exposes the engine's Prometheus instrumentation. The
// engine itself never starts an HTTP server for these: populating the
// registry is the engine's job, exporting it is the deployer's.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every counter and histogram registered for the engine.
// The engine updates CyclesTotal and ProductiveCyclesTotal; nothing in
// the module updates the other instruments.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal           prometheus.Counter
	ProductiveCyclesTotal prometheus.Counter
	CircuitBreakerTrips   prometheus.Counter
	AgentInvocations      *prometheus.CounterVec
	AgentLatencySeconds   *prometheus.HistogramVec
	PRRoundsTotal         prometheus.Counter
	DebateRejections      prometheus.Counter
}

// New builds a Metrics with every instrument registered against a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "civicsentinel",
			Name:      "cycles_total",
			Help:      "Total number of engine cycles run.",
		}),
		ProductiveCyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "civicsentinel",
			Name:      "productive_cycles_total",
			Help:      "Total number of cycles that yielded a merged PR or published analysis.",
		}),
		CircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "civicsentinel",
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of times the telemetry circuit breaker filed an issue.",
		}),
		AgentInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "civicsentinel",
			Name:      "agent_invocations_total",
			Help:      "Total agent subprocess invocations, labeled by agent name and outcome.",
		}, []string{"agent", "outcome"}),
		AgentLatencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "civicsentinel",
			Name:      "agent_invocation_latency_seconds",
			Help:      "Agent subprocess invocation latency in seconds, labeled by agent name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
		PRRoundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "civicsentinel",
			Name:      "pr_rounds_total",
			Help:      "Total coder/reviewer rounds executed across all pull requests.",
		}),
		DebateRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "civicsentinel",
			Name:      "debate_rejections_total",
			Help:      "Total proposals rejected by the advocate/skeptic triage filter.",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.ProductiveCyclesTotal,
		m.CircuitBreakerTrips,
		m.AgentInvocations,
		m.AgentLatencySeconds,
		m.PRRoundsTotal,
		m.DebateRejections,
	)

	return m
}

// ObserveAgentInvocation records one agent subprocess invocation's
// outcome and latency.
func (m *Metrics) ObserveAgentInvocation(agent, outcome string, seconds float64) {
	m.AgentInvocations.WithLabelValues(agent, outcome).Inc()
	m.AgentLatencySeconds.WithLabelValues(agent).Observe(seconds)
}
