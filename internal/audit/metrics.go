// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks code generation decisions.
//
//   - jsguard_codegen_verdicts_total{verdict}: decisions by outcome
//   - jsguard_codegen_decision_duration_seconds: time spent in the decider
//   - jsguard_audit_dropped_events_total: events not persisted because the
//     audit buffer was full
//
// A nil *Metrics records nothing.
type Metrics struct {
	verdictsTotal    *prometheus.CounterVec
	decisionDuration prometheus.Histogram
	droppedTotal     prometheus.Counter
}

// NewMetrics creates the audit metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "jsguard",
				Subsystem: "codegen",
				Name:      "verdicts_total",
				Help:      "Total number of code generation decisions by verdict",
			},
			[]string{"verdict"},
		),
		decisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "jsguard",
				Subsystem: "codegen",
				Name:      "decision_duration_seconds",
				Help:      "Time spent deciding whether source may be compiled",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),
		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "jsguard",
				Subsystem: "audit",
				Name:      "dropped_events_total",
				Help:      "Audit events dropped because the write buffer was full",
			},
		),
	}

	reg.MustRegister(m.verdictsTotal, m.decisionDuration, m.droppedTotal)
	return m
}

// ObserveDecision records one decision and how long it took.
func (m *Metrics) ObserveDecision(verdict string, d time.Duration) {
	if m == nil {
		return
	}
	m.verdictsTotal.WithLabelValues(verdict).Inc()
	m.decisionDuration.Observe(d.Seconds())
}

// ObserveDropped records an audit event that could not be queued.
func (m *Metrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.droppedTotal.Inc()
}
