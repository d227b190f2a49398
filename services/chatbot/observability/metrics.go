// Copyright (C) 2025 CineGraph AI (dev@cinegraph.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the chatbot.
//
// Metrics cover the question-answering pipeline: turn counts by outcome
// and backend, correction attempts per turn, and end-to-end turn
// latency. They are exposed on the /metrics endpoint for scraping.
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "cinegraph"

const pipelineSubsystem = "pipeline"

// PipelineMetrics holds all Prometheus metrics for the NL-to-Cypher
// pipeline. Initialize once at startup via InitMetrics().
type PipelineMetrics struct {
	// TurnsTotal counts finished turns.
	// Labels: status (success, degraded), backend (deepseek, gemini, ollama)
	TurnsTotal *prometheus.CounterVec

	// AttemptsPerTurn observes how many generation attempts a turn used.
	AttemptsPerTurn prometheus.Histogram

	// TurnDurationSeconds measures end-to-end turn latency.
	// Labels: status (success, degraded)
	TurnDurationSeconds *prometheus.HistogramVec

	// FailuresTotal counts attempt failures by kind.
	// Labels: kind (syntax, disallowed_operation, unknown_schema_element, ...)
	FailuresTotal *prometheus.CounterVec

	// ActiveTurns tracks turns currently in flight.
	ActiveTurns prometheus.Gauge

	// ResultRows observes row counts of successful executions.
	ResultRows prometheus.Histogram
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *PipelineMetrics

// InitMetrics creates and registers all pipeline metrics. Call once at
// application startup; calling twice panics on duplicate registration.
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "turns_total",
				Help:      "Total finished turns by status and LLM backend",
			},
			[]string{"status", "backend"},
		),

		AttemptsPerTurn: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "attempts_per_turn",
				Help:      "Generation attempts used per turn",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
		),

		TurnDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "End-to-end turn latency in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		FailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "failures_total",
				Help:      "Turn failures by failure kind",
			},
			[]string{"kind"},
		),

		ActiveTurns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "active_turns",
				Help:      "Turns currently being processed",
			},
		),

		ResultRows: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "result_rows",
				Help:      "Rows returned by successful query executions",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
	}

	return DefaultMetrics
}

// RecordTurn records a finished turn.
func (m *PipelineMetrics) RecordTurn(backend string, succeeded bool, attempts int, seconds float64) {
	status := "success"
	if !succeeded {
		status = "degraded"
	}
	m.TurnsTotal.WithLabelValues(status, backend).Inc()
	m.AttemptsPerTurn.Observe(float64(attempts))
	m.TurnDurationSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordFailure records the failure kind that ended a degraded turn.
func (m *PipelineMetrics) RecordFailure(kind string) {
	m.FailuresTotal.WithLabelValues(kind).Inc()
}

// TurnStarted increments the in-flight gauge.
func (m *PipelineMetrics) TurnStarted() {
	m.ActiveTurns.Inc()
}

// TurnEnded decrements the in-flight gauge.
func (m *PipelineMetrics) TurnEnded() {
	m.ActiveTurns.Dec()
}

// RecordResultRows observes the row count of a successful execution.
func (m *PipelineMetrics) RecordResultRows(rows int) {
	m.ResultRows.Observe(float64(rows))
}
