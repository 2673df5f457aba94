// Copyright 2025 ZUB3C
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability holds the Prometheus metrics of the pipeline.
// Metrics are injected, not global: tests register against their own
// registry and never collide.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pipeline-wide instruments.
type Metrics struct {
	// ModelCalls counts model invocations by cost tier.
	ModelCalls *prometheus.CounterVec

	// ToolExecutions counts tool runs by tool name and outcome
	// (success or failure).
	ToolExecutions *prometheus.CounterVec

	// GuardFiltered counts documents dropped per guard stage.
	GuardFiltered *prometheus.CounterVec

	// SearchDuration observes full tree-search wall time.
	SearchDuration prometheus.Histogram

	// ToolDuration observes per-tool execution time.
	ToolDuration *prometheus.HistogramVec

	// SearchIterations reports the iteration count of the last search.
	SearchIterations prometheus.Gauge

	// MemoryDegraded counts fallback switches per memory store.
	MemoryDegraded *prometheus.CounterVec
}

// NewMetrics creates and registers every instrument on reg. Pass
// prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsa_agent_model_calls_total",
			Help: "Model invocations by cost tier.",
		}, []string{"tier"}),
		ToolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsa_agent_tool_executions_total",
			Help: "Tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		GuardFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsa_agent_guard_filtered_total",
			Help: "Documents dropped by the content guard, per stage.",
		}, []string{"stage"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dsa_agent_search_duration_seconds",
			Help:    "Tree search wall time.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsa_agent_tool_duration_seconds",
			Help:    "Tool execution time by tool name.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"tool"}),
		SearchIterations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dsa_agent_search_iterations",
			Help: "Iterations used by the most recent search.",
		}),
		MemoryDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dsa_agent_memory_degraded_total",
			Help: "Memory stores switched to degraded mode.",
		}, []string{"store"}),
	}

	reg.MustRegister(
		m.ModelCalls,
		m.ToolExecutions,
		m.GuardFiltered,
		m.SearchDuration,
		m.ToolDuration,
		m.SearchIterations,
		m.MemoryDegraded,
	)
	return m
}

// RecordMemoryDegraded counts one store falling back to degraded mode.
func (m *Metrics) RecordMemoryDegraded(store string) {
	m.MemoryDegraded.WithLabelValues(store).Inc()
}

// RecordToolExecution increments the execution counter and observes
// duration for one tool run.
func (m *Metrics) RecordToolExecution(tool string, success bool, seconds float64) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.ToolExecutions.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(seconds)
}
