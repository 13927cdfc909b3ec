// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics declares the Prometheus collectors for research runs.
// Collectors register with the default registry; the server exposes them
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "research_agent_runs_started_total",
			Help: "Total number of research runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_agent_runs_completed_total",
			Help: "Total number of research runs completed",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_agent_run_duration_seconds",
			Help:    "Research run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	ResearchLoops = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_agent_research_loops",
			Help:    "Reflection loops per completed run",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		},
	)

	// Stage metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_agent_stage_duration_seconds",
			Help:    "Duration of each graph stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// Search metrics
	SearchTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_agent_search_tasks_total",
			Help: "Total number of web research tasks",
		},
		[]string{"status"},
	)

	CitationsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "research_agent_citations_skipped_total",
			Help: "Grounding entries skipped during citation resolution",
		},
	)

	SourcesCited = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_agent_sources_cited",
			Help:    "Sources cited per final answer",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_agent_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"route", "code"},
	)
)

// RecordRun records the outcome of one run.
func RecordRun(status string, seconds float64, loops int) {
	RunsCompleted.WithLabelValues(status).Inc()
	RunDuration.Observe(seconds)
	if status == "success" {
		ResearchLoops.Observe(float64(loops))
	}
}
