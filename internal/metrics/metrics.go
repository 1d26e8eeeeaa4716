package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	WorkflowsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assessor_workflows_started_total",
			Help: "Total number of assessment workflows started",
		},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessor_workflows_completed_total",
			Help: "Total number of assessment workflows completed",
		},
		[]string{"status"},
	)

	WorkflowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assessor_workflow_duration_seconds",
			Help:    "End-to-end assessment workflow duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// Per-phase wall-clock time. The parallel agent phase is expected to
	// track max(agent durations) rather than their sum.
	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assessor_phase_duration_seconds",
			Help:    "Workflow phase duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"phase"},
	)

	// Agent metrics
	AgentExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessor_agent_executions_total",
			Help: "Total number of agent executions",
		},
		[]string{"role", "status"},
	)

	AgentExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assessor_agent_execution_duration_ms",
			Help:    "Agent execution duration in milliseconds",
			Buckets: []float64{500, 1000, 5000, 15000, 30000, 60000, 120000, 300000},
		},
		[]string{"role"},
	)

	// Synthesis metrics
	SynthesizedRecommendations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assessor_synthesized_recommendations",
			Help:    "Number of recommendations after deduplication",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250},
		},
	)

	// Event emission metrics
	EventEmitFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assessor_event_emit_failures_total",
			Help: "Total number of failed best-effort event emissions",
		},
	)
)

// RecordWorkflowMetrics records metrics for a completed workflow run.
func RecordWorkflowMetrics(status string, durationSeconds float64) {
	WorkflowsCompleted.WithLabelValues(status).Inc()
	WorkflowDuration.Observe(durationSeconds)
}

// RecordAgentMetrics records metrics for one agent execution.
func RecordAgentMetrics(role, status string, durationMs float64) {
	AgentExecutions.WithLabelValues(role, status).Inc()
	AgentExecutionDuration.WithLabelValues(role).Observe(durationMs)
}

// RecordPhaseDuration records one phase's wall-clock time.
func RecordPhaseDuration(phase string, seconds float64) {
	PhaseDuration.WithLabelValues(phase).Observe(seconds)
}
