package models

// ExecutionMetrics accumulates per-run counters and per-phase wall-clock
// elapsed time. Owned exclusively by the workflow controller for the
// duration of one run; never shared across concurrent runs. Counter updates
// happen in the single coroutine collecting phase results, so no locking is
// needed.
type ExecutionMetrics struct {
	TotalAgents     int `json:"total_agents"`
	CompletedAgents int `json:"completed_agents"`
	// FailedAgents includes timeouts; TimedOutAgents breaks them out for
	// operator triage.
	FailedAgents   int `json:"failed_agents"`
	TimedOutAgents int `json:"timed_out_agents"`

	PhaseDurationsMs map[string]int64 `json:"phase_durations_ms"`
}

// NewExecutionMetrics creates a zeroed metrics block for one run.
func NewExecutionMetrics(totalAgents int) *ExecutionMetrics {
	return &ExecutionMetrics{
		TotalAgents:      totalAgents,
		PhaseDurationsMs: make(map[string]int64),
	}
}
