package models

import "time"

// Assessment is the unit of work flowing through the orchestration engine.
// It is created and owned by the API/CRUD layer; the workflow reads it and
// mutates only the two completion flags at the end of a run.
type Assessment struct {
	ID               string                 `db:"id" json:"id"`
	OrganizationName string                 `db:"organization_name" json:"organization_name"`
	BusinessGoals    map[string]interface{} `db:"-" json:"business_goals,omitempty"`
	TechnicalProfile map[string]interface{} `db:"-" json:"technical_profile,omitempty"`

	// Completion flags, persisted exactly once per terminal workflow state.
	// Success sets both true; failure sets both false.
	RecommendationsGenerated bool `db:"recommendations_generated" json:"recommendations_generated"`
	ReportsGenerated         bool `db:"reports_generated" json:"reports_generated"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AgentStatus classifies the terminal outcome of one agent run.
type AgentStatus string

const (
	AgentCompleted AgentStatus = "completed"
	AgentFailed    AgentStatus = "failed"
	AgentTimeout   AgentStatus = "timeout"
)

// AgentExecutionResult is the normalized outcome of a single agent run.
// The runner converts every possible outcome (success, error, deadline) into
// one of these; results are never mutated after the runner returns them.
type AgentExecutionResult struct {
	Role            string                 `json:"role"`
	Status          AgentStatus            `json:"status"`
	Recommendations []Recommendation       `json:"recommendations"`
	Data            map[string]interface{} `json:"data,omitempty"`
	Error           string                 `json:"error,omitempty"`
	DurationMs      int64                  `json:"duration_ms"`
}

// WorkflowStatus is the terminal status of one orchestration run.
type WorkflowStatus string

const (
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// WorkflowResult is the terminal value of one assessment workflow run.
// Created once at the end of a run; immutable thereafter.
type WorkflowResult struct {
	Status          WorkflowStatus                  `json:"status"`
	AssessmentID    string                          `json:"assessment_id"`
	AgentResults    map[string]AgentExecutionResult `json:"agent_results"`
	FinalData       map[string]interface{}          `json:"final_data,omitempty"`
	ExecutionTimeMs int64                           `json:"execution_time_ms"`
	NodeCount       int                             `json:"node_count"`
	CompletedNodes  int                             `json:"completed_nodes"`
	FailedNodes     int                             `json:"failed_nodes"`
	Error           string                          `json:"error,omitempty"`
}
