package activities

import (
	"time"

	"github.com/atlasforge/assessor/internal/models"
)

// LoadAssessmentInput asks the assessment loader for one assessment.
type LoadAssessmentInput struct {
	AssessmentID string `json:"assessment_id"`
}

// ValidateAssessmentInput carries the loaded assessment into validation.
type ValidateAssessmentInput struct {
	Assessment models.Assessment `json:"assessment"`
}

// AgentExecutionInput is the input for one roster entry's run.
type AgentExecutionInput struct {
	WorkflowID     string                 `json:"workflow_id"`
	Assessment     models.Assessment      `json:"assessment"`
	Role           string                 `json:"role"`
	Operation      string                 `json:"operation"`
	TimeoutSeconds int                    `json:"timeout_seconds"`
	Context        map[string]interface{} `json:"context,omitempty"`
}

// ComplianceInput is the input for the compliance assessment branch.
type ComplianceInput struct {
	Assessment      models.Assessment       `json:"assessment"`
	Frameworks      []string                `json:"frameworks"`
	Recommendations []models.Recommendation `json:"recommendations"`
}

// CostInput is the input for the cost modeling branch.
type CostInput struct {
	Assessment      models.Assessment       `json:"assessment"`
	Recommendations []models.Recommendation `json:"recommendations"`
	Scenarios       []string                `json:"scenarios"`
}

// ReportInput feeds the report generator.
type ReportInput struct {
	Assessment   models.Assessment      `json:"assessment"`
	Synthesis    map[string]interface{} `json:"synthesis"`
	Professional map[string]interface{} `json:"professional_services"`
}

// UpdateFlagsInput sets both completion flags to the same value.
type UpdateFlagsInput struct {
	AssessmentID string `json:"assessment_id"`
	Generated    bool   `json:"generated"`
}

// EmitEventInput is the fire-and-forget event payload.
type EmitEventInput struct {
	WorkflowID   string    `json:"workflow_id"`
	AssessmentID string    `json:"assessment_id"`
	EventType    string    `json:"event_type"`
	Role         string    `json:"role,omitempty"`
	Status       string    `json:"status,omitempty"`
	Message      string    `json:"message,omitempty"`
	ElapsedMs    int64     `json:"elapsed_ms,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// PersistAgentExecutionInput records one agent run for the audit trail.
type PersistAgentExecutionInput struct {
	ID           string `json:"id"`
	WorkflowID   string `json:"workflow_id"`
	AssessmentID string `json:"assessment_id"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	RecCount     int    `json:"recommendation_count"`
}

// PersistWorkflowResultInput records the terminal result of a run.
type PersistWorkflowResultInput struct {
	WorkflowID string                  `json:"workflow_id"`
	Result     models.WorkflowResult   `json:"result"`
	Metrics    models.ExecutionMetrics `json:"metrics"`
	// SynthesizedCount is the post-dedup recommendation count, carried here
	// so the worker records it alongside the terminal metrics.
	SynthesizedCount int `json:"synthesized_count"`
}
