package workflows

import (
	"github.com/atlasforge/assessor/internal/agents"
)

// TaskInput is the argument to AssessmentWorkflow.
type TaskInput struct {
	AssessmentID string `json:"assessment_id"`
	RequestedBy  string `json:"requested_by,omitempty"`

	// Frameworks and Scenarios parameterize the professional-services
	// phase; empty slices select the worker-side defaults.
	Frameworks []string `json:"frameworks,omitempty"`
	Scenarios  []string `json:"scenarios,omitempty"`

	// Context is free-form per-run hints forwarded to every agent.
	Context map[string]interface{} `json:"context,omitempty"`

	// Roster overrides the built-in agent roster. Declaration order is
	// significant: synthesis dedup ties resolve toward earlier entries.
	Roster []agents.TaskSpec `json:"roster,omitempty"`
}

// Phase labels used for timing and metrics.
const (
	PhaseValidation   = "validation"
	PhaseAgents       = "agents"
	PhaseSynthesis    = "synthesis"
	PhaseProfessional = "professional_services"
	PhaseReporting    = "reporting"
)
