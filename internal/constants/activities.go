// Package constants centralizes activity names so workflow code and tests
// reference activities without importing their implementations.
package constants

// AssessmentWorkflowName is the registered name of the orchestration
// workflow.
const AssessmentWorkflowName = "AssessmentWorkflow"

const (
	LoadAssessmentActivity        = "LoadAssessment"
	ValidateAssessmentActivity    = "ValidateAssessment"
	ExecuteAgentActivity          = "ExecuteAssessmentAgent"
	AssessComplianceActivity      = "AssessCompliance"
	GenerateCostActivity          = "GenerateCostProjections"
	GenerateReportsActivity       = "GenerateAssessmentReports"
	UpdateFlagsActivity           = "UpdateAssessmentFlags"
	EmitEventActivity             = "EmitAssessmentEvent"
	PersistAgentExecutionActivity = "PersistAgentExecution"
	PersistWorkflowResultActivity = "PersistWorkflowResult"
)
