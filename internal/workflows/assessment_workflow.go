// Package workflows holds the assessment orchestration: a validation
// barrier, an uncapped parallel agent phase, deterministic synthesis, a
// two-branch professional-services phase, and reporting, with completion
// flags persisted exactly once per terminal state.
package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/atlasforge/assessor/internal/activities"
	"github.com/atlasforge/assessor/internal/agents"
	"github.com/atlasforge/assessor/internal/constants"
	"github.com/atlasforge/assessor/internal/models"
	"github.com/atlasforge/assessor/internal/streaming"
	"github.com/atlasforge/assessor/internal/synthesis"
)

// AssessmentWorkflow runs one full assessment. Phases execute strictly
// forward: load → validate → agents (parallel) → synthesis → professional
// services (parallel) → reporting. Validation failure is the only fatal
// phase; everything after it degrades to error payloads rather than
// aborting the run.
//
// The run has no workflow-wide deadline: total duration is bounded by the
// per-agent and per-branch activity timeouts.
func AssessmentWorkflow(ctx workflow.Context, input TaskInput) (models.WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	wfID := workflow.GetInfo(ctx).WorkflowExecution.ID
	start := workflow.Now(ctx)

	roster := input.Roster
	if len(roster) == 0 {
		roster = agents.DefaultRoster()
	}
	em := models.NewExecutionMetrics(len(roster))

	logger.Info("Assessment workflow started",
		"workflow_id", wfID,
		"assessment_id", input.AssessmentID,
		"agents", len(roster),
	)
	emitEvent(ctx, activities.EmitEventInput{
		WorkflowID:   wfID,
		AssessmentID: input.AssessmentID,
		EventType:    streaming.EventWorkflowStarted,
	})

	// A caller-supplied roster gets the same duplicate-role rule as roster
	// files: the result map keys by role, so duplicates would collapse
	// entries and break the one-result-per-roster-entry guarantee.
	if dup := duplicateRole(roster); dup != "" {
		return failRunWithResults(ctx, wfID, input.AssessmentID, start, em, agentPhaseOutcome{},
			fmt.Sprintf("invalid roster: role %q declared twice", dup))
	}

	// Load. Transient store errors are retried; a hard miss fails the run
	// before any agent work starts.
	loadOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	}
	loadCtx := workflow.WithActivityOptions(ctx, loadOpts)
	var assessment models.Assessment
	if err := workflow.ExecuteActivity(loadCtx, constants.LoadAssessmentActivity, activities.LoadAssessmentInput{
		AssessmentID: input.AssessmentID,
	}).Get(ctx, &assessment); err != nil {
		return failRunWithResults(ctx, wfID, input.AssessmentID, start, em, agentPhaseOutcome{},
			fmt.Sprintf("load assessment: %v", err))
	}

	// Validation barrier. The only phase whose failure stops the roster
	// from ever launching.
	phaseStart := workflow.Now(ctx)
	if err := workflow.ExecuteActivity(loadCtx, constants.ValidateAssessmentActivity, activities.ValidateAssessmentInput{
		Assessment: assessment,
	}).Get(ctx, nil); err != nil {
		em.PhaseDurationsMs[PhaseValidation] = workflow.Now(ctx).Sub(phaseStart).Milliseconds()
		return failRunWithResults(ctx, wfID, assessment.ID, start, em, agentPhaseOutcome{},
			fmt.Sprintf("validation failed: %v", err))
	}
	em.PhaseDurationsMs[PhaseValidation] = workflow.Now(ctx).Sub(phaseStart).Milliseconds()

	// Parallel agent phase. Never fails the run; reports counts.
	phaseStart = workflow.Now(ctx)
	outcome := executeAgentsParallel(ctx, wfID, assessment, roster, input.Context)
	em.PhaseDurationsMs[PhaseAgents] = workflow.Now(ctx).Sub(phaseStart).Milliseconds()
	em.CompletedAgents = outcome.Completed
	em.FailedAgents = outcome.Failed
	em.TimedOutAgents = outcome.TimedOut

	// Synthesis. Pure and deterministic, so it runs in workflow code. A
	// synthesis error yields an empty list that still flows downstream.
	phaseStart = workflow.Now(ctx)
	synth := synthesis.Synthesize(outcome.Ordered)
	em.PhaseDurationsMs[PhaseSynthesis] = workflow.Now(ctx).Sub(phaseStart).Milliseconds()
	if synth.Error != "" {
		logger.Error("Synthesis degraded", "workflow_id", wfID, "error", synth.Error)
	}

	// Professional services: compliance and cost modeling, concurrent.
	phaseStart = workflow.Now(ctx)
	professional := runProfessionalServices(ctx, assessment, synth.Recommendations, input.Frameworks, input.Scenarios)
	em.PhaseDurationsMs[PhaseProfessional] = workflow.Now(ctx).Sub(phaseStart).Milliseconds()

	// Reporting. A failure here is an error payload, not a failed run:
	// the recommendations and professional-services results stand.
	phaseStart = workflow.Now(ctx)
	reportOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	reportCtx := workflow.WithActivityOptions(ctx, reportOpts)
	var reports map[string]interface{}
	if err := workflow.ExecuteActivity(reportCtx, constants.GenerateReportsActivity, activities.ReportInput{
		Assessment: assessment,
		Synthesis: map[string]interface{}{
			"recommendations": synth.Recommendations,
			"raw_count":       synth.RawCount,
			"agent_data":      synth.AgentData,
		},
		Professional: professional,
	}).Get(ctx, &reports); err != nil {
		logger.Error("Report generation failed", "workflow_id", wfID, "error", err)
		reports = map[string]interface{}{"error": err.Error()}
	}
	em.PhaseDurationsMs[PhaseReporting] = workflow.Now(ctx).Sub(phaseStart).Milliseconds()

	// Terminal bookkeeping: both completion flags true, persisted once.
	flagOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	}
	flagCtx := workflow.WithActivityOptions(ctx, flagOpts)
	if err := workflow.ExecuteActivity(flagCtx, constants.UpdateFlagsActivity, activities.UpdateFlagsInput{
		AssessmentID: assessment.ID,
		Generated:    true,
	}).Get(ctx, nil); err != nil {
		// The flags were never written, so this is not a second terminal
		// write: the run degrades to failed with flags untouched-false.
		logger.Error("Failed to persist completion flags", "workflow_id", wfID, "error", err)
		return failRunWithResults(ctx, wfID, assessment.ID, start, em, outcome,
			fmt.Sprintf("persist completion flags: %v", err))
	}

	elapsed := workflow.Now(ctx).Sub(start)
	result := models.WorkflowResult{
		Status:       models.WorkflowCompleted,
		AssessmentID: assessment.ID,
		AgentResults: outcome.ByRole,
		FinalData: map[string]interface{}{
			"synthesis": map[string]interface{}{
				"recommendations": synth.Recommendations,
				"raw_count":       synth.RawCount,
				"agent_data":      synth.AgentData,
				"error":           synth.Error,
			},
			"professional_services": professional,
			"reports":               reports,
			"execution_metrics":     em,
		},
		ExecutionTimeMs: elapsed.Milliseconds(),
		NodeCount:       len(roster),
		CompletedNodes:  outcome.Completed,
		FailedNodes:     outcome.Failed,
	}

	emitEvent(ctx, activities.EmitEventInput{
		WorkflowID:   wfID,
		AssessmentID: assessment.ID,
		EventType:    streaming.EventWorkflowCompleted,
		Status:       string(models.WorkflowCompleted),
		Message:      fmt.Sprintf("%d recommendations synthesized", len(synth.Recommendations)),
		ElapsedMs:    elapsed.Milliseconds(),
	})
	persistWorkflowResult(ctx, activities.PersistWorkflowResultInput{
		WorkflowID:       wfID,
		Result:           result,
		Metrics:          *em,
		SynthesizedCount: len(synth.Recommendations),
	})

	logger.Info("Assessment workflow completed",
		"workflow_id", wfID,
		"assessment_id", assessment.ID,
		"duration_ms", elapsed.Milliseconds(),
		"completed_agents", outcome.Completed,
		"failed_agents", outcome.Failed,
	)
	return result, nil
}

// duplicateRole returns the first role a roster declares more than once, or
// empty when all roles are unique.
func duplicateRole(roster []agents.TaskSpec) string {
	seen := make(map[string]bool, len(roster))
	for _, s := range roster {
		if seen[s.Role] {
			return s.Role
		}
		seen[s.Role] = true
	}
	return ""
}

// failRunWithResults is the single failure path: both completion flags are
// set false and persisted once, an error event is emitted, and a failed
// WorkflowResult carrying whatever agent results exist is returned as the
// workflow's value rather than as a workflow error, so callers can always
// decode the terminal state.
func failRunWithResults(ctx workflow.Context, wfID, assessmentID string, start time.Time, em *models.ExecutionMetrics, outcome agentPhaseOutcome, errMsg string) (models.WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Error("Assessment workflow failed",
		"workflow_id", wfID,
		"assessment_id", assessmentID,
		"error", errMsg,
	)

	flagOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	}
	flagCtx := workflow.WithActivityOptions(ctx, flagOpts)
	if err := workflow.ExecuteActivity(flagCtx, constants.UpdateFlagsActivity, activities.UpdateFlagsInput{
		AssessmentID: assessmentID,
		Generated:    false,
	}).Get(ctx, nil); err != nil {
		logger.Error("Failed to persist failure flags", "workflow_id", wfID, "error", err)
	}

	elapsed := workflow.Now(ctx).Sub(start)
	agentResults := outcome.ByRole
	if agentResults == nil {
		agentResults = map[string]models.AgentExecutionResult{}
	}
	result := models.WorkflowResult{
		Status:          models.WorkflowFailed,
		AssessmentID:    assessmentID,
		AgentResults:    agentResults,
		FinalData:       map[string]interface{}{"execution_metrics": em},
		ExecutionTimeMs: elapsed.Milliseconds(),
		NodeCount:       em.TotalAgents,
		CompletedNodes:  outcome.Completed,
		FailedNodes:     outcome.Failed,
		Error:           errMsg,
	}

	emitEvent(ctx, activities.EmitEventInput{
		WorkflowID:   wfID,
		AssessmentID: assessmentID,
		EventType:    streaming.EventErrorOccurred,
		Status:       string(models.WorkflowFailed),
		Message:      errMsg,
		ElapsedMs:    elapsed.Milliseconds(),
	})
	persistWorkflowResult(ctx, activities.PersistWorkflowResultInput{
		WorkflowID: wfID,
		Result:     result,
		Metrics:    *em,
	})
	return result, nil
}
