package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/atlasforge/assessor/internal/db"
	"github.com/atlasforge/assessor/internal/metrics"
	"github.com/atlasforge/assessor/internal/models"
)

// UpdateAssessmentFlags persists both completion flags in one write. The
// workflow calls this exactly once per terminal state, after all phases
// have joined.
func (a *Activities) UpdateAssessmentFlags(ctx context.Context, in UpdateFlagsInput) error {
	logger := activity.GetLogger(ctx)
	if a.store == nil {
		return fmt.Errorf("assessment store not configured")
	}
	if err := a.store.SetCompletionFlags(ctx, in.AssessmentID, in.Generated); err != nil {
		return err
	}
	logger.Info("Completion flags persisted",
		"assessment_id", in.AssessmentID,
		"generated", in.Generated,
	)
	return nil
}

// PersistAgentExecution records one agent run for the audit trail. Invoked
// fire-and-forget on a detached context; a miss is logged, not fatal.
func (a *Activities) PersistAgentExecution(ctx context.Context, in PersistAgentExecutionInput) error {
	if a.store == nil {
		return nil
	}
	return a.store.SaveAgentExecution(ctx, &db.AgentExecutionRecord{
		ID:           in.ID,
		WorkflowID:   in.WorkflowID,
		AssessmentID: in.AssessmentID,
		Role:         in.Role,
		Status:       in.Status,
		Error:        in.Error,
		DurationMs:   in.DurationMs,
		RecCount:     in.RecCount,
	})
}

// PersistWorkflowResult records the terminal result row and emits the
// run-level Prometheus metrics. Workflow code stays free of direct metric
// writes so replay never double-counts.
func (a *Activities) PersistWorkflowResult(ctx context.Context, in PersistWorkflowResultInput) error {
	metrics.RecordWorkflowMetrics(string(in.Result.Status), float64(in.Result.ExecutionTimeMs)/1000)
	for phase, ms := range in.Metrics.PhaseDurationsMs {
		metrics.RecordPhaseDuration(phase, float64(ms)/1000)
	}
	if in.Result.Status == models.WorkflowCompleted {
		metrics.SynthesizedRecommendations.Observe(float64(in.SynthesizedCount))
	}
	if a.store == nil {
		return nil
	}
	return a.store.SaveWorkflowResult(ctx, in.WorkflowID, &in.Result)
}
