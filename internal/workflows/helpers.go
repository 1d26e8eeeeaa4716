package workflows

import (
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/atlasforge/assessor/internal/activities"
	"github.com/atlasforge/assessor/internal/constants"
	"github.com/atlasforge/assessor/internal/models"
)

// emitEvent publishes a streaming event best-effort. Emission failures are
// logged and swallowed so the event surface can never alter workflow outcome.
func emitEvent(ctx workflow.Context, in activities.EmitEventInput) {
	opts := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	emitCtx := workflow.WithActivityOptions(ctx, opts)
	in.Timestamp = workflow.Now(ctx)
	if err := workflow.ExecuteActivity(emitCtx, constants.EmitEventActivity, in).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("Failed to emit event",
			"event_type", in.EventType,
			"error", err,
		)
	}
}

// persistAgentExecution records one agent run on a disconnected context so
// the write survives workflow completion and never blocks phase progress.
func persistAgentExecution(ctx workflow.Context, wfID, assessmentID string, res models.AgentExecutionResult) {
	var recordID string
	if err := workflow.SideEffect(ctx, func(workflow.Context) interface{} {
		return uuid.New().String()
	}).Get(&recordID); err != nil {
		workflow.GetLogger(ctx).Warn("Failed to generate execution record id", "error", err)
		return
	}

	detached, _ := workflow.NewDisconnectedContext(ctx)
	opts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 2},
	}
	detached = workflow.WithActivityOptions(detached, opts)
	workflow.ExecuteActivity(detached, constants.PersistAgentExecutionActivity, activities.PersistAgentExecutionInput{
		ID:           recordID,
		WorkflowID:   wfID,
		AssessmentID: assessmentID,
		Role:         res.Role,
		Status:       string(res.Status),
		Error:        res.Error,
		DurationMs:   res.DurationMs,
		RecCount:     len(res.Recommendations),
	})
}

// persistWorkflowResult writes the terminal result row. Best-effort: the
// result has already been decided, so a persistence miss is logged only.
func persistWorkflowResult(ctx workflow.Context, in activities.PersistWorkflowResultInput) {
	opts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	}
	pCtx := workflow.WithActivityOptions(ctx, opts)
	if err := workflow.ExecuteActivity(pCtx, constants.PersistWorkflowResultActivity, in).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("Failed to persist workflow result",
			"workflow_id", in.WorkflowID,
			"error", err,
		)
	}
}
