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
)

// activityGraceTimeout is added on top of each roster entry's own deadline.
// The runner activity enforces the real per-agent timeout internally; the
// activity-level StartToCloseTimeout is a backstop for a wedged worker.
const activityGraceTimeout = 15 * time.Second

// agentPhaseOutcome is the fan-in of the parallel agent phase. Ordered holds
// one entry per roster entry, in roster-declaration order, regardless of
// completion order or outcome.
type agentPhaseOutcome struct {
	Ordered []models.AgentExecutionResult
	ByRole  map[string]models.AgentExecutionResult

	Completed int
	// Failed counts both failures and timeouts; TimedOut breaks timeouts out.
	Failed   int
	TimedOut int
}

// executeAgentsParallel launches every roster entry at once and blocks until
// all have resolved. There is no concurrency cap and no inter-agent
// dependency. An activity-level error never propagates: it is folded into a
// failed or timeout entry so the outcome always carries exactly one result
// per roster entry.
func executeAgentsParallel(
	ctx workflow.Context,
	wfID string,
	assessment models.Assessment,
	roster []agents.TaskSpec,
	taskCtx map[string]interface{},
) agentPhaseOutcome {
	logger := workflow.GetLogger(ctx)
	logger.Info("Launching agent roster",
		"workflow_id", wfID,
		"agents", len(roster),
	)

	futures := make([]workflow.Future, len(roster))
	for i, spec := range roster {
		opts := workflow.ActivityOptions{
			StartToCloseTimeout: spec.Timeout + activityGraceTimeout,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		}
		aCtx := workflow.WithActivityOptions(ctx, opts)
		futures[i] = workflow.ExecuteActivity(aCtx, constants.ExecuteAgentActivity, activities.AgentExecutionInput{
			WorkflowID:     wfID,
			Assessment:     assessment,
			Role:           spec.Role,
			Operation:      spec.Operation,
			TimeoutSeconds: int(spec.Timeout / time.Second),
			Context:        taskCtx,
		})
	}

	results := make([]models.AgentExecutionResult, len(roster))
	selector := workflow.NewSelector(ctx)
	pending := len(roster)
	for i := range futures {
		i := i
		selector.AddFuture(futures[i], func(f workflow.Future) {
			var res models.AgentExecutionResult
			if err := f.Get(ctx, &res); err != nil {
				// Second line of defense: the runner normally reports its
				// own timeout, but a dead worker surfaces here as an
				// activity timeout instead.
				status := models.AgentFailed
				if temporal.IsTimeoutError(err) {
					status = models.AgentTimeout
				}
				res = models.AgentExecutionResult{
					Role:            roster[i].Role,
					Status:          status,
					Recommendations: []models.Recommendation{},
					Error:           err.Error(),
					DurationMs:      int64(roster[i].Timeout / time.Millisecond),
				}
				logger.Error("Agent activity did not return a result",
					"role", roster[i].Role,
					"status", status,
					"error", err,
				)
			}
			if res.Role == "" {
				res.Role = roster[i].Role
			}
			results[i] = res
			pending--
		})
	}
	for pending > 0 {
		selector.Select(ctx)
	}

	out := agentPhaseOutcome{
		Ordered: results,
		ByRole:  make(map[string]models.AgentExecutionResult, len(results)),
	}
	for _, res := range results {
		out.ByRole[res.Role] = res
		switch res.Status {
		case models.AgentCompleted:
			out.Completed++
		case models.AgentTimeout:
			out.Failed++
			out.TimedOut++
		default:
			out.Failed++
		}
		persistAgentExecution(ctx, wfID, assessment.ID, res)
	}

	emitEvent(ctx, activities.EmitEventInput{
		WorkflowID:   wfID,
		AssessmentID: assessment.ID,
		EventType:    streaming.EventAgentsCompleted,
		Message:      fmt.Sprintf("%d/%d agents completed", out.Completed, len(roster)),
	})
	logger.Info("Agent roster resolved",
		"workflow_id", wfID,
		"completed", out.Completed,
		"failed", out.Failed,
		"timed_out", out.TimedOut,
	)
	return out
}
