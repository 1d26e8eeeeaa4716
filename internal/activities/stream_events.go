package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/atlasforge/assessor/internal/metrics"
	"github.com/atlasforge/assessor/internal/streaming"
)

// EmitAssessmentEvent publishes one workflow event. It never returns an
// error: emission is best-effort and must not affect workflow control flow.
func (a *Activities) EmitAssessmentEvent(ctx context.Context, in EmitEventInput) error {
	logger := activity.GetLogger(ctx)
	if in.EventType == streaming.EventWorkflowStarted {
		metrics.WorkflowsStarted.Inc()
	}
	logger.Debug("Workflow event",
		"workflow_id", in.WorkflowID,
		"type", in.EventType,
		"role", in.Role,
		"status", in.Status,
	)
	a.publish(streaming.Event{
		WorkflowID:   in.WorkflowID,
		AssessmentID: in.AssessmentID,
		Type:         in.EventType,
		Role:         in.Role,
		Status:       in.Status,
		Message:      in.Message,
		ElapsedMs:    in.ElapsedMs,
		Timestamp:    in.Timestamp,
	})
	return nil
}
