package activities

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/atlasforge/assessor/internal/agents"
	"github.com/atlasforge/assessor/internal/metrics"
	"github.com/atlasforge/assessor/internal/models"
	"github.com/atlasforge/assessor/internal/streaming"
)

// ExecuteAssessmentAgent runs exactly one roster entry under its declared
// deadline and converts every possible outcome into a normalized result:
//
//   - success within the deadline:   status=completed, recommendations set
//   - agent error or panic:          status=failed, error captured, lists empty
//   - deadline exceeded:             status=timeout, distinct from failed so
//     callers can triage slow agents separately from hard errors
//
// It returns a result, never an error: agent-level failure must not surface
// as an activity failure. Started/completed events are emitted around the
// run, fire-and-forget.
func (a *Activities) ExecuteAssessmentAgent(ctx context.Context, in AgentExecutionInput) (models.AgentExecutionResult, error) {
	logger := activity.GetLogger(ctx)
	start := time.Now()

	timeout := time.Duration(in.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 240 * time.Second
	}

	a.publish(streaming.Event{
		WorkflowID:   in.WorkflowID,
		AssessmentID: in.Assessment.ID,
		Type:         streaming.EventAgentStarted,
		Role:         in.Role,
		Timestamp:    time.Now().UTC(),
	})

	result := a.runAgent(ctx, in, timeout)
	result.DurationMs = time.Since(start).Milliseconds()

	metrics.RecordAgentMetrics(in.Role, string(result.Status), float64(result.DurationMs))
	logger.Info("Agent execution finished",
		"role", in.Role,
		"status", string(result.Status),
		"duration_ms", result.DurationMs,
		"recommendations", len(result.Recommendations),
	)

	a.publish(streaming.Event{
		WorkflowID:   in.WorkflowID,
		AssessmentID: in.Assessment.ID,
		Type:         streaming.EventAgentCompleted,
		Role:         in.Role,
		Status:       string(result.Status),
		ElapsedMs:    result.DurationMs,
		Timestamp:    time.Now().UTC(),
	})

	return result, nil
}

func (a *Activities) runAgent(ctx context.Context, in AgentExecutionInput, timeout time.Duration) models.AgentExecutionResult {
	config := map[string]interface{}{}
	if in.Operation != "" {
		config["operation"] = in.Operation
	}
	agentTask, err := a.factory.Create(in.Role, config)
	if err != nil {
		// Construction failure must not fail the phase: substitute a
		// degraded result so the roster invariant holds.
		a.logger.Warn("Agent construction failed, substituting degraded result",
			zap.String("role", in.Role),
			zap.Error(err),
		)
		return models.AgentExecutionResult{
			Role:            in.Role,
			Status:          models.AgentCompleted,
			Recommendations: []models.Recommendation{},
			Data: map[string]interface{}{
				"degraded": true,
				"reason":   err.Error(),
			},
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		out *agents.Output
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("agent panicked: %v", r)}
			}
		}()
		out, err := agentTask.Execute(runCtx, in.Assessment, in.Context)
		done <- outcome{out: out, err: err}
	}()

	select {
	case oc := <-done:
		if oc.err != nil {
			return models.AgentExecutionResult{
				Role:            in.Role,
				Status:          models.AgentFailed,
				Recommendations: []models.Recommendation{},
				Error:           oc.err.Error(),
			}
		}
		result := models.AgentExecutionResult{
			Role:            in.Role,
			Status:          models.AgentCompleted,
			Recommendations: oc.out.Recommendations,
			Data:            oc.out.Data,
		}
		if result.Recommendations == nil {
			result.Recommendations = []models.Recommendation{}
		}
		return result
	case <-runCtx.Done():
		if ctx.Err() != nil {
			// Server-side cancellation, not the agent's deadline.
			return models.AgentExecutionResult{
				Role:            in.Role,
				Status:          models.AgentFailed,
				Recommendations: []models.Recommendation{},
				Error:           fmt.Sprintf("agent %s cancelled: %v", in.Role, ctx.Err()),
			}
		}
		return models.AgentExecutionResult{
			Role:            in.Role,
			Status:          models.AgentTimeout,
			Recommendations: []models.Recommendation{},
			Error:           fmt.Sprintf("agent %s timed out after %s", in.Role, timeout),
		}
	}
}
