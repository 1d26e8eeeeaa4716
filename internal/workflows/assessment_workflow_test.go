package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/atlasforge/assessor/internal/activities"
	"github.com/atlasforge/assessor/internal/agents"
	"github.com/atlasforge/assessor/internal/constants"
	"github.com/atlasforge/assessor/internal/models"
)

var testAssessment = models.Assessment{
	ID:               "a-1",
	OrganizationName: "Acme",
	BusinessGoals:    map[string]interface{}{"goal": "scale"},
}

// newWorkflowEnv registers the workflow plus the plumbing activities every
// path touches. The returned pointer captures the terminal persistence
// payload for tests that inspect metrics.
func newWorkflowEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *activities.PersistWorkflowResultInput) {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(AssessmentWorkflow, workflow.RegisterOptions{
		Name: constants.AssessmentWorkflowName,
	})
	// The test environment requires activities to be registered under their
	// wire names before they can be mocked by string with OnActivity.
	acts := activities.New(nil, nil, nil, nil, nil, nil, zap.NewNop())
	for name, fn := range map[string]interface{}{
		constants.LoadAssessmentActivity:        acts.LoadAssessment,
		constants.ValidateAssessmentActivity:    acts.ValidateAssessment,
		constants.ExecuteAgentActivity:          acts.ExecuteAssessmentAgent,
		constants.AssessComplianceActivity:      acts.AssessCompliance,
		constants.GenerateCostActivity:          acts.GenerateCostProjections,
		constants.GenerateReportsActivity:       acts.GenerateAssessmentReports,
		constants.UpdateFlagsActivity:           acts.UpdateAssessmentFlags,
		constants.EmitEventActivity:             acts.EmitAssessmentEvent,
		constants.PersistAgentExecutionActivity: acts.PersistAgentExecution,
		constants.PersistWorkflowResultActivity: acts.PersistWorkflowResult,
	} {
		env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	}
	persisted := &activities.PersistWorkflowResultInput{}
	env.OnActivity(constants.EmitEventActivity, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(constants.PersistAgentExecutionActivity, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(constants.PersistWorkflowResultActivity, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.PersistWorkflowResultInput) error {
			*persisted = in
			return nil
		})
	return env, persisted
}

func mockLoadAndValidate(env *testsuite.TestWorkflowEnvironment) {
	env.OnActivity(constants.LoadAssessmentActivity, mock.Anything, mock.Anything).Return(testAssessment, nil)
	env.OnActivity(constants.ValidateAssessmentActivity, mock.Anything, mock.Anything).Return(nil)
}

func mockDownstreamOK(env *testsuite.TestWorkflowEnvironment) {
	env.OnActivity(constants.AssessComplianceActivity, mock.Anything, mock.Anything).
		Return(map[string]interface{}{"overall": "pass"}, nil)
	env.OnActivity(constants.GenerateCostActivity, mock.Anything, mock.Anything).
		Return(map[string]interface{}{"baseline": 1000.0}, nil)
	env.OnActivity(constants.GenerateReportsActivity, mock.Anything, mock.Anything).
		Return(map[string]interface{}{"executive": "doc"}, nil)
}

// completedRunner answers every agent invocation with a completed result
// carrying one recommendation named after the role.
func completedRunner(ctx context.Context, in activities.AgentExecutionInput) (models.AgentExecutionResult, error) {
	return models.AgentExecutionResult{
		Role:   in.Role,
		Status: models.AgentCompleted,
		Recommendations: []models.Recommendation{
			{Title: "rec from " + in.Role, Priority: models.PriorityMedium, Confidence: 0.5, SourceAgent: in.Role},
		},
		DurationMs: 100,
	}, nil
}

func smallRoster(roles ...string) []agents.TaskSpec {
	specs := make([]agents.TaskSpec, len(roles))
	for i, r := range roles {
		specs[i] = agents.TaskSpec{Role: r, Operation: r + "_analysis", Timeout: 240 * time.Second}
	}
	return specs
}

func getResult(t *testing.T, env *testsuite.TestWorkflowEnvironment) models.WorkflowResult {
	t.Helper()
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result models.WorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	return result
}

func TestWorkflowHappyPathFullRoster(t *testing.T) {
	env, _ := newWorkflowEnv(t)
	mockLoadAndValidate(env)
	mockDownstreamOK(env)
	env.OnActivity(constants.ExecuteAgentActivity, mock.Anything, mock.Anything).Return(completedRunner)

	var flagWrites []bool
	env.OnActivity(constants.UpdateFlagsActivity, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.UpdateFlagsInput) error {
			flagWrites = append(flagWrites, in.Generated)
			return nil
		})

	env.ExecuteWorkflow(constants.AssessmentWorkflowName, TaskInput{AssessmentID: "a-1"})
	result := getResult(t, env)

	assert.Equal(t, models.WorkflowCompleted, result.Status)
	assert.Equal(t, "a-1", result.AssessmentID)
	assert.Len(t, result.AgentResults, 10, "one entry per roster entry")
	assert.Equal(t, 10, result.NodeCount)
	assert.Equal(t, 10, result.CompletedNodes)
	assert.Equal(t, 0, result.FailedNodes)
	assert.Empty(t, result.Error)

	// Completion flags persisted exactly once, both true.
	assert.Equal(t, []bool{true}, flagWrites)

	for _, key := range []string{"synthesis", "professional_services", "reports", "execution_metrics"} {
		assert.Contains(t, result.FinalData, key)
	}
}

func TestWorkflowPartialFailureKeepsRosterInvariant(t *testing.T) {
	env, _ := newWorkflowEnv(t)
	mockLoadAndValidate(env)
	mockDownstreamOK(env)

	// strategic completes with 2 recs, technical times out inside the
	// runner, market fails hard.
	env.OnActivity(constants.ExecuteAgentActivity, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.AgentExecutionInput) (models.AgentExecutionResult, error) {
			switch in.Role {
			case "strategic":
				return models.AgentExecutionResult{
					Role: in.Role, Status: models.AgentCompleted,
					Recommendations: []models.Recommendation{
						{Title: "Adopt IaC", Priority: models.PriorityHigh, Confidence: 0.9},
						{Title: "Centralize logging", Priority: models.PriorityMedium, Confidence: 0.7},
					},
				}, nil
			case "technical":
				return models.AgentExecutionResult{
					Role: in.Role, Status: models.AgentTimeout,
					Recommendations: []models.Recommendation{},
					Error:           "agent technical timed out after 4m0s",
				}, nil
			default:
				return models.AgentExecutionResult{
					Role: in.Role, Status: models.AgentFailed,
					Recommendations: []models.Recommendation{},
					Error:           "llm unavailable",
				}, nil
			}
		})
	env.OnActivity(constants.UpdateFlagsActivity, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(constants.AssessmentWorkflowName, TaskInput{
		AssessmentID: "a-1",
		Roster:       smallRoster("strategic", "technical", "market"),
	})
	result := getResult(t, env)

	// Failures are entries, never gaps.
	require.Len(t, result.AgentResults, 3)
	assert.Equal(t, models.AgentTimeout, result.AgentResults["technical"].Status)
	assert.Equal(t, models.AgentFailed, result.AgentResults["market"].Status)

	// Partial failure does not fail the run; timeouts count as failed.
	assert.Equal(t, models.WorkflowCompleted, result.Status)
	assert.Equal(t, 1, result.CompletedNodes)
	assert.Equal(t, 2, result.FailedNodes)

	// Only the completed agent's recommendations were synthesized.
	synth, ok := result.FinalData["synthesis"].(map[string]interface{})
	require.True(t, ok)
	recs, ok := synth["recommendations"].([]interface{})
	require.True(t, ok)
	assert.Len(t, recs, 2)
}

func TestWorkflowRunnerErrorBecomesFailedEntry(t *testing.T) {
	env, _ := newWorkflowEnv(t)
	mockLoadAndValidate(env)
	mockDownstreamOK(env)

	// Second line of defense: an error escaping the runner is folded into
	// a failed entry rather than failing the phase.
	env.OnActivity(constants.ExecuteAgentActivity, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.AgentExecutionInput) (models.AgentExecutionResult, error) {
			if in.Role == "technical" {
				return models.AgentExecutionResult{}, errors.New("worker crashed mid-run")
			}
			return completedRunner(ctx, in)
		})
	env.OnActivity(constants.UpdateFlagsActivity, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(constants.AssessmentWorkflowName, TaskInput{
		AssessmentID: "a-1",
		Roster:       smallRoster("strategic", "technical"),
	})
	result := getResult(t, env)

	require.Len(t, result.AgentResults, 2)
	failed := result.AgentResults["technical"]
	assert.Equal(t, models.AgentFailed, failed.Status)
	assert.Contains(t, failed.Error, "worker crashed mid-run")
	assert.Equal(t, models.WorkflowCompleted, result.Status)
}

func TestWorkflowValidationFailureEndsRun(t *testing.T) {
	env, _ := newWorkflowEnv(t)
	env.OnActivity(constants.LoadAssessmentActivity, mock.Anything, mock.Anything).Return(testAssessment, nil)
	env.OnActivity(constants.ValidateAssessmentActivity, mock.Anything, mock.Anything).
		Return(errors.New("assessment carries neither business goals nor a technical profile"))

	agentLaunched := false
	env.OnActivity(constants.ExecuteAgentActivity, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.AgentExecutionInput) (models.AgentExecutionResult, error) {
			agentLaunched = true
			return models.AgentExecutionResult{}, nil
		})

	var flagWrites []bool
	env.OnActivity(constants.UpdateFlagsActivity, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.UpdateFlagsInput) error {
			flagWrites = append(flagWrites, in.Generated)
			return nil
		})

	env.ExecuteWorkflow(constants.AssessmentWorkflowName, TaskInput{AssessmentID: "a-1"})
	result := getResult(t, env)

	assert.Equal(t, models.WorkflowFailed, result.Status)
	assert.Contains(t, result.Error, "validation failed")
	assert.Empty(t, result.AgentResults)
	assert.False(t, agentLaunched, "the roster must never launch after a validation failure")
	assert.Equal(t, []bool{false}, flagWrites)
}

func TestWorkflowDuplicateRosterRoleFailsRun(t *testing.T) {
	env, _ := newWorkflowEnv(t)

	agentLaunched := false
	env.OnActivity(constants.ExecuteAgentActivity, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.AgentExecutionInput) (models.AgentExecutionResult, error) {
			agentLaunched = true
			return models.AgentExecutionResult{}, nil
		})

	var flagWrites []bool
	env.OnActivity(constants.UpdateFlagsActivity, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.UpdateFlagsInput) error {
			flagWrites = append(flagWrites, in.Generated)
			return nil
		})

	env.ExecuteWorkflow(constants.AssessmentWorkflowName, TaskInput{
		AssessmentID: "a-1",
		Roster:       smallRoster("strategic", "technical", "strategic"),
	})
	result := getResult(t, env)

	// Duplicate roles would collapse result-map entries, so the run is
	// rejected before any agent launches.
	assert.Equal(t, models.WorkflowFailed, result.Status)
	assert.Contains(t, result.Error, `role "strategic" declared twice`)
	assert.False(t, agentLaunched)
	assert.Equal(t, []bool{false}, flagWrites)
}

func TestWorkflowLoadFailureEndsRun(t *testing.T) {
	env, _ := newWorkflowEnv(t)
	env.OnActivity(constants.LoadAssessmentActivity, mock.Anything, mock.Anything).
		Return(models.Assessment{}, errors.New("assessment not found"))
	env.OnActivity(constants.UpdateFlagsActivity, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(constants.AssessmentWorkflowName, TaskInput{AssessmentID: "ghost"})
	result := getResult(t, env)

	assert.Equal(t, models.WorkflowFailed, result.Status)
	assert.Contains(t, result.Error, "load assessment")
	assert.Equal(t, "ghost", result.AssessmentID)
}

func TestWorkflowComplianceErrorSlotKeepsCostIntact(t *testing.T) {
	env, _ := newWorkflowEnv(t)
	mockLoadAndValidate(env)
	env.OnActivity(constants.ExecuteAgentActivity, mock.Anything, mock.Anything).Return(completedRunner)
	env.OnActivity(constants.AssessComplianceActivity, mock.Anything, mock.Anything).
		Return(nil, errors.New("compliance engine aborted"))
	env.OnActivity(constants.GenerateCostActivity, mock.Anything, mock.Anything).
		Return(map[string]interface{}{"baseline": 2500.0}, nil)
	env.OnActivity(constants.GenerateReportsActivity, mock.Anything, mock.Anything).
		Return(map[string]interface{}{}, nil)
	env.OnActivity(constants.UpdateFlagsActivity, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(constants.AssessmentWorkflowName, TaskInput{
		AssessmentID: "a-1",
		Roster:       smallRoster("strategic"),
	})
	result := getResult(t, env)
	assert.Equal(t, models.WorkflowCompleted, result.Status)

	prof, ok := result.FinalData["professional_services"].(map[string]interface{})
	require.True(t, ok)

	compliance, ok := prof["compliance"].(map[string]interface{})
	require.True(t, ok)
	errMsg, _ := compliance["error"].(string)
	assert.Contains(t, errMsg, "compliance engine aborted")

	cost, ok := prof["cost_modeling"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 2500.0, cost["baseline"])
}

func TestWorkflowReportFailureStillCompletes(t *testing.T) {
	env, _ := newWorkflowEnv(t)
	mockLoadAndValidate(env)
	env.OnActivity(constants.ExecuteAgentActivity, mock.Anything, mock.Anything).Return(completedRunner)
	env.OnActivity(constants.AssessComplianceActivity, mock.Anything, mock.Anything).
		Return(map[string]interface{}{}, nil)
	env.OnActivity(constants.GenerateCostActivity, mock.Anything, mock.Anything).
		Return(map[string]interface{}{}, nil)
	env.OnActivity(constants.GenerateReportsActivity, mock.Anything, mock.Anything).
		Return(nil, errors.New("template rendering broke"))

	var flagWrites []bool
	env.OnActivity(constants.UpdateFlagsActivity, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.UpdateFlagsInput) error {
			flagWrites = append(flagWrites, in.Generated)
			return nil
		})

	env.ExecuteWorkflow(constants.AssessmentWorkflowName, TaskInput{
		AssessmentID: "a-1",
		Roster:       smallRoster("strategic"),
	})
	result := getResult(t, env)

	// Reporting failure is an error payload, not a failed run.
	assert.Equal(t, models.WorkflowCompleted, result.Status)
	reports, ok := result.FinalData["reports"].(map[string]interface{})
	require.True(t, ok)
	errMsg, _ := reports["error"].(string)
	assert.Contains(t, errMsg, "template rendering broke")
	assert.Equal(t, []bool{true}, flagWrites)
}

func TestWorkflowFlagPersistenceFailureFailsRun(t *testing.T) {
	env, _ := newWorkflowEnv(t)
	mockLoadAndValidate(env)
	mockDownstreamOK(env)
	env.OnActivity(constants.ExecuteAgentActivity, mock.Anything, mock.Anything).Return(completedRunner)
	env.OnActivity(constants.UpdateFlagsActivity, mock.Anything, mock.Anything).
		Return(errors.New("store unavailable"))

	env.ExecuteWorkflow(constants.AssessmentWorkflowName, TaskInput{
		AssessmentID: "a-1",
		Roster:       smallRoster("strategic"),
	})
	result := getResult(t, env)

	assert.Equal(t, models.WorkflowFailed, result.Status)
	assert.Contains(t, result.Error, "persist completion flags")
}

func TestWorkflowDedupPrefersEarlierRosterEntry(t *testing.T) {
	env, _ := newWorkflowEnv(t)
	mockLoadAndValidate(env)
	mockDownstreamOK(env)

	// Both agents emit the same title; the earlier roster entry must win
	// no matter which one resolves first.
	env.OnActivity(constants.ExecuteAgentActivity, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.AgentExecutionInput) (models.AgentExecutionResult, error) {
			return models.AgentExecutionResult{
				Role:   in.Role,
				Status: models.AgentCompleted,
				Recommendations: []models.Recommendation{
					{Title: "Shared Title", Priority: models.PriorityMedium, SourceAgent: in.Role},
				},
			}, nil
		})
	env.OnActivity(constants.UpdateFlagsActivity, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(constants.AssessmentWorkflowName, TaskInput{
		AssessmentID: "a-1",
		Roster:       smallRoster("strategic", "technical"),
	})
	result := getResult(t, env)

	synth, ok := result.FinalData["synthesis"].(map[string]interface{})
	require.True(t, ok)
	recs, ok := synth["recommendations"].([]interface{})
	require.True(t, ok)
	require.Len(t, recs, 1)
	winner, ok := recs[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "strategic", winner["source_agent"])
}

func TestWorkflowMetricsTrackTimeouts(t *testing.T) {
	env, persisted := newWorkflowEnv(t)
	mockLoadAndValidate(env)
	mockDownstreamOK(env)

	env.OnActivity(constants.ExecuteAgentActivity, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.AgentExecutionInput) (models.AgentExecutionResult, error) {
			if in.Role == "slow" {
				return models.AgentExecutionResult{
					Role: in.Role, Status: models.AgentTimeout,
					Recommendations: []models.Recommendation{},
					Error:           "agent slow timed out after 4m0s",
				}, nil
			}
			return completedRunner(ctx, in)
		})

	env.OnActivity(constants.UpdateFlagsActivity, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(constants.AssessmentWorkflowName, TaskInput{
		AssessmentID: "a-1",
		Roster:       smallRoster("strategic", "slow"),
	})
	result := getResult(t, env)
	assert.Equal(t, models.WorkflowCompleted, result.Status)

	assert.Equal(t, 2, persisted.Metrics.TotalAgents)
	assert.Equal(t, 1, persisted.Metrics.CompletedAgents)
	assert.Equal(t, 1, persisted.Metrics.FailedAgents, "timeouts count as failed")
	assert.Equal(t, 1, persisted.Metrics.TimedOutAgents)
	for _, phase := range []string{PhaseValidation, PhaseAgents, PhaseSynthesis, PhaseProfessional, PhaseReporting} {
		assert.Contains(t, persisted.Metrics.PhaseDurationsMs, phase)
	}
}
