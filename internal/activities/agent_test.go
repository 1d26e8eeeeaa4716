package activities

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"

	"github.com/atlasforge/assessor/internal/agents"
	"github.com/atlasforge/assessor/internal/models"
	"github.com/atlasforge/assessor/internal/streaming"
)

// stubAgent lets each test script the agent behavior.
type stubAgent struct {
	role string
	fn   func(ctx context.Context) (*agents.Output, error)
}

func (s *stubAgent) Role() string { return s.role }
func (s *stubAgent) Execute(ctx context.Context, _ models.Assessment, _ map[string]interface{}) (*agents.Output, error) {
	return s.fn(ctx)
}

type stubFactory struct {
	create func(role string) (agents.Task, error)
}

func (f *stubFactory) Create(role string, _ map[string]interface{}) (agents.Task, error) {
	return f.create(role)
}

func newAgentActivities(t *testing.T, factory AgentFactory) (*Activities, *streaming.Manager) {
	t.Helper()
	mgr := streaming.NewManager(64)
	return New(factory, nil, mgr, nil, nil, nil, zaptest.NewLogger(t)), mgr
}

func runAgentActivity(t *testing.T, acts *Activities, in AgentExecutionInput) models.AgentExecutionResult {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(acts.ExecuteAssessmentAgent)

	val, err := env.ExecuteActivity(acts.ExecuteAssessmentAgent, in)
	require.NoError(t, err, "the runner must never fail the activity")
	var result models.AgentExecutionResult
	require.NoError(t, val.Get(&result))
	return result
}

func TestExecuteAgentSuccess(t *testing.T) {
	factory := &stubFactory{create: func(role string) (agents.Task, error) {
		return &stubAgent{role: role, fn: func(context.Context) (*agents.Output, error) {
			return &agents.Output{
				Recommendations: []models.Recommendation{{Title: "Do the thing", Priority: models.PriorityHigh}},
				Data:            map[string]interface{}{"score": 0.8},
			}, nil
		}}, nil
	}}
	acts, _ := newAgentActivities(t, factory)

	result := runAgentActivity(t, acts, AgentExecutionInput{
		WorkflowID: "wf-1", Assessment: models.Assessment{ID: "a-1"},
		Role: "strategic", TimeoutSeconds: 60,
	})

	assert.Equal(t, models.AgentCompleted, result.Status)
	assert.Equal(t, "strategic", result.Role)
	require.Len(t, result.Recommendations, 1)
	assert.Empty(t, result.Error)
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))
}

func TestExecuteAgentFailure(t *testing.T) {
	factory := &stubFactory{create: func(role string) (agents.Task, error) {
		return &stubAgent{role: role, fn: func(context.Context) (*agents.Output, error) {
			return nil, errors.New("llm service unavailable")
		}}, nil
	}}
	acts, _ := newAgentActivities(t, factory)

	result := runAgentActivity(t, acts, AgentExecutionInput{
		WorkflowID: "wf-1", Assessment: models.Assessment{ID: "a-1"},
		Role: "technical", TimeoutSeconds: 60,
	})

	assert.Equal(t, models.AgentFailed, result.Status)
	assert.Contains(t, result.Error, "llm service unavailable")
	assert.NotNil(t, result.Recommendations)
	assert.Empty(t, result.Recommendations)
	assert.Empty(t, result.Data)
}

func TestExecuteAgentPanicBecomesFailed(t *testing.T) {
	factory := &stubFactory{create: func(role string) (agents.Task, error) {
		return &stubAgent{role: role, fn: func(context.Context) (*agents.Output, error) {
			panic("nil map write")
		}}, nil
	}}
	acts, _ := newAgentActivities(t, factory)

	result := runAgentActivity(t, acts, AgentExecutionInput{
		WorkflowID: "wf-1", Assessment: models.Assessment{ID: "a-1"},
		Role: "ml_ops", TimeoutSeconds: 60,
	})

	assert.Equal(t, models.AgentFailed, result.Status)
	assert.Contains(t, result.Error, "panicked")
}

func TestExecuteAgentTimeout(t *testing.T) {
	factory := &stubFactory{create: func(role string) (agents.Task, error) {
		return &stubAgent{role: role, fn: func(ctx context.Context) (*agents.Output, error) {
			// Ignores its deadline; the runner must enforce it.
			time.Sleep(3 * time.Second)
			return &agents.Output{}, nil
		}}, nil
	}}
	acts, _ := newAgentActivities(t, factory)

	start := time.Now()
	result := runAgentActivity(t, acts, AgentExecutionInput{
		WorkflowID: "wf-1", Assessment: models.Assessment{ID: "a-1"},
		Role: "simulation", TimeoutSeconds: 1,
	})

	assert.Equal(t, models.AgentTimeout, result.Status)
	assert.Contains(t, result.Error, "timed out after 1s")
	assert.Empty(t, result.Recommendations)
	assert.Less(t, time.Since(start), 3*time.Second, "runner must not wait out the slow agent")
}

func TestExecuteAgentConstructionFailureDegrades(t *testing.T) {
	factory := &stubFactory{create: func(role string) (agents.Task, error) {
		return nil, errors.New("unknown agent role")
	}}
	acts, _ := newAgentActivities(t, factory)

	result := runAgentActivity(t, acts, AgentExecutionInput{
		WorkflowID: "wf-1", Assessment: models.Assessment{ID: "a-1"},
		Role: "ghost", TimeoutSeconds: 60,
	})

	// A roster entry that cannot even be built still yields a completed,
	// degraded entry so the phase invariant holds.
	assert.Equal(t, models.AgentCompleted, result.Status)
	assert.Equal(t, true, result.Data["degraded"])
	reason, _ := result.Data["reason"].(string)
	assert.True(t, strings.Contains(reason, "unknown agent role"))
}

func TestExecuteAgentEmitsLifecycleEvents(t *testing.T) {
	factory := &stubFactory{create: func(role string) (agents.Task, error) {
		return &stubAgent{role: role, fn: func(context.Context) (*agents.Output, error) {
			return &agents.Output{}, nil
		}}, nil
	}}
	acts, mgr := newAgentActivities(t, factory)

	ch := mgr.Subscribe("wf-events", 16)
	defer mgr.Unsubscribe("wf-events", ch)

	runAgentActivity(t, acts, AgentExecutionInput{
		WorkflowID: "wf-events", Assessment: models.Assessment{ID: "a-1"},
		Role: "compliance", TimeoutSeconds: 60,
	})

	started := <-ch
	assert.Equal(t, streaming.EventAgentStarted, started.Type)
	assert.Equal(t, "compliance", started.Role)

	completed := <-ch
	assert.Equal(t, streaming.EventAgentCompleted, completed.Type)
	assert.Equal(t, string(models.AgentCompleted), completed.Status)
}
