// Package activities implements the Temporal activities the assessment
// workflow schedules: the single-agent runner, validation, the
// professional-services engines, reporting, persistence, and event emission.
package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/atlasforge/assessor/internal/agents"
	"github.com/atlasforge/assessor/internal/db"
	"github.com/atlasforge/assessor/internal/models"
	"github.com/atlasforge/assessor/internal/services"
	"github.com/atlasforge/assessor/internal/streaming"
)

// AgentFactory builds agents by role; satisfied by *agents.Factory.
type AgentFactory interface {
	Create(role string, config map[string]interface{}) (agents.Task, error)
}

// AssessmentStore is the persistence surface the activities need; satisfied
// by *db.Store.
type AssessmentStore interface {
	GetAssessment(ctx context.Context, id string) (*models.Assessment, error)
	SetCompletionFlags(ctx context.Context, id string, generated bool) error
	SaveAgentExecution(ctx context.Context, rec *db.AgentExecutionRecord) error
	SaveWorkflowResult(ctx context.Context, workflowID string, result *models.WorkflowResult) error
}

// Activities bundles the collaborator clients behind the activity methods.
// All dependencies are injected; there is no process-global state.
type Activities struct {
	factory    AgentFactory
	store      AssessmentStore
	streams    *streaming.Manager
	compliance services.ComplianceEngine
	cost       services.CostEngine
	reports    services.ReportEngine
	logger     *zap.Logger
}

// New wires the activity set. streams and store may be nil in tests; every
// use is guarded.
func New(
	factory AgentFactory,
	store AssessmentStore,
	streams *streaming.Manager,
	compliance services.ComplianceEngine,
	cost services.CostEngine,
	reports services.ReportEngine,
	logger *zap.Logger,
) *Activities {
	return &Activities{
		factory:    factory,
		store:      store,
		streams:    streams,
		compliance: compliance,
		cost:       cost,
		reports:    reports,
		logger:     logger,
	}
}

// publish is the best-effort event path shared by the runner and the emit
// activity. It never returns an error.
func (a *Activities) publish(evt streaming.Event) {
	if a.streams == nil {
		return
	}
	a.streams.Publish(evt.WorkflowID, evt)
}
