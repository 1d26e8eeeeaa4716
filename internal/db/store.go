package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/atlasforge/assessor/internal/models"
)

// Store persists assessments and execution records. The workflow reaches it
// only through activities.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore creates a store over an existing pool.
func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

type assessmentRow struct {
	ID                       string    `db:"id"`
	OrganizationName         string    `db:"organization_name"`
	BusinessGoals            []byte    `db:"business_goals"`
	TechnicalProfile         []byte    `db:"technical_profile"`
	RecommendationsGenerated bool      `db:"recommendations_generated"`
	ReportsGenerated         bool      `db:"reports_generated"`
	CreatedAt                time.Time `db:"created_at"`
	UpdatedAt                time.Time `db:"updated_at"`
}

// GetAssessment loads one assessment by id.
func (s *Store) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	var row assessmentRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, organization_name, business_goals, technical_profile,
		       recommendations_generated, reports_generated, created_at, updated_at
		FROM assessments WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("assessment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load assessment %s: %w", id, err)
	}

	a := &models.Assessment{
		ID:                       row.ID,
		OrganizationName:         row.OrganizationName,
		RecommendationsGenerated: row.RecommendationsGenerated,
		ReportsGenerated:         row.ReportsGenerated,
		CreatedAt:                row.CreatedAt,
		UpdatedAt:                row.UpdatedAt,
	}
	if len(row.BusinessGoals) > 0 {
		if err := json.Unmarshal(row.BusinessGoals, &a.BusinessGoals); err != nil {
			s.logger.Warn("Malformed business_goals payload", zap.String("assessment_id", id), zap.Error(err))
		}
	}
	if len(row.TechnicalProfile) > 0 {
		if err := json.Unmarshal(row.TechnicalProfile, &a.TechnicalProfile); err != nil {
			s.logger.Warn("Malformed technical_profile payload", zap.String("assessment_id", id), zap.Error(err))
		}
	}
	return a, nil
}

// SetCompletionFlags writes both completion flags in one statement. Called
// exactly once per terminal workflow state: generated=true on success,
// generated=false on failure.
func (s *Store) SetCompletionFlags(ctx context.Context, id string, generated bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE assessments
		SET recommendations_generated = $2, reports_generated = $2, updated_at = NOW()
		WHERE id = $1`, id, generated)
	if err != nil {
		return fmt.Errorf("update completion flags for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("assessment %s not found", id)
	}
	return nil
}

// AgentExecutionRecord is one agent run persisted for the audit trail.
type AgentExecutionRecord struct {
	ID           string `db:"id"`
	WorkflowID   string `db:"workflow_id"`
	AssessmentID string `db:"assessment_id"`
	Role         string `db:"role"`
	Status       string `db:"status"`
	Error        string `db:"error"`
	DurationMs   int64  `db:"duration_ms"`
	RecCount     int    `db:"recommendation_count"`
}

// SaveAgentExecution records one agent run. Fire-and-forget from the
// workflow's perspective.
func (s *Store) SaveAgentExecution(ctx context.Context, rec *AgentExecutionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_executions
			(id, workflow_id, assessment_id, role, status, error, duration_ms, recommendation_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		rec.ID, rec.WorkflowID, rec.AssessmentID, rec.Role, rec.Status,
		rec.Error, rec.DurationMs, rec.RecCount)
	if err != nil {
		return fmt.Errorf("save agent execution %s/%s: %w", rec.WorkflowID, rec.Role, err)
	}
	return nil
}

// SaveWorkflowResult records the terminal result of one run.
func (s *Store) SaveWorkflowResult(ctx context.Context, workflowID string, result *models.WorkflowResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode workflow result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_results
			(workflow_id, assessment_id, status, error, execution_time_ms, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		workflowID, result.AssessmentID, string(result.Status), result.Error,
		result.ExecutionTimeMs, payload)
	if err != nil {
		return fmt.Errorf("save workflow result %s: %w", workflowID, err)
	}
	return nil
}
