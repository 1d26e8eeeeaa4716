package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/atlasforge/assessor/internal/models"
)

// LoadAssessment fetches the assessment from the store. The workflow treats
// the returned object as read-only apart from the completion flags.
func (a *Activities) LoadAssessment(ctx context.Context, in LoadAssessmentInput) (models.Assessment, error) {
	if a.store == nil {
		return models.Assessment{}, fmt.Errorf("assessment store not configured")
	}
	assessment, err := a.store.GetAssessment(ctx, in.AssessmentID)
	if err != nil {
		return models.Assessment{}, err
	}
	return *assessment, nil
}

// ValidateAssessment is the one phase whose failure is fatal: a rejected
// assessment means the agent roster is never launched.
func (a *Activities) ValidateAssessment(ctx context.Context, in ValidateAssessmentInput) error {
	logger := activity.GetLogger(ctx)

	if in.Assessment.ID == "" {
		return fmt.Errorf("assessment has no id")
	}
	if in.Assessment.OrganizationName == "" {
		return fmt.Errorf("assessment %s has no organization name", in.Assessment.ID)
	}
	if len(in.Assessment.BusinessGoals) == 0 && len(in.Assessment.TechnicalProfile) == 0 {
		return fmt.Errorf("assessment %s carries neither business goals nor a technical profile", in.Assessment.ID)
	}

	logger.Info("Assessment validated", "assessment_id", in.Assessment.ID)
	return nil
}
