package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
)

// GenerateAssessmentReports delegates to the report generator for the final
// artifacts. A failure here is caught by the workflow's reporting guard and
// does not invalidate earlier phases' results.
func (a *Activities) GenerateAssessmentReports(ctx context.Context, in ReportInput) (map[string]interface{}, error) {
	logger := activity.GetLogger(ctx)
	if a.reports == nil {
		return nil, fmt.Errorf("report engine not configured")
	}
	bundle, err := a.reports.GenerateAllReports(ctx, in.Assessment, in.Synthesis, in.Professional)
	if err != nil {
		return nil, fmt.Errorf("report generation: %w", err)
	}
	logger.Info("Report bundle generated", "assessment_id", in.Assessment.ID)
	return bundle, nil
}
