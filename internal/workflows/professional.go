package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/atlasforge/assessor/internal/activities"
	"github.com/atlasforge/assessor/internal/constants"
	"github.com/atlasforge/assessor/internal/models"
)

// runProfessionalServices fans out the compliance assessment and the cost
// modeling concurrently and joins both. The returned map always carries both
// keys: a failed branch contributes {"error": message} in its slot while the
// other branch's output is kept intact.
func runProfessionalServices(
	ctx workflow.Context,
	assessment models.Assessment,
	recs []models.Recommendation,
	frameworks, scenarios []string,
) map[string]interface{} {
	opts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	aCtx := workflow.WithActivityOptions(ctx, opts)

	complianceFut := workflow.ExecuteActivity(aCtx, constants.AssessComplianceActivity, activities.ComplianceInput{
		Assessment:      assessment,
		Frameworks:      frameworks,
		Recommendations: recs,
	})
	costFut := workflow.ExecuteActivity(aCtx, constants.GenerateCostActivity, activities.CostInput{
		Assessment:      assessment,
		Recommendations: recs,
		Scenarios:       scenarios,
	})

	out := make(map[string]interface{}, 2)

	var compliance map[string]interface{}
	if err := complianceFut.Get(ctx, &compliance); err != nil {
		workflow.GetLogger(ctx).Error("Compliance assessment failed", "error", err)
		out["compliance"] = map[string]interface{}{"error": err.Error()}
	} else {
		out["compliance"] = compliance
	}

	var cost map[string]interface{}
	if err := costFut.Get(ctx, &cost); err != nil {
		workflow.GetLogger(ctx).Error("Cost modeling failed", "error", err)
		out["cost_modeling"] = map[string]interface{}{"error": err.Error()}
	} else {
		out["cost_modeling"] = cost
	}

	return out
}
