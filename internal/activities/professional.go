package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
)

// DefaultFrameworks are the regulatory frameworks evaluated when the caller
// supplies none.
var DefaultFrameworks = []string{"SOC2", "ISO27001", "GDPR", "HIPAA"}

// DefaultScenarios are the cost projection scenarios evaluated when the
// caller supplies none.
var DefaultScenarios = []string{"baseline", "optimized", "aggressive_migration"}

// AssessCompliance runs the compliance engine over the synthesized
// recommendations. Errors propagate: the workflow's professional-services
// fan-out converts them into an error slot without failing the sibling.
func (a *Activities) AssessCompliance(ctx context.Context, in ComplianceInput) (map[string]interface{}, error) {
	logger := activity.GetLogger(ctx)
	if a.compliance == nil {
		return nil, fmt.Errorf("compliance engine not configured")
	}
	frameworks := in.Frameworks
	if len(frameworks) == 0 {
		frameworks = DefaultFrameworks
	}
	report, err := a.compliance.Assess(ctx, in.Assessment, frameworks, in.Recommendations)
	if err != nil {
		return nil, fmt.Errorf("compliance assessment: %w", err)
	}
	logger.Info("Compliance assessment finished",
		"assessment_id", in.Assessment.ID,
		"frameworks", len(frameworks),
	)
	return report, nil
}

// GenerateCostProjections runs the cost modeling engine.
func (a *Activities) GenerateCostProjections(ctx context.Context, in CostInput) (map[string]interface{}, error) {
	logger := activity.GetLogger(ctx)
	if a.cost == nil {
		return nil, fmt.Errorf("cost engine not configured")
	}
	scenarios := in.Scenarios
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios
	}
	report, err := a.cost.GenerateProjections(ctx, in.Assessment, in.Recommendations, scenarios)
	if err != nil {
		return nil, fmt.Errorf("cost projections: %w", err)
	}
	logger.Info("Cost projections finished",
		"assessment_id", in.Assessment.ID,
		"scenarios", len(scenarios),
	)
	return report, nil
}
