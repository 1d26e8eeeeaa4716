package agents

import (
	"context"

	"github.com/atlasforge/assessor/internal/models"
)

// Output is what an agent hands back to the runner: recommendation records
// plus a free-form payload downstream phases may consume.
type Output struct {
	Recommendations []models.Recommendation `json:"recommendations"`
	Data            map[string]interface{}  `json:"data,omitempty"`
}

// Task is the uniform capability interface. How an agent computes its
// recommendations (LLM calls, pricing APIs, crawlers) is opaque to the
// orchestrator; only the result shape and the deadline are contractual.
type Task interface {
	Role() string
	Execute(ctx context.Context, assessment models.Assessment, taskCtx map[string]interface{}) (*Output, error)
}
