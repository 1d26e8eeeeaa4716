package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/atlasforge/assessor/internal/models"
	"github.com/atlasforge/assessor/internal/tracing"
)

// llmAgent calls the analysis service's operation endpoint for its role.
// One implementation covers every roster role; the operation name selects
// the prompt pipeline server-side.
type llmAgent struct {
	role      string
	operation string
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func (a *llmAgent) Role() string { return a.role }

type agentRequest struct {
	AssessmentID     string                 `json:"assessment_id"`
	OrganizationName string                 `json:"organization_name"`
	BusinessGoals    map[string]interface{} `json:"business_goals,omitempty"`
	TechnicalProfile map[string]interface{} `json:"technical_profile,omitempty"`
	Context          map[string]interface{} `json:"context,omitempty"`
}

type agentResponse struct {
	Recommendations []map[string]interface{} `json:"recommendations"`
	Data            map[string]interface{}   `json:"data"`
}

func (a *llmAgent) Execute(ctx context.Context, assessment models.Assessment, taskCtx map[string]interface{}) (*Output, error) {
	ctx, span := tracing.StartSpan(ctx, "agent."+a.role)
	defer span.End()

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(agentRequest{
		AssessmentID:     assessment.ID,
		OrganizationName: assessment.OrganizationName,
		BusinessGoals:    assessment.BusinessGoals,
		TechnicalProfile: assessment.TechnicalProfile,
		Context:          taskCtx,
	})
	if err != nil {
		return nil, fmt.Errorf("encode agent request: %w", err)
	}

	url := fmt.Sprintf("%s/agents/%s", a.baseURL, a.operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent %s call: %w", a.role, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("agent %s returned HTTP %d: %s", a.role, resp.StatusCode, string(snippet))
	}

	var parsed agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode agent %s response: %w", a.role, err)
	}

	out := &Output{Data: parsed.Data}
	for _, raw := range parsed.Recommendations {
		rec := models.RecommendationFromMap(raw)
		if rec.Title == "" {
			a.logger.Debug("Dropping untitled recommendation", zap.String("role", a.role))
			continue
		}
		if rec.SourceAgent == "" {
			rec.SourceAgent = a.role
		}
		out.Recommendations = append(out.Recommendations, rec)
	}
	return out, nil
}
