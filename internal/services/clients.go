// Package services holds thin HTTP clients for the external analysis
// engines the workflow calls into. The engines are black boxes: the
// orchestrator only cares about their request/response shapes.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atlasforge/assessor/internal/models"
	"github.com/atlasforge/assessor/internal/tracing"
)

// ComplianceEngine evaluates synthesized recommendations against a set of
// regulatory frameworks.
type ComplianceEngine interface {
	Assess(ctx context.Context, assessment models.Assessment, frameworks []string, recs []models.Recommendation) (map[string]interface{}, error)
}

// CostEngine projects cost scenarios for the synthesized recommendations.
type CostEngine interface {
	GenerateProjections(ctx context.Context, assessment models.Assessment, recs []models.Recommendation, scenarios []string) (map[string]interface{}, error)
}

// ReportEngine renders the final report bundle (executive, technical,
// stakeholder documents).
type ReportEngine interface {
	GenerateAllReports(ctx context.Context, assessment models.Assessment, synthesis, professional map[string]interface{}) (map[string]interface{}, error)
}

// HTTPClientConfig configures the engine clients.
type HTTPClientConfig struct {
	ComplianceURL string
	CostURL       string
	ReportURL     string
	Timeout       time.Duration
}

// HTTPEngines implements all three engine interfaces over HTTP.
type HTTPEngines struct {
	cfg    HTTPClientConfig
	client *http.Client
}

// NewHTTPEngines creates the engine client set.
func NewHTTPEngines(cfg HTTPClientConfig) *HTTPEngines {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &HTTPEngines{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (e *HTTPEngines) Assess(ctx context.Context, assessment models.Assessment, frameworks []string, recs []models.Recommendation) (map[string]interface{}, error) {
	return e.post(ctx, e.cfg.ComplianceURL+"/compliance/assess", map[string]interface{}{
		"assessment_id":   assessment.ID,
		"organization":    assessment.OrganizationName,
		"frameworks":      frameworks,
		"recommendations": recs,
	})
}

func (e *HTTPEngines) GenerateProjections(ctx context.Context, assessment models.Assessment, recs []models.Recommendation, scenarios []string) (map[string]interface{}, error) {
	return e.post(ctx, e.cfg.CostURL+"/cost/projections", map[string]interface{}{
		"assessment_id":     assessment.ID,
		"technical_profile": assessment.TechnicalProfile,
		"recommendations":   recs,
		"scenarios":         scenarios,
	})
}

func (e *HTTPEngines) GenerateAllReports(ctx context.Context, assessment models.Assessment, synthesis, professional map[string]interface{}) (map[string]interface{}, error) {
	return e.post(ctx, e.cfg.ReportURL+"/reports/generate", map[string]interface{}{
		"assessment_id":         assessment.ID,
		"organization":          assessment.OrganizationName,
		"synthesis":             synthesis,
		"professional_services": professional,
	})
}

func (e *HTTPEngines) post(ctx context.Context, url string, payload interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned HTTP %d: %s", url, resp.StatusCode, string(snippet))
	}
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
