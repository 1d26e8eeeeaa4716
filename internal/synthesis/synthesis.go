// Package synthesis merges the per-agent recommendation lists into one
// deduplicated, priority-ordered list. It is pure and deterministic so it can
// run inside workflow code.
package synthesis

import (
	"fmt"
	"sort"

	"github.com/atlasforge/assessor/internal/models"
)

// Result is the fan-in output consumed by the professional-services and
// reporting phases.
type Result struct {
	Recommendations []models.Recommendation `json:"recommendations"`
	// RawCount is the number of recommendations before deduplication.
	RawCount int `json:"raw_count"`
	// AgentData passes each completed agent's free-form payload through for
	// downstream phases that need non-recommendation fields.
	AgentData map[string]map[string]interface{} `json:"agent_data,omitempty"`
	// Error is set when synthesis itself failed; the list is then empty and
	// the workflow carries on rather than aborting.
	Error string `json:"error,omitempty"`
}

// Synthesize fans in agent results. Only completed entries contribute.
// Deduplication is by normalized title, first occurrence wins; because
// results arrive in roster order, ties resolve in roster-declaration order.
// Ordering is priority bucket first (critical and high hoisted), then impact
// score descending, and is stable so repeated runs yield identical output.
//
// Synthesis never fails the workflow: any internal error surfaces as an
// empty list with Error set.
func Synthesize(results []models.AgentExecutionResult) (out Result) {
	defer func() {
		if r := recover(); r != nil {
			out = Result{Recommendations: []models.Recommendation{}, Error: fmt.Sprintf("synthesis failed: %v", r)}
		}
	}()

	out.Recommendations = []models.Recommendation{}
	for _, res := range results {
		if res.Status != models.AgentCompleted {
			continue
		}
		out.RawCount += len(res.Recommendations)
		if len(res.Data) > 0 {
			if out.AgentData == nil {
				out.AgentData = make(map[string]map[string]interface{})
			}
			out.AgentData[res.Role] = res.Data
		}
	}

	seen := make(map[string]bool, out.RawCount)
	for _, res := range results {
		if res.Status != models.AgentCompleted {
			continue
		}
		for _, rec := range res.Recommendations {
			key := rec.NormalizedTitle()
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out.Recommendations = append(out.Recommendations, rec)
		}
	}

	sort.SliceStable(out.Recommendations, func(i, j int) bool {
		a, b := out.Recommendations[i], out.Recommendations[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		return impactScore(a) > impactScore(b)
	})
	return out
}

// impactScore blends confidence with an agent-supplied impact field when one
// is present; both are already clamped to [0,1].
func impactScore(rec models.Recommendation) float64 {
	if v, ok := rec.Extra["impact"]; ok {
		if f, ok := toFloat(v); ok {
			return (rec.Confidence + clamp01(f)) / 2
		}
	}
	return rec.Confidence
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	}
	return 0, false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
