package agents

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskSpec is one entry in the fixed agent roster: which capability runs,
// which analysis operation it invokes, and how long it may take. Immutable
// once the workflow is constructed.
type TaskSpec struct {
	Role      string        `yaml:"role"`
	Operation string        `yaml:"operation"`
	Timeout   time.Duration `yaml:"-"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DefaultRoster is the built-in ten-capability roster. Order matters:
// synthesis dedup ties resolve in favor of the earlier roster entry.
func DefaultRoster() []TaskSpec {
	return []TaskSpec{
		{Role: "strategic", Operation: "strategic_analysis", Timeout: 240 * time.Second},
		{Role: "technical", Operation: "technical_analysis", Timeout: 240 * time.Second},
		{Role: "market_research", Operation: "market_research", Timeout: 300 * time.Second},
		{Role: "ml_ops", Operation: "mlops_assessment", Timeout: 240 * time.Second},
		{Role: "infrastructure", Operation: "infrastructure_review", Timeout: 240 * time.Second},
		{Role: "compliance", Operation: "compliance_scan", Timeout: 180 * time.Second},
		{Role: "ai_integration", Operation: "ai_integration_plan", Timeout: 240 * time.Second},
		{Role: "web_intelligence", Operation: "web_intelligence", Timeout: 300 * time.Second},
		{Role: "simulation", Operation: "scenario_simulation", Timeout: 300 * time.Second},
		{Role: "support_setup", Operation: "support_setup_plan", Timeout: 120 * time.Second},
	}
}

type rosterDoc struct {
	Agents []TaskSpec `yaml:"agents"`
}

// LoadRoster reads a roster override file. Entries missing a timeout get the
// default for their role, or 240s for roles the default roster doesn't know.
func LoadRoster(path string) ([]TaskSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	var doc rosterDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(doc.Agents) == 0 {
		return nil, fmt.Errorf("roster %s declares no agents", path)
	}
	defaults := make(map[string]TaskSpec, len(DefaultRoster()))
	for _, s := range DefaultRoster() {
		defaults[s.Role] = s
	}
	specs := make([]TaskSpec, 0, len(doc.Agents))
	seen := make(map[string]bool, len(doc.Agents))
	for _, s := range doc.Agents {
		if s.Role == "" {
			return nil, fmt.Errorf("roster %s contains an entry without a role", path)
		}
		if seen[s.Role] {
			return nil, fmt.Errorf("roster %s declares role %q twice", path, s.Role)
		}
		seen[s.Role] = true
		if s.TimeoutSeconds > 0 {
			s.Timeout = time.Duration(s.TimeoutSeconds) * time.Second
		} else if d, ok := defaults[s.Role]; ok {
			s.Timeout = d.Timeout
		} else {
			s.Timeout = 240 * time.Second
		}
		if s.Operation == "" {
			if d, ok := defaults[s.Role]; ok {
				s.Operation = d.Operation
			} else {
				s.Operation = s.Role
			}
		}
		specs = append(specs, s)
	}
	return specs, nil
}
