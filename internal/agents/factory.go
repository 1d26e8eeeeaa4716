package agents

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FactoryConfig configures agent construction. The rate limit is shared
// across all agents created by one factory so a full-roster fan-out does not
// stampede the analysis service.
type FactoryConfig struct {
	AnalysisBaseURL   string
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
}

// Factory builds agents by role so the orchestrator never constructs them
// directly. It is safe for concurrent use.
type Factory struct {
	cfg     FactoryConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu     sync.RWMutex
	roster map[string]TaskSpec
}

// NewFactory creates a factory over the given roster.
func NewFactory(cfg FactoryConfig, roster []TaskSpec, logger *zap.Logger) *Factory {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 5 * time.Minute
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	byRole := make(map[string]TaskSpec, len(roster))
	for _, s := range roster {
		byRole[s.Role] = s
	}
	return &Factory{
		cfg:     cfg,
		roster:  byRole,
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger,
	}
}

// Create builds the agent for a role. An empty config map means "use role
// defaults"; an override map may replace the operation name. Callers must
// treat a construction error as recoverable: the runner substitutes a
// degraded result instead of failing the phase.
func (f *Factory) Create(role string, config map[string]interface{}) (Task, error) {
	f.mu.RLock()
	spec, ok := f.roster[role]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown agent role %q", role)
	}
	operation := spec.Operation
	if config != nil {
		if op, ok := config["operation"].(string); ok && op != "" {
			operation = op
		}
	}
	if f.cfg.AnalysisBaseURL == "" {
		return nil, fmt.Errorf("agent role %q: analysis service endpoint not configured", role)
	}
	return &llmAgent{
		role:      role,
		operation: operation,
		baseURL:   f.cfg.AnalysisBaseURL,
		client:    f.client,
		limiter:   f.limiter,
		logger:    f.logger,
	}, nil
}

// UpdateRoster swaps the role table, typically from a roster hot-reload.
// Agents already constructed keep their original operation.
func (f *Factory) UpdateRoster(roster []TaskSpec) {
	byRole := make(map[string]TaskSpec, len(roster))
	for _, s := range roster {
		byRole[s.Role] = s
	}
	f.mu.Lock()
	f.roster = byRole
	f.mu.Unlock()
}

// Roles lists the roles this factory can build. Order is not guaranteed;
// callers needing order use the roster itself.
func (f *Factory) Roles() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	roles := make([]string, 0, len(f.roster))
	for r := range f.roster {
		roles = append(roles, r)
	}
	return roles
}
