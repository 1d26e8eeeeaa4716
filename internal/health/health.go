// Package health runs dependency checks for the worker's admin endpoints.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status classifies one check's outcome.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is one check's outcome at a point in time.
type Result struct {
	Component string        `json:"component"`
	Status    Status        `json:"-"`
	StatusStr string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Critical  bool          `json:"critical"`
}

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
	// Critical checks gate readiness; non-critical ones only degrade.
	Critical() bool
}

// Overall is the aggregate across all registered checks.
type Overall struct {
	Status    Status            `json:"-"`
	StatusStr string            `json:"status"`
	Ready     bool              `json:"ready"`
	Checks    map[string]Result `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// Manager fans checks out concurrently with a per-check timeout.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
	logger   *zap.Logger
}

func NewManager(checkTimeout time.Duration, logger *zap.Logger) *Manager {
	if checkTimeout <= 0 {
		checkTimeout = 5 * time.Second
	}
	return &Manager{timeout: checkTimeout, logger: logger}
}

// Register adds a checker. Safe to call during startup wiring only.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Check runs every registered checker and aggregates. Unhealthy critical
// checks make the whole service unhealthy and not ready; non-critical
// failures degrade only.
func (m *Manager) Check(ctx context.Context) Overall {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	results := make([]Result, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			start := time.Now()
			res := c.Check(cctx)
			res.Component = c.Name()
			res.Critical = c.Critical()
			res.Duration = time.Since(start)
			res.StatusStr = res.Status.String()
			results[i] = res
		}(i, c)
	}
	wg.Wait()

	overall := Overall{
		Status:    StatusHealthy,
		Ready:     true,
		Checks:    make(map[string]Result, len(results)),
		Timestamp: time.Now(),
	}
	for _, res := range results {
		overall.Checks[res.Component] = res
		if res.Status == StatusHealthy {
			continue
		}
		if res.Critical {
			overall.Status = StatusUnhealthy
			overall.Ready = false
			m.logger.Warn("Critical health check failing",
				zap.String("component", res.Component),
				zap.String("error", res.Error),
			)
		} else if overall.Status == StatusHealthy {
			overall.Status = StatusDegraded
		}
	}
	overall.StatusStr = overall.Status.String()
	return overall
}
