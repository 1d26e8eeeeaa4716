package health

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// DBChecker pings the Postgres pool. Critical: without the store the worker
// cannot load assessments or persist completion flags.
type DBChecker struct {
	db *sqlx.DB
}

func NewDBChecker(db *sqlx.DB) *DBChecker { return &DBChecker{db: db} }

func (c *DBChecker) Name() string   { return "postgres" }
func (c *DBChecker) Critical() bool { return true }

func (c *DBChecker) Check(ctx context.Context) Result {
	if err := c.db.PingContext(ctx); err != nil {
		return Result{Status: StatusUnhealthy, Error: err.Error()}
	}
	return Result{Status: StatusHealthy}
}

// RedisChecker pings the event mirror. Non-critical: event streaming is
// best-effort and workflows proceed without it.
type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker { return &RedisChecker{client: client} }

func (c *RedisChecker) Name() string   { return "redis" }
func (c *RedisChecker) Critical() bool { return false }

func (c *RedisChecker) Check(ctx context.Context) Result {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return Result{Status: StatusDegraded, Error: err.Error()}
	}
	return Result{Status: StatusHealthy}
}

// TemporalChecker reports whether the worker ever connected. The SDK owns
// reconnection, so this is a startup gate rather than a live probe.
type TemporalChecker struct {
	connected func() bool
}

func NewTemporalChecker(connected func() bool) *TemporalChecker {
	return &TemporalChecker{connected: connected}
}

func (c *TemporalChecker) Name() string   { return "temporal" }
func (c *TemporalChecker) Critical() bool { return true }

func (c *TemporalChecker) Check(ctx context.Context) Result {
	if !c.connected() {
		return Result{Status: StatusUnhealthy, Error: "not connected"}
	}
	return Result{Status: StatusHealthy}
}
