// Assessment worker: hosts the orchestration workflow, its activities, and
// the admin surface (health probes, Prometheus metrics, live event feeds).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/atlasforge/assessor/internal/activities"
	"github.com/atlasforge/assessor/internal/agents"
	"github.com/atlasforge/assessor/internal/config"
	"github.com/atlasforge/assessor/internal/constants"
	"github.com/atlasforge/assessor/internal/db"
	"github.com/atlasforge/assessor/internal/health"
	"github.com/atlasforge/assessor/internal/httpapi"
	"github.com/atlasforge/assessor/internal/services"
	"github.com/atlasforge/assessor/internal/streaming"
	"github.com/atlasforge/assessor/internal/temporalx"
	"github.com/atlasforge/assessor/internal/tracing"
	"github.com/atlasforge/assessor/internal/workflows"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("Worker exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTracing, err := tracing.Initialize(cfg.Tracing.Enabled, cfg.Tracing.Endpoint, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// Postgres: assessments, agent execution audit trail, workflow results.
	dbClient, err := db.NewClient(&db.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbClient.Close()
	store := db.NewStore(dbClient.DB(), logger)

	// Redis mirrors the live event feed for out-of-process consumers. The
	// worker runs without it, degraded.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	streamMgr := streaming.NewManager(cfg.Streaming.RingCapacity)
	redisSink := streaming.NewRedisSink(redisClient, int64(cfg.Streaming.RedisMaxLen), cfg.Streaming.RedisTTL(), logger)
	streamMgr.SetSink(redisSink)

	// Agent roster: built-in by default, hot-reloaded from file when
	// configured. Reloads swap the factory's role table; runs already in
	// flight keep the roster they started with.
	roster := agents.DefaultRoster()
	var watcher *config.RosterWatcher
	if cfg.RosterPath != "" {
		watcher, err = config.NewRosterWatcher(cfg.RosterPath, logger)
		if err != nil {
			return fmt.Errorf("load roster %s: %w", cfg.RosterPath, err)
		}
		defer watcher.Close()
		roster = watcher.Roster()
	}

	factory := agents.NewFactory(agents.FactoryConfig{
		AnalysisBaseURL:   cfg.Engines.AnalysisBaseURL,
		RequestsPerSecond: cfg.Engines.RequestsPerSecond,
		HTTPTimeout:       cfg.Engines.HTTPTimeout(),
	}, roster, logger)
	if watcher != nil {
		watcher.OnChange(factory.UpdateRoster)
	}

	engines := services.NewHTTPEngines(services.HTTPClientConfig{
		ComplianceURL: cfg.Engines.ProfessionalBaseURL,
		CostURL:       cfg.Engines.ProfessionalBaseURL,
		ReportURL:     cfg.Engines.ProfessionalBaseURL,
		Timeout:       cfg.Engines.HTTPTimeout(),
	})

	acts := activities.New(factory, store, streamMgr, engines, engines, engines, logger)

	// Admin HTTP: health probes, metrics, and the live event feeds share
	// one port.
	temporalUp := make(chan struct{})
	healthMgr := health.NewManager(5*time.Second, logger)
	healthMgr.Register(health.NewDBChecker(dbClient.DB()))
	healthMgr.Register(health.NewRedisChecker(redisClient))
	healthMgr.Register(health.NewTemporalChecker(func() bool {
		select {
		case <-temporalUp:
			return true
		default:
			return false
		}
	}))

	mux := http.NewServeMux()
	health.NewHTTPHandler(healthMgr, logger).RegisterRoutes(mux)
	mux.Handle(cfg.Service.MetricsPath, promhttp.Handler())
	streamHandler := httpapi.NewStreamHandler(streamMgr, logger)
	streamHandler.SetBacklog(redisSink)
	streamHandler.RegisterRoutes(mux)

	adminAddr := fmt.Sprintf(":%d", cfg.Service.AdminPort)
	adminSrv := &http.Server{Addr: adminAddr, Handler: mux}
	go func() {
		logger.Info("Admin HTTP server listening", zap.String("addr", adminAddr))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin HTTP server failed", zap.Error(err))
		}
	}()

	tClient, err := dialTemporal(cfg.Temporal, logger)
	if err != nil {
		return err
	}
	defer tClient.Close()
	close(temporalUp)

	wk := worker.New(tClient, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: 50,
	})
	wk.RegisterWorkflowWithOptions(workflows.AssessmentWorkflow, workflow.RegisterOptions{
		Name: constants.AssessmentWorkflowName,
	})
	registerActivities(wk, acts)

	logger.Info("Assessment worker started",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("namespace", cfg.Temporal.Namespace),
	)
	errCh := make(chan error, 1)
	go func() { errCh <- wk.Run(worker.InterruptCh()) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker run: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = adminSrv.Shutdown(ctx)
	return nil
}

// dialTemporal waits for the endpoint, then dials with backoff. The worker
// is useless without Temporal, so startup blocks rather than failing fast.
func dialTemporal(cfg config.TemporalConfig, logger *zap.Logger) (client.Client, error) {
	for i := 1; i <= 60; i++ {
		c, err := net.DialTimeout("tcp", cfg.HostPort, 2*time.Second)
		if err == nil {
			c.Close()
			break
		}
		logger.Warn("Waiting for Temporal endpoint",
			zap.String("host_port", cfg.HostPort),
			zap.Int("attempt", i),
		)
		time.Sleep(time.Second)
	}

	var lastErr error
	for attempt := 1; attempt <= 30; attempt++ {
		tClient, err := client.Dial(client.Options{
			HostPort:  cfg.HostPort,
			Namespace: cfg.Namespace,
			Logger:    temporalx.NewZapAdapter(logger),
		})
		if err == nil {
			return tClient, nil
		}
		lastErr = err
		delay := time.Duration(attempt) * time.Second
		if delay > 15*time.Second {
			delay = 15 * time.Second
		}
		logger.Warn("Temporal not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("sleep", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("dial temporal at %s: %w", cfg.HostPort, lastErr)
}

// registerActivities binds each activity under its stable wire name so
// workflow code and mocks reference strings, not function identities.
func registerActivities(wk worker.Worker, acts *activities.Activities) {
	for name, fn := range map[string]interface{}{
		constants.LoadAssessmentActivity:        acts.LoadAssessment,
		constants.ValidateAssessmentActivity:    acts.ValidateAssessment,
		constants.ExecuteAgentActivity:          acts.ExecuteAssessmentAgent,
		constants.AssessComplianceActivity:      acts.AssessCompliance,
		constants.GenerateCostActivity:          acts.GenerateCostProjections,
		constants.GenerateReportsActivity:       acts.GenerateAssessmentReports,
		constants.UpdateFlagsActivity:           acts.UpdateAssessmentFlags,
		constants.EmitEventActivity:             acts.EmitAssessmentEvent,
		constants.PersistAgentExecutionActivity: acts.PersistAgentExecution,
		constants.PersistWorkflowResultActivity: acts.PersistWorkflowResult,
	} {
		wk.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	}
}
