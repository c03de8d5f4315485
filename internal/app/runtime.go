// Package app assembles the workflow runtime shared by the API server and workflowctl.
package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/outbox"
	"github.com/spec-kit/workflow-service/internal/persistence"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/repository/memory"
	"github.com/spec-kit/workflow-service/internal/service"
	"github.com/spec-kit/workflow-service/internal/upstream"
	"github.com/spec-kit/workflow-service/internal/worker"
)

// Runtime holds every long-lived component of the workflow service.
type Runtime struct {
	Config     *config.Config
	Logger     *zap.Logger
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Store      repository.Store
	Outbox     outbox.Queue
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Services   *service.Services
	Reconciler *worker.Reconciler
}

// Options tweaks bootstrap behaviour per entrypoint.
type Options struct {
	// RunMigrations applies SQL migrations when the postgres driver is used and
	// POSTGRES_RUN_MIGRATIONS is enabled.
	RunMigrations bool
}

// Bootstrap connects storage and builds the services. The postgres driver pairs
// with Redis for the outbox and event stream; the memory driver is self-contained.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Runtime, error) {
	rt := &Runtime{
		Config:     cfg,
		Logger:     logger,
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    observability.NewMetrics(),
	}

	var sinks []events.EventHandler
	switch cfg.App.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; state is lost on restart")
		rt.Store = memory.NewStore()
		rt.Outbox = outbox.NewMemoryQueue()
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		rt.Postgres = pg
		if pg.PoolHandle() == nil {
			return nil, errors.New("POSTGRES_DSN is required by the postgres store driver")
		}
		if opts.RunMigrations && cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				rt.Close()
				return nil, err
			}
		}
		rt.Store = repository.NewPostgresStore(pg.PoolHandle())

		rt.Redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		rt.Outbox = outbox.NewRedisQueue(rt.Redis.Client, cfg.Workflow.OutboxKey)
		sinks = append(sinks, events.NewStreamSink(rt.Redis.Client, cfg.Workflow.EventStream, logger).Handle)
	}

	worker.StartNotificationWorker(service.NewNotificationService(rt.Dispatcher, logger.Named("events"), sinks...))

	tickets := upstream.NewTicketClient(cfg.Upstream, logger)
	policy := cfg.Authority.Policy()
	rt.Services = service.New(service.Dependencies{
		Store:      rt.Store,
		Tickets:    tickets,
		Identity:   upstream.NewIdentityClient(cfg.Upstream, logger),
		Outbox:     rt.Outbox,
		Dispatcher: rt.Dispatcher,
		Metrics:    rt.Metrics,
		Logger:     logger,
		Policy:     &policy,
	})
	rt.Reconciler = worker.NewReconciler(worker.ReconcilerDependencies{
		Queue:       rt.Outbox,
		Tickets:     tickets,
		States:      rt.Store.States,
		Metrics:     rt.Metrics,
		Logger:      logger,
		MaxAttempts: cfg.Workflow.MaxNotifyAttempts,
	})
	return rt, nil
}

// Close releases connections.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	r.Redis.Close()
	r.Postgres.Close()
}
