// Package app wires the matcher's components from configuration. It is
// shared by the matcher and api-gateway binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/arnabghosh/compute-matcher/internal/config"
	"github.com/arnabghosh/compute-matcher/internal/mq"
	"github.com/arnabghosh/compute-matcher/internal/scheduler"
	"github.com/arnabghosh/compute-matcher/internal/settlement"
	"github.com/arnabghosh/compute-matcher/internal/storage"
	"github.com/arnabghosh/compute-matcher/internal/storage/inmemory"
	"github.com/arnabghosh/compute-matcher/internal/storage/mongodb"
	"github.com/prometheus/client_golang/prometheus"
)

// NewLogger builds the JSON logger used by every service
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// Stores holds the demand and resource repositories
type Stores struct {
	Demands   storage.DemandRepository
	Resources storage.ResourceRepository
	closeFn   func(ctx context.Context) error
}

// OpenStores opens the configured storage backend
func OpenStores(cfg config.StorageConfig, logger *slog.Logger) (*Stores, error) {
	switch cfg.Type {
	case "mongodb":
		store, err := mongodb.Open(cfg.MongoURI, cfg.Database, cfg.DemandCollection, cfg.ResourceCollection)
		if err != nil {
			return nil, err
		}
		logger.Info("Using MongoDB storage",
			"database", cfg.Database,
			"demand_collection", cfg.DemandCollection,
			"resource_collection", cfg.ResourceCollection,
		)
		return &Stores{Demands: store.Demands, Resources: store.Resources, closeFn: store.Close}, nil
	case "inmemory", "":
		logger.Info("Using in-memory storage")
		return &Stores{
			Demands:   inmemory.NewDemandRepository(),
			Resources: inmemory.NewResourceRepository(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// Source adapts the stores to the scheduler
func (s *Stores) Source() *storage.Source {
	return storage.NewSource(s.Demands, s.Resources)
}

// Close releases the backend connection
func (s *Stores) Close(ctx context.Context) error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn(ctx)
}

// Settlement bundles the match submission path and the demand lifecycle
type Settlement struct {
	Settler   scheduler.Settler
	Lifecycle *settlement.Lifecycle
	Escrow    *settlement.InMemoryEscrow

	// Set in queue mode only
	Queue    mq.MessageQueue
	Recorder *settlement.Recorder
}

// NewSettlement builds the settlement path. In queue mode the recorder is
// subscribed and the queue started; ctx bounds their lifetime.
func NewSettlement(ctx context.Context, cfg *config.Config, stores *Stores, maxReputation float64, logger *slog.Logger) (*Settlement, error) {
	escrow := settlement.NewInMemoryEscrow()
	direct := settlement.NewDirectSettler(stores.Demands, stores.Resources, escrow, logger)
	s := &Settlement{
		Settler:   direct,
		Lifecycle: settlement.NewLifecycle(stores.Demands, stores.Resources, escrow, maxReputation, logger),
		Escrow:    escrow,
	}
	if cfg.Settlement.Mode != "queue" {
		logger.Info("Submitting matches directly to the store")
		return s, nil
	}

	queue, err := newQueue(cfg, logger)
	if err != nil {
		return nil, err
	}

	recorder := settlement.NewRecorder(queue, direct, s.Lifecycle, cfg.Settlement.Topic, logger)
	if err := recorder.Subscribe(ctx); err != nil {
		return nil, err
	}
	if err := queue.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start message queue: %w", err)
	}
	go recorder.Run(ctx)

	s.Queue = queue
	s.Recorder = recorder
	s.Settler = settlement.NewQueueSettler(queue, direct, cfg.Settlement.Topic, cfg.Settlement.RatePerSecond, cfg.Settlement.Burst)

	logger.Info("Submitting matches through the queue",
		"topic", cfg.Settlement.Topic,
		"rate_per_sec", cfg.Settlement.RatePerSecond,
		"burst", cfg.Settlement.Burst,
	)
	return s, nil
}

// Stop drains the queue, if any
func (s *Settlement) Stop() error {
	if s.Queue == nil {
		return nil
	}
	return s.Queue.Stop()
}

func newQueue(cfg *config.Config, logger *slog.Logger) (mq.MessageQueue, error) {
	if cfg.Redis.URL == "" {
		logger.Info("Using in-memory queue")
		return mq.NewInMemoryQueue(mq.InMemoryQueueConfig{
			BufferSize: config.DefaultQueueBufferSize,
			Workers:    config.DefaultQueueWorkers,
		}, logger), nil
	}

	queue, err := mq.NewRedisQueue(mq.RedisQueueConfig{
		RedisURL:     cfg.Redis.URL,
		KeyPrefix:    config.DefaultRedisQueuePrefix,
		PollInterval: config.DefaultRedisPollInterval,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Using Redis queue", "prefix", config.DefaultRedisQueuePrefix)
	return queue, nil
}

// SchedulerDeps are the optional collaborators of NewScheduler
type SchedulerDeps struct {
	Registry prometheus.Registerer
	Sinks    []scheduler.ReportSink
}

// NewScheduler builds a scheduler over the stores. A Redis URL enables the
// distributed cycle lock. The returned cleanup releases the lock client.
func NewScheduler(schedCfg *scheduler.Config, cfg *config.Config, stores *Stores, settler scheduler.Settler, deps SchedulerDeps, logger *slog.Logger) (*scheduler.Scheduler, func(), error) {
	opts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithReportSinks(deps.Sinks...),
	}
	if deps.Registry != nil {
		opts = append(opts, scheduler.WithMetrics(scheduler.NewMetrics(deps.Registry)))
	}

	cleanup := func() {}
	if cfg.Redis.URL != "" {
		lock, err := scheduler.NewRedisCycleLock(cfg.Redis.URL, schedCfg.InstanceID, schedCfg.LockTTL, logger)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, scheduler.WithLock(lock))
		cleanup = func() { _ = lock.Close() }
		logger.Info("Distributed cycle lock enabled", "ttl", schedCfg.LockTTL)
	}

	sched, err := scheduler.New(schedCfg, stores.Source(), settler, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return sched, cleanup, nil
}
