package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/engine"
	"github.com/google/uuid"
)

// Source supplies the inputs of a cycle
type Source interface {
	FetchPendingDemands(ctx context.Context, status domain.DemandStatus) ([]*domain.Demand, error)
	FetchAvailableResources(ctx context.Context) ([]*domain.Resource, error)
}

// Settler records a selected match and returns a transaction reference
type Settler interface {
	SubmitMatch(ctx context.Context, demandID, resourceID string) (string, error)
}

// ReportSink receives every completed cycle report
type ReportSink interface {
	Publish(ctx context.Context, report *domain.CycleReport)
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLock serializes cycles across instances
func WithLock(lock CycleLock) Option {
	return func(s *Scheduler) { s.lock = lock }
}

// WithReportSinks adds receivers for cycle reports
func WithReportSinks(sinks ...ReportSink) Option {
	return func(s *Scheduler) { s.sinks = append(s.sinks, sinks...) }
}

// WithMetrics exports cycle metrics through Prometheus collectors
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler runs allocation cycles on a fixed interval
type Scheduler struct {
	config    *Config
	source    Source
	settler   Settler
	allocator *engine.Allocator
	lock      CycleLock
	sinks     []ReportSink
	metrics   *Metrics
	logger    *slog.Logger

	// lifecycle of the tick loop
	mu      sync.Mutex
	cancel  context.CancelFunc
	loop    sync.WaitGroup
	cycles  sync.WaitGroup
	running atomic.Bool

	inProgress atomic.Bool
	durations  *durationWindow

	cyclesRun      atomic.Int64
	totalMatched   atomic.Int64
	totalUnmatched atomic.Int64
	totalRejected  atomic.Int64
	submitFailures atomic.Int64
	cycleFailures  atomic.Int64
	skippedTicks   atomic.Int64
	lastRun        atomic.Int64 // unix nanoseconds
	avgDuration    atomic.Int64
	stdDevDuration atomic.Int64
}

// New creates a scheduler. Invalid configuration is reported here.
func New(cfg *Config, source Source, settler Settler, opts ...Option) (*Scheduler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if source == nil || settler == nil {
		return nil, fmt.Errorf("%w: source and settler are required", domain.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		config:    cfg,
		source:    source,
		settler:   settler,
		logger:    slog.Default(),
		durations: newDurationWindow(cfg.DurationWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	base := s.logger
	s.logger = base.With("component", "scheduler", "instance_id", cfg.InstanceID)

	allocator, err := engine.NewAllocator(cfg.Engine, base)
	if err != nil {
		return nil, err
	}
	s.allocator = allocator
	return s, nil
}

// Start runs a cycle immediately and then one per interval until Stop or ctx
// cancellation. Calling Start on a running scheduler does nothing. A
// non-positive interval falls back to the configured cycle interval.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return
	}
	if interval <= 0 {
		interval = s.config.CycleInterval
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running.Store(true)

	s.logger.Info("Starting cycle scheduler",
		"interval", interval,
		"max_batch_size", s.config.MaxBatchSize,
		"threshold", s.config.Engine.ScoreThreshold,
	)

	s.loop.Add(1)
	go s.run(loopCtx, ctx, interval)
}

// Stop halts the tick loop and waits for an in-flight cycle to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return
	}
	s.cancel()
	s.loop.Wait()
	s.cycles.Wait()
	s.running.Store(false)

	s.logger.Info("Cycle scheduler stopped",
		"cycles_run", s.cyclesRun.Load(),
		"total_matched", s.totalMatched.Load(),
	)
}

// Running reports whether the tick loop is active
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// run drives ticks. Cycles use cycleCtx so that Stop lets them finish while
// cancellation of the caller's context still aborts them.
func (s *Scheduler) run(loopCtx, cycleCtx context.Context, interval time.Duration) {
	defer s.loop.Done()
	defer s.running.Store(false)

	s.tick(cycleCtx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return
		case <-ticker.C:
			s.tick(cycleCtx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.inProgress.CompareAndSwap(false, true) {
		s.skippedTicks.Add(1)
		if s.metrics != nil {
			s.metrics.SkippedTicks.Inc()
		}
		s.logger.Warn("Skipping tick, previous cycle still running")
		return
	}

	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		defer s.inProgress.Store(false)

		if _, err := s.cycle(ctx); err != nil && !errors.Is(err, domain.ErrLockHeld) {
			s.logger.Error("Allocation cycle failed", "error", err)
		}
	}()
}

// RunCycle executes a single cycle synchronously. It returns
// domain.ErrCycleInProgress if another cycle is running.
func (s *Scheduler) RunCycle(ctx context.Context) (*domain.CycleReport, error) {
	if !s.inProgress.CompareAndSwap(false, true) {
		return nil, domain.ErrCycleInProgress
	}
	defer s.inProgress.Store(false)

	return s.cycle(ctx)
}

func (s *Scheduler) cycle(ctx context.Context) (*domain.CycleReport, error) {
	start := time.Now()
	report := &domain.CycleReport{
		CycleID:    uuid.New().String(),
		InstanceID: s.config.InstanceID,
		StartedAt:  start.UTC(),
	}
	logger := s.logger.With("cycle_id", report.CycleID)

	if s.lock != nil {
		acquired, err := s.lock.TryAcquire(ctx)
		if err != nil {
			s.recordFailure()
			return nil, err
		}
		if !acquired {
			logger.Debug("Cycle lock held by another instance")
			return nil, domain.ErrLockHeld
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("Failed to release cycle lock", "error", err)
			}
		}()
	}

	demands, err := s.source.FetchPendingDemands(ctx, domain.StatusPending)
	if err != nil {
		s.recordFailure()
		return nil, fmt.Errorf("fetch pending demands: %w", err)
	}
	resources, err := s.source.FetchAvailableResources(ctx)
	if err != nil {
		s.recordFailure()
		return nil, fmt.Errorf("fetch available resources: %w", err)
	}
	report.DemandsFetched = len(demands)
	report.ResourcesFetched = len(resources)

	plan := s.allocator.AllocateBatches(demands, resources, s.config.MaxBatchSize)

	report.Matches = make([]domain.SettledMatch, 0, len(plan.Matches))
	for _, m := range plan.Matches {
		settled := domain.SettledMatch{MatchResult: m}
		txRef, err := s.settler.SubmitMatch(ctx, m.DemandID, m.ResourceID)
		if err != nil {
			settled.Error = err.Error()
			report.SubmitFailures++
			logger.Error("Failed to submit match",
				"demand_id", m.DemandID,
				"resource_id", m.ResourceID,
				"error", err,
			)
		} else {
			settled.TxRef = txRef
			report.Submitted++
		}
		report.Matches = append(report.Matches, settled)
	}

	summary := plan.Summary()
	report.Matched = summary.Matched
	report.Unmatched = summary.Unmatched
	report.Rejected = summary.Errors
	report.UnmatchedIDs = plan.Unmatched
	report.Duration = time.Since(start)

	s.record(report, plan)

	logger.Info("Allocation cycle complete",
		"demands", report.DemandsFetched,
		"resources", report.ResourcesFetched,
		"matched", report.Matched,
		"unmatched", report.Unmatched,
		"rejected", report.Rejected,
		"submit_failures", report.SubmitFailures,
		"duration", report.Duration,
	)

	for _, sink := range s.sinks {
		sink.Publish(ctx, report)
	}
	return report, nil
}

func (s *Scheduler) recordFailure() {
	s.cycleFailures.Add(1)
	if s.metrics != nil {
		s.metrics.CycleFailures.Inc()
	}
}

func (s *Scheduler) record(report *domain.CycleReport, plan *engine.Plan) {
	s.cyclesRun.Add(1)
	s.totalMatched.Add(int64(report.Matched))
	s.totalUnmatched.Add(int64(report.Unmatched))
	s.totalRejected.Add(int64(report.Rejected))
	s.submitFailures.Add(int64(report.SubmitFailures))
	s.lastRun.Store(report.StartedAt.Add(report.Duration).UnixNano())

	mean, stddev := s.durations.add(report.Duration)
	s.avgDuration.Store(int64(mean))
	s.stdDevDuration.Store(int64(stddev))

	if s.metrics == nil {
		return
	}
	s.metrics.CyclesRun.Inc()
	s.metrics.Matched.Add(float64(report.Matched))
	s.metrics.Unmatched.Add(float64(report.Unmatched))
	s.metrics.SubmitFailures.Add(float64(report.SubmitFailures))
	for _, r := range plan.Rejected {
		s.metrics.Rejected.WithLabelValues(string(r.Kind)).Inc()
	}
	s.metrics.CycleDuration.Observe(report.Duration.Seconds())
	s.metrics.LastRun.Set(float64(report.StartedAt.Add(report.Duration).Unix()))
}

// Stats returns a snapshot of scheduler metrics
func (s *Scheduler) Stats() Stats {
	var lastRun time.Time
	if ns := s.lastRun.Load(); ns != 0 {
		lastRun = time.Unix(0, ns).UTC()
	}

	return Stats{
		Running:         s.running.Load(),
		InProgress:      s.inProgress.Load(),
		CyclesRun:       s.cyclesRun.Load(),
		TotalMatched:    s.totalMatched.Load(),
		TotalUnmatched:  s.totalUnmatched.Load(),
		TotalRejected:   s.totalRejected.Load(),
		SubmitFailures:  s.submitFailures.Load(),
		CycleFailures:   s.cycleFailures.Load(),
		SkippedTicks:    s.skippedTicks.Load(),
		LastRun:         lastRun,
		AverageDuration: time.Duration(s.avgDuration.Load()),
		DurationStdDev:  time.Duration(s.stdDevDuration.Load()),
	}
}
