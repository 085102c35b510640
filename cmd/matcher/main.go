package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/app"
	"github.com/arnabghosh/compute-matcher/internal/audit"
	appconfig "github.com/arnabghosh/compute-matcher/internal/config"
	"github.com/arnabghosh/compute-matcher/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := appconfig.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	schedCfg, err := scheduler.LoadConfig()
	if err != nil {
		logger.Error("Invalid scheduler configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting matcher",
		"instance_id", schedCfg.InstanceID,
		"interval", schedCfg.CycleInterval,
		"max_batch", schedCfg.MaxBatchSize,
		"threshold", schedCfg.Engine.ScoreThreshold,
		"storage", cfg.Storage.Type,
		"settlement", cfg.Settlement.Mode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(cfg.Storage, logger)
	if err != nil {
		logger.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close(context.Background())

	settle, err := app.NewSettlement(ctx, cfg, stores, schedCfg.Engine.Weights.MaxReputation, logger)
	if err != nil {
		logger.Error("Failed to initialise settlement", "error", err)
		os.Exit(1)
	}

	var sinks []scheduler.ReportSink
	if cfg.Audit.Path != "" {
		auditLog, err := audit.Open(cfg.Audit.Path, logger)
		if err != nil {
			logger.Error("Failed to open audit log", "path", cfg.Audit.Path, "error", err)
			os.Exit(1)
		}
		defer auditLog.Close()
		sinks = append(sinks, auditLog)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sched, cleanup, err := app.NewScheduler(schedCfg, cfg, stores, settle.Settler,
		app.SchedulerDeps{Registry: registry, Sinks: sinks}, logger)
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Metrics.Port,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: appconfig.DefaultReadTimeout,
	}
	go func() {
		logger.Info("Serving metrics", "address", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	sched.Start(ctx, schedCfg.CycleInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)

	// Let an in-flight cycle finish before tearing down its collaborators
	sched.Stop()
	cancel()
	if err := settle.Stop(); err != nil {
		logger.Warn("Queue shutdown error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	stats := sched.Stats()
	logger.Info("Shutdown complete",
		"cycles_run", stats.CyclesRun,
		"total_matched", stats.TotalMatched,
		"submit_failures", stats.SubmitFailures,
		"cycle_failures", stats.CycleFailures,
		"skipped_ticks", stats.SkippedTicks,
	)

	fmt.Println("Matcher shut down gracefully")
}
