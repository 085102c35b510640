package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/arnabghosh/compute-matcher/internal/api"
	"github.com/arnabghosh/compute-matcher/internal/api/stream"
	"github.com/arnabghosh/compute-matcher/internal/app"
	"github.com/arnabghosh/compute-matcher/internal/audit"
	"github.com/arnabghosh/compute-matcher/internal/capability"
	"github.com/arnabghosh/compute-matcher/internal/config"
	"github.com/arnabghosh/compute-matcher/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// @title Compute Marketplace Matching API
// @version 1.0
// @description REST API for submitting computation demands, advertising resources and inspecting allocation cycles

// @contact.name API Support
// @contact.email support@compute-matcher.local

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /

// @schemes http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Starting API Gateway service",
		slog.String("service", "api-gateway"),
		slog.String("version", "1.0.0"),
		slog.Bool("embedded_scheduler", cfg.EmbedScheduler),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := app.OpenStores(cfg.Storage, logger)
	if err != nil {
		logger.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close(context.Background())

	engineCfg, err := config.LoadEngineConfig()
	if err != nil {
		logger.Error("Invalid engine configuration", "error", err)
		os.Exit(1)
	}
	maxReputation := engineCfg.Weights.MaxReputation

	settle, err := app.NewSettlement(ctx, cfg, stores, maxReputation, logger)
	if err != nil {
		logger.Error("Failed to initialise settlement", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := stream.NewHub(logger)
	deps := api.Deps{
		Demands:   stores.Demands,
		Resources: stores.Resources,
		Lifecycle: settle.Lifecycle,
		Verifier:  capability.NewHardwareVerifier(maxReputation),
		Hub:       hub,
		Registry:  registry,
		Logger:    logger,
	}

	var auditLog *audit.Log
	if cfg.Audit.Path != "" {
		auditLog, err = audit.Open(cfg.Audit.Path, logger)
		if err != nil {
			// The matcher may hold the log; serve without history
			logger.Warn("Audit log unavailable", "path", cfg.Audit.Path, "error", err)
		} else {
			defer auditLog.Close()
			deps.Reports = auditLog
		}
	}

	var sched *scheduler.Scheduler
	if cfg.EmbedScheduler {
		schedCfg, err := scheduler.LoadConfig()
		if err != nil {
			logger.Error("Invalid scheduler configuration", "error", err)
			os.Exit(1)
		}

		sinks := []scheduler.ReportSink{hub}
		if auditLog != nil {
			sinks = append(sinks, auditLog)
		}

		var cleanup func()
		sched, cleanup, err = app.NewScheduler(schedCfg, cfg, stores, settle.Settler,
			app.SchedulerDeps{Registry: registry, Sinks: sinks}, logger)
		if err != nil {
			logger.Error("Failed to create scheduler", "error", err)
			os.Exit(1)
		}
		defer cleanup()

		deps.Runner = sched
		sched.Start(ctx, schedCfg.CycleInterval)
	}

	router := api.NewRouter(deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("API Gateway initialized successfully",
		slog.String("port", cfg.Server.Port),
		slog.String("endpoints", "/api/v1/demands, /api/v1/resources, /api/v1/cycles, /ws/cycles"),
	)

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API Gateway...")

	if sched != nil {
		sched.Stop()
	}
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", slog.String("error", err.Error()))
	}

	cancel()
	if err := settle.Stop(); err != nil {
		logger.Warn("Queue shutdown error", "error", err)
	}

	logger.Info("API Gateway stopped gracefully")
}
