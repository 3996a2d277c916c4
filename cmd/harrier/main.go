// Harrier - Lead qualification and routing that deploys in 60 seconds.
// Copyright (c) 2025 opensource.crm
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-crm/harrier/internal/api"
	"github.com/opensource-crm/harrier/internal/bus"
	"github.com/opensource-crm/harrier/internal/cache"
	"github.com/opensource-crm/harrier/internal/config"
	"github.com/opensource-crm/harrier/internal/domain"
	"github.com/opensource-crm/harrier/internal/guard"
	"github.com/opensource-crm/harrier/internal/limits"
	"github.com/opensource-crm/harrier/internal/metrics"
	"github.com/opensource-crm/harrier/internal/qualify"
	"github.com/opensource-crm/harrier/internal/repository"
	"github.com/opensource-crm/harrier/internal/routing"
	"github.com/opensource-crm/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration first; logging setup depends on it
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"async", cfg.AsyncQualification,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Guard Engine and load each tenant's guard rules
	guards, err := guard.NewEngine(logger)
	if err != nil {
		slog.Error("failed to initialize guard engine", "error", err)
		os.Exit(1)
	}
	loadGuardsFromDatabase(ctx, repo, guards)

	// Initialize plan limit enforcement
	limitSvc := limits.NewService(repo, repo, cacheImpl, logger)
	slog.Info("limit service initialized")

	// Initialize the qualification pipeline: cached rule snapshots, random
	// answer selection, routing, transcript persistence, guard screening.
	ruleSource := qualify.NewCachedRuleSource(repo, cacheImpl, 5*time.Minute, logger)
	orchestrator := qualify.NewOrchestrator(ruleSource, repo, repo, qualify.NewRandomAnswerProvider(), routing.NewRouter(),
		qualify.WithTranscriptSink(repo),
		qualify.WithScreener(guards),
		qualify.WithLogger(logger),
	)
	slog.Info("qualification pipeline initialized", "engine_version", qualify.EngineVersion)

	// Initialize Prometheus metrics
	m, registry := metrics.New()

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.AsyncQualification {
		asyncWorker = worker.NewWorker(busImpl, repo, orchestrator)

		tenantIDs := []string{}
		if envTenants := os.Getenv("HARRIER_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		if err := asyncWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.ServerDeps{
		Repo:         repo,
		Cache:        cacheImpl,
		Bus:          busImpl,
		Orchestrator: orchestrator,
		Guards:       guards,
		Limits:       limitSvc,
		RuleSource:   ruleSource,
		Metrics:      m,
		Registry:     registry,
		Version:      Version,
		Async:        cfg.AsyncQualification,
	})

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadGuardsFromDatabase compiles each tenant's active guard rules into the
// screening engine. Failures are logged per tenant; a tenant with a broken
// guard set starts unguarded rather than blocking startup.
func loadGuardsFromDatabase(ctx context.Context, repo domain.Repository, guards *guard.Engine) {
	tenants, err := repo.ListTenants(ctx)
	if err != nil {
		slog.Warn("failed to list tenants for guard loading", "error", err)
		return
	}

	loaded := 0
	for _, tenant := range tenants {
		rules, err := repo.ActiveGuardRules(ctx, tenant.ID)
		if err != nil {
			slog.Warn("failed to load guard rules", "tenant_id", tenant.ID, "error", err)
			continue
		}
		if len(rules) == 0 {
			continue
		}
		if err := guards.LoadTenant(tenant.ID, rules); err != nil {
			slog.Warn("failed to compile guard rules", "tenant_id", tenant.ID, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("guard engine initialized", "tenants_with_guards", loaded)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 HARRIER                  ║")
	fmt.Println("  ║    Lead Qualification & Routing Engine    ║")
	fmt.Println("  ║       Every lead lands somewhere.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /tenants                - Onboard a tenant")
	fmt.Println("    POST /leads                  - Create and qualify a lead")
	fmt.Println("    GET  /leads                  - List leads (filterable)")
	fmt.Println("    GET  /leads/{id}             - Get lead by ID")
	fmt.Println("    GET  /leads/{id}/transcript  - Get qualification transcript")
	fmt.Println("    PUT  /scoring-rules          - Replace the questionnaire")
	fmt.Println("    PUT  /routing-rules          - Set per-category routing")
	fmt.Println("    PUT  /guards                 - Replace guard rules")
	fmt.Println("    POST /agents                 - Register an agent")
	fmt.Println("    GET  /metrics                - Prometheus metrics")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println()
}
