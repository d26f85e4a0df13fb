// Chatflow engine server — ingests channel webhooks, walks conversation
// flows, and publishes outbound reply intents for connector delivery.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chatflow-io/chatflow/pkg/api"
	"github.com/chatflow-io/chatflow/pkg/channels"
	"github.com/chatflow-io/chatflow/pkg/cleanup"
	"github.com/chatflow-io/chatflow/pkg/config"
	"github.com/chatflow-io/chatflow/pkg/database"
	"github.com/chatflow-io/chatflow/pkg/engine"
	"github.com/chatflow-io/chatflow/pkg/events"
	"github.com/chatflow-io/chatflow/pkg/queue"
	"github.com/chatflow-io/chatflow/pkg/scheduler"
	"github.com/chatflow-io/chatflow/pkg/services"
	"github.com/chatflow-io/chatflow/pkg/telemetry"
	"github.com/chatflow-io/chatflow/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	flushLogs := telemetry.InitLogging(telemetry.LoggingConfig{
		Debug:   cfg.Debug,
		Env:     cfg.Env,
		LokiURL: cfg.LokiURL,
	})
	defer flushLogs()

	slog.Info("Starting chatflow",
		"version", version.Full(),
		"addr", cfg.Addr(),
		"env", cfg.Env)

	ctx := context.Background()

	// 1. Tracing
	tracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:  cfg.TracingEnabled,
		Exporter: cfg.TracingExporter,
		Endpoint: cfg.TracingEndpoint,
	})
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down tracer", "error", err)
		}
	}()

	// 2. Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	store, err := database.NewMongo(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			slog.Error("Error closing MongoDB client", "error", err)
		}
	}()
	slog.Info("Connected to MongoDB", "database", dbConfig.Database)

	if err := database.SeedCatalog(ctx, store); err != nil {
		slog.Error("Failed to seed node catalog", "error", err)
		// Non-fatal — authoring still works if the catalog was seeded before
	}

	// 3. Engine and services
	bus := events.NewBus()
	registry := channels.NewRegistry()
	eng := engine.New(store, bus, registry)

	webhookService := services.NewWebhookService(store, eng)
	flowService := services.NewFlowService(store)
	detailService := services.NewNodeDetailService(store)
	slog.Info("Services initialized")

	// 4. Outbound delivery pool
	var renderClient queue.RenderClient
	if cfg.ConnectorURL != "" {
		renderClient = queue.NewHTTPRenderClient(cfg.ConnectorURL, 15*time.Second)
	} else {
		slog.Warn("CONNECTOR_URL not set, outbound replies will be logged and dropped")
		renderClient = queue.NewNopRenderClient()
	}
	renderPool := queue.NewWorkerPool(renderClient, bus.Subscribe(256), cfg.RenderWorkers)
	renderPool.Start(ctx)

	// 5. Background schedulers
	delayScheduler := scheduler.NewDelayScheduler(scheduler.DelayConfig{
		Store:    store,
		Sink:     webhookService,
		Interval: cfg.DelayTick,
	})
	delayScheduler.Start(ctx)

	timeTrigger := scheduler.NewTimeTriggerScheduler(scheduler.TimeTriggerConfig{
		Store: store,
		Sink:  webhookService,
	})
	timeTrigger.Start(ctx)

	retention := cleanup.NewService(cleanup.DefaultConfig(), store)
	retention.Start(ctx)

	// 6. HTTP server
	server := api.NewServer(flowService, webhookService, detailService, store, renderPool, delayScheduler)
	httpServer := server.NewHTTPServer(cfg.Addr(), cfg.Debug)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Chatflow started successfully", "workers", cfg.RenderWorkers)

	// 7. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 8. Graceful shutdown: stop intake first, then background loops, then
	// drain the delivery pool.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	retention.Stop()
	timeTrigger.Stop()
	delayScheduler.Stop()

	bus.Close()
	renderPool.Stop()

	slog.Info("Shutdown complete")
}
