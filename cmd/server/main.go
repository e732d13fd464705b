// Package main provides the Cadence API server: schedule CRUD, the dispatch
// webhook, and (optionally) the in-process reconciliation sweep.
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" // #nosec G108 - pprof is intentionally exposed for debugging, isolated to separate port
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muaviaUsmani/cadence/internal/api"
	"github.com/muaviaUsmani/cadence/internal/autopost"
	"github.com/muaviaUsmani/cadence/internal/config"
	"github.com/muaviaUsmani/cadence/internal/content"
	"github.com/muaviaUsmani/cadence/internal/dispatch"
	"github.com/muaviaUsmani/cadence/internal/lifecycle"
	"github.com/muaviaUsmani/cadence/internal/logger"
	"github.com/muaviaUsmani/cadence/internal/schedule"
	"github.com/muaviaUsmani/cadence/internal/sweep"
)

// connectWithRetry attempts to connect to Redis with exponential backoff
func connectWithRetry(redisURL string, maxRetries int, log logger.Logger) (*schedule.RedisStore, error) {
	var store *schedule.RedisStore
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		store, err = schedule.NewRedisStore(redisURL)
		if err == nil {
			return store, nil
		}

		// Exponential backoff: 2^attempt seconds, capped at 30s
		delay := time.Duration(1<<uint(attempt)) * time.Second
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}

		log.Warn("Failed to connect to Redis, retrying",
			"attempt", attempt+1,
			"max_attempts", maxRetries,
			"error", err,
			"retry_in", delay)

		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", maxRetries, err)
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()

	// Set as default logger
	logger.SetDefault(log)

	apiLog := log.WithComponent(logger.ComponentAPI)

	apiLog.Info("API server starting",
		"redis_url", cfg.RedisURL,
		"api_port", cfg.APIPort,
		"dispatch_configured", cfg.DispatchToken != "",
		"sweep_enabled", cfg.SweepEnabled)

	// Start pprof server on separate port for profiling
	pprofPort := os.Getenv("PPROF_PORT")
	if pprofPort == "" {
		pprofPort = "6060"
	}
	go func() {
		apiLog.Info("Starting pprof server", "port", pprofPort, "url", fmt.Sprintf("http://localhost:%s/debug/pprof/", pprofPort))
		pprofServer := &http.Server{
			Addr:              ":" + pprofPort,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := pprofServer.ListenAndServe(); err != nil {
			apiLog.Error("pprof server failed", "error", err)
		}
	}()

	// Connect to Redis with retry logic
	store, err := connectWithRetry(cfg.RedisURL, 5, apiLog)
	if err != nil {
		apiLog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	apiLog.Info("Successfully connected to Redis")

	// Dispatch client is optional; without it the sweep is the only
	// delivery mechanism
	var dispatchClient dispatch.Client
	dispatchCfg := dispatch.Config{
		BaseURL: cfg.DispatchBaseURL,
		Token:   cfg.DispatchToken,
		Timeout: cfg.DispatchTimeout,
	}
	if dispatchCfg.Configured() {
		dispatchClient, err = dispatch.NewHTTPClient(dispatchCfg)
		if err != nil {
			apiLog.Error("Failed to create dispatch client", "error", err)
			os.Exit(1)
		}
	} else {
		apiLog.Warn("Dispatch service not configured; schedules run via sweep only")
	}

	jobs := lifecycle.NewManager(dispatchClient, cfg.WebhookURL)

	generator := content.NewOpenAIGenerator(content.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})

	service := autopost.NewService(store, generator, jobs)

	// Context for background work, cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SweepEnabled {
		reconciler := sweep.NewReconciler(store, service, store.Client(), cfg.SweepInterval)
		go reconciler.Start(ctx)
	}

	addr := ":" + cfg.APIPort
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(service).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		apiLog.Info("API server listening", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			apiLog.Error("API server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	apiLog.Info("Received shutdown signal, initiating graceful shutdown", "signal", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		apiLog.Error("Server shutdown failed", "error", err)
	}

	apiLog.Info("API server shut down successfully")
}
