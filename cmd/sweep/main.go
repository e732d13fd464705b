// Package main provides the standalone reconciliation sweep. Run it when the
// API server is deployed with SWEEP_ENABLED=false, or to scale recovery
// independently of the HTTP tier.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muaviaUsmani/cadence/internal/autopost"
	"github.com/muaviaUsmani/cadence/internal/config"
	"github.com/muaviaUsmani/cadence/internal/content"
	"github.com/muaviaUsmani/cadence/internal/dispatch"
	"github.com/muaviaUsmani/cadence/internal/lifecycle"
	"github.com/muaviaUsmani/cadence/internal/logger"
	"github.com/muaviaUsmani/cadence/internal/schedule"
	"github.com/muaviaUsmani/cadence/internal/sweep"
)

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

	sweepLog := log.WithComponent(logger.ComponentSweep)

	sweepLog.Info("Sweep starting",
		"redis_url", cfg.RedisURL,
		"interval", cfg.SweepInterval)

	store, err := schedule.NewRedisStore(cfg.RedisURL)
	if err != nil {
		sweepLog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Recovered runs re-arm their dispatch job when the service is configured
	var dispatchClient dispatch.Client
	dispatchCfg := dispatch.Config{
		BaseURL: cfg.DispatchBaseURL,
		Token:   cfg.DispatchToken,
		Timeout: cfg.DispatchTimeout,
	}
	if dispatchCfg.Configured() {
		dispatchClient, err = dispatch.NewHTTPClient(dispatchCfg)
		if err != nil {
			sweepLog.Error("Failed to create dispatch client", "error", err)
			os.Exit(1)
		}
	}

	jobs := lifecycle.NewManager(dispatchClient, cfg.WebhookURL)

	generator := content.NewOpenAIGenerator(content.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})

	service := autopost.NewService(store, generator, jobs)
	reconciler := sweep.NewReconciler(store, service, store.Client(), cfg.SweepInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go reconciler.Start(ctx)

	// Wait for shutdown signal
	sig := <-sigChan
	sweepLog.Info("Received shutdown signal, initiating graceful shutdown", "signal", sig)

	cancel()

	// Give an in-flight recovery time to finish
	time.Sleep(2 * time.Second)

	sweepLog.Info("Sweep shut down successfully")
}
