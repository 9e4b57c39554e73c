package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfeed/marketpulse/internal/api"
	"github.com/quantfeed/marketpulse/internal/api/handlers"
	"github.com/quantfeed/marketpulse/internal/api/ws"
	"github.com/quantfeed/marketpulse/internal/pipeline"
	"github.com/quantfeed/marketpulse/internal/scheduler"
	"github.com/quantfeed/marketpulse/internal/scheduler/jobs"
	"github.com/quantfeed/marketpulse/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the HTTP API server together with the crawl scheduler.

This command:
- serves the REST read endpoints and the task dispatch endpoint
- hosts the test scenario harness
- streams stage events over a websocket
- runs the scheduled crawls and the expiry sweep

Endpoints:
  GET  /health                     - Health check
  POST /api/task                   - Action dispatch
  GET  /api/signals                - Signals in scope
  GET  /api/predictors             - Live predictor pools
  GET  /api/predictions            - Predictions in scope
  GET  /api/predictions/{id}       - Single prediction
  *    /api/test-scenarios...      - Scenario lifecycle
  GET  /api/status                 - Service status
  GET  /ws                         - Event stream

Example:
  go run ./cmd/pulse api
  go run ./cmd/pulse api --port 8090`,
	RunE: runAPIServer,
}

var (
	apiPort        string
	apiNoScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
	apiCmd.Flags().BoolVar(&apiNoScheduler, "no-scheduler", false, "serve HTTP only, without scheduled crawls")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== MarketPulse API Server ===")

	ctx := cmd.Context()

	// 1. Wire the stack
	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	log := a.log
	log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	// 2. Create scheduler with crawl and sweep jobs
	var sched *scheduler.Scheduler
	if !apiNoScheduler {
		sched = scheduler.New(log)
		sched.AddJob(jobs.NewCrawlJob("quotes", "0 */5 * * * *", a.collector, log))
		sched.AddJob(jobs.NewCrawlJob("crypto", "0 */10 * * * *", a.collector, log))
		sched.AddJob(jobs.NewCrawlJob("news", "0 */15 * * * *", a.collector, log))

		sweeper := pipeline.NewSweeper(a.predictors, a.predictions, a.bus, log.Zerolog())
		sched.AddJob(jobs.NewSweepJob("0 * * * * *", sweeper, log))

		sched.Start()
		defer sched.Stop()
	}

	// 3. Create websocket hub and attach it to the event bus
	hub := ws.NewHub(log)
	a.bus.Subscribe(hub)

	// 4. Create handlers
	var cache *redis.Cache
	if a.redis != nil && a.redis.Enabled() {
		cache = redis.NewCache(a.redis, "marketpulse")
	}
	pipelineHandler := handlers.NewPipelineHandler(a.signals, a.predictors, a.predictions, cache, log)
	scenarioHandler := handlers.NewScenarioHandler(a.harness, log)
	taskHandler := handlers.NewTaskHandler(a.signals, a.predictors, a.predictions, a.harness, log)
	statusHandler := handlers.NewStatusHandler(a.db, sched, log)

	// 5. Create router and server
	router := api.NewRouter(api.RouterDeps{
		Pipeline: pipelineHandler,
		Scenario: scenarioHandler,
		Task:     taskHandler,
		Status:   statusHandler,
		Hub:      hub,
	}, log)
	server := api.New(a.cfg, log, router)

	// 6. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
