package commands

import (
	"context"
	"fmt"

	"github.com/quantfeed/marketpulse/internal/events"
	"github.com/quantfeed/marketpulse/internal/ingest/collector"
	"github.com/quantfeed/marketpulse/internal/ingest/crypto"
	"github.com/quantfeed/marketpulse/internal/ingest/news"
	"github.com/quantfeed/marketpulse/internal/ingest/quotes"
	"github.com/quantfeed/marketpulse/internal/pipeline"
	"github.com/quantfeed/marketpulse/internal/scenario"
	"github.com/quantfeed/marketpulse/internal/store/postgres"
	"github.com/quantfeed/marketpulse/pkg/config"
	"github.com/quantfeed/marketpulse/pkg/database"
	"github.com/quantfeed/marketpulse/pkg/logger"
	"github.com/quantfeed/marketpulse/pkg/redis"
)

// app bundles the wired components a command needs. Close releases the
// database pool and the redis connection.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client

	signals     *postgres.SignalRepository
	predictors  *postgres.PredictorRepository
	predictions *postgres.PredictionRepository
	scenarios   *postgres.ScenarioRepository

	bus       *events.Bus
	dedup     *pipeline.DedupStore
	pipe      *pipeline.Pipeline
	collector *collector.Collector
	harness   *scenario.Harness
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// initApp wires the full stack: config, logging, storage, pipeline,
// feed adapters, collector and the scenario harness.
func initApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database and apply schema
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	// 4. Connect to redis (optional; the stack degrades to postgres-only)
	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rc = nil
	}

	// 5. Create repositories
	signals := postgres.NewSignalRepository(db.Pool)
	predictors := postgres.NewPredictorRepository(db.Pool)
	predictions := postgres.NewPredictionRepository(db.Pool)
	scenarios := postgres.NewScenarioRepository(db.Pool)

	// 6. Create event bus
	bus := events.NewBus(log.Zerolog(), rc, "marketpulse:events")

	// 7. Create dedup store (redis fast path when available)
	var fast *redis.Dedup
	if rc != nil && rc.Enabled() {
		fast = redis.NewDedup(rc, "marketpulse:dedup", cfg.TTL.DedupCache)
	}
	dedup := pipeline.NewDedupStore(signals, fast, log.Zerolog())

	// 8. Create pipeline
	pipe, err := pipeline.New(pipeline.Deps{
		Config:     cfg,
		Dedup:      dedup,
		Signals:    signals,
		Predictors: predictors,
		Prediction: predictions,
		Bus:        bus,
		Log:        log.Zerolog(),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	// 9. Create feed adapters and collector
	feeds := []collector.Feed{
		{Adapter: quotes.New(cfg.Quotes, log), Symbols: cfg.Quotes.Symbols},
		{Adapter: crypto.New(cfg.Crypto, log), Symbols: cfg.Crypto.Symbols},
		{Adapter: news.New(cfg.News, log), Symbols: cfg.News.Topics},
	}
	col := collector.New(cfg.Crawl, pipe, feeds, log.Zerolog())

	// 10. Create scenario harness
	harness := scenario.NewHarness(cfg, pipe, scenarios, signals, predictors, predictions, dedup, bus, log.Zerolog())

	return &app{
		cfg:         cfg,
		log:         log,
		db:          db,
		redis:       rc,
		signals:     signals,
		predictors:  predictors,
		predictions: predictions,
		scenarios:   scenarios,
		bus:         bus,
		dedup:       dedup,
		pipe:        pipe,
		collector:   col,
		harness:     harness,
	}, nil
}
