// Package main runs the full tracking service: the trade feed, the
// candidate evaluation loop, the signal outcome tracker, and the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"signal-tracker/internal/api"
	"signal-tracker/internal/config"
	"signal-tracker/internal/dedup"
	"signal-tracker/internal/engine"
	"signal-tracker/internal/feed"
	"signal-tracker/internal/lifecycle"
	"signal-tracker/internal/matcher"
	"signal-tracker/internal/observability"
	"signal-tracker/internal/pricefeed"
	"signal-tracker/internal/registry"
	"signal-tracker/internal/rollstats"
	"signal-tracker/internal/storage"
	chstore "signal-tracker/internal/storage/clickhouse"
	"signal-tracker/internal/storage/memory"
	"signal-tracker/internal/storage/migrations"
	pgstore "signal-tracker/internal/storage/postgres"
	"signal-tracker/internal/tracker"
)

// allStores holds every storage implementation the service uses.
type allStores struct {
	entities     storage.EntityStore
	observations storage.ObservationStore
	rounds       storage.MatchedRoundStore
	evals        storage.EvaluationStore
	outcomes     storage.SignalOutcomeStore
	snapshots    storage.SnapshotStore
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn("second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	if err := run(ctx, cfg, logger); err != nil && err != context.Canceled {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	cache, err := createDedupCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create dedup cache: %w", err)
	}

	reg := registry.New(stores.entities)
	match := matcher.New(stores.observations, stores.rounds, 0, logger.Named("matcher"))
	aggregator := rollstats.New(stores.observations, stores.rounds)

	prices := pricefeed.New(pricefeed.Options{
		BaseURL:           cfg.PriceFeed.BaseURL,
		RequestsPerSecond: cfg.PriceFeed.RequestsPerSecond,
		MaxRetries:        cfg.PriceFeed.MaxRetries,
		Logger:            logger.Named("pricefeed"),
	})

	track := tracker.New(tracker.Options{
		Registry:  reg,
		Outcomes:  stores.outcomes,
		Snapshots: stores.snapshots,
		Prices:    prices,
		Thresholds: tracker.Thresholds{
			StopLossPercent:   cfg.Signal.StopLossPercent,
			TakeProfitPercent: cfg.Signal.TakeProfitPercent,
			MaxTracking:       time.Duration(cfg.Signal.MaxTrackingHours) * time.Hour,
		},
		Metrics: metrics,
		Logger:  logger.Named("tracker"),
	})

	eng := engine.New(engine.Options{
		Cache:        cache,
		Registry:     reg,
		Observations: stores.observations,
		Entities:     stores.entities,
		Evals:        stores.evals,
		Matcher:      match,
		Aggregator:   aggregator,
		Tracker:      track,
		Metrics:      metrics,
		Logger:       logger.Named("engine"),
	})

	candidateThresholds := lifecycle.DefaultCandidateThresholds()
	candidateThresholds.WindowDays = cfg.Candidate.WindowDays
	candidatePolicy := lifecycle.NewCandidatePolicy(aggregator, candidateThresholds)

	candidateEval := lifecycle.NewEvaluator(lifecycle.EvaluatorOptions{
		Entities:   stores.entities,
		Evals:      stores.evals,
		Policy:     candidatePolicy,
		BatchSize:  cfg.Candidate.BatchSize,
		BatchPause: cfg.Candidate.BatchPause,
		Metrics:    metrics,
		Logger:     logger.Named("candidate-eval"),
	})
	signalEval := lifecycle.NewEvaluator(lifecycle.EvaluatorOptions{
		Entities: stores.entities,
		Evals:    stores.evals,
		Policy:   track,
		Metrics:  metrics,
		Logger:   logger.Named("signal-eval"),
	})

	// Terminal transitions are logged; a delivery integration can replace
	// this callback without touching the evaluator.
	notify := func(ctx context.Context, message string) error {
		logger.Info("transition notification", zap.String("message", message))
		return nil
	}
	candidateEval.SetNotify(notify)
	signalEval.SetNotify(notify)

	candidateScheduler := lifecycle.NewScheduler("candidate-eval", cfg.Candidate.EvalInterval, func(ctx context.Context) error {
		_, err := candidateEval.RunCycle(ctx)
		return err
	}, logger)
	signalScheduler := lifecycle.NewScheduler("signal-eval", cfg.Signal.CheckInterval, func(ctx context.Context) error {
		_, err := signalEval.RunCycle(ctx)
		return err
	}, logger)

	candidateScheduler.Start(ctx)
	defer candidateScheduler.Stop()
	signalScheduler.Start(ctx)
	defer signalScheduler.Stop()

	errCh := make(chan error, 2)

	if cfg.Feed.Endpoint != "" {
		feedCfg := feed.DefaultConfig()
		feedCfg.Source = cfg.Feed.Source
		feedClient := feed.NewClient(cfg.Feed.Endpoint, feedCfg, func(ctx context.Context, ev engine.TradeEvent) error {
			_, err := eng.Observe(ctx, ev)
			return err
		}, logger.Named("feed"))
		defer feedClient.Close()

		go func() {
			if err := feedClient.Run(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("feed: %w", err)
			}
		}()
	} else {
		logger.Warn("no feed endpoint configured, running without ingestion")
	}

	srv := api.New(cfg.HTTP.Addr, eng, stores.outcomes, logger.Named("api"))
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// createStores builds the storage layer. In-memory mode needs no external
// services and is for local runs and tests.
func createStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*allStores, func(), error) {
	if cfg.Storage.UseMemory {
		stores := &allStores{
			entities:     memory.NewEntityStore(),
			observations: memory.NewObservationStore(),
			rounds:       memory.NewMatchedRoundStore(),
			evals:        memory.NewEvaluationStore(),
			outcomes:     memory.NewSignalOutcomeStore(),
			snapshots:    memory.NewSnapshotStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	logger.Info("storage ready")

	stores := &allStores{
		entities:     pgstore.NewEntityStore(pool),
		observations: pgstore.NewObservationStore(pool),
		rounds:       pgstore.NewMatchedRoundStore(pool),
		evals:        pgstore.NewEvaluationStore(pool),
		outcomes:     pgstore.NewSignalOutcomeStore(pool),
		snapshots:    chstore.NewSnapshotStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// createDedupCache selects Redis-backed dedup when an address is
// configured, the in-memory recency set otherwise.
func createDedupCache(ctx context.Context, cfg config.Config) (dedup.Cache, error) {
	if cfg.Storage.RedisAddr == "" {
		return dedup.NewMemoryCache(cfg.Dedup.Capacity, cfg.Dedup.MinNotional), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return dedup.NewRedisCache(rdb, "tracker:dedup", cfg.Dedup.RedisTTL, cfg.Dedup.MinNotional), nil
}
