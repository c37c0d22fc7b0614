package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiranshivaraju/risco/internal/cache"
	"github.com/kiranshivaraju/risco/internal/classifier"
	"github.com/kiranshivaraju/risco/internal/config"
	"github.com/kiranshivaraju/risco/internal/dataset"
	"github.com/kiranshivaraju/risco/internal/events"
	"github.com/kiranshivaraju/risco/internal/features"
	"github.com/kiranshivaraju/risco/internal/metrics"
	"github.com/kiranshivaraju/risco/internal/store"
)

// app holds the long-lived components shared by serve and train.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	pool       *pgxpool.Pool
	store      *store.PostgresStore
	cache      *cache.RedisCache
	builder    *dataset.Builder
	classifier *classifier.Classifier
	publisher  events.Publisher
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.pool = pool
	a.store = store.NewPostgresStore(pool)
	logger.Info("database connected")

	if cfg.Redis.URL != "" {
		c, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		a.cache = c
		if err := c.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("redis connected")
	}

	artifacts, err := newArtifactStore(cfg.Model, a.cache)
	if err != nil {
		a.Close()
		return nil, err
	}

	var locker classifier.Locker
	if a.cache != nil {
		locker = a.cache
	}

	a.builder = dataset.NewBuilder(a.store, logger)
	a.classifier, err = classifier.New(classifierOptions(cfg.Model), artifacts, a.builder, locker, a.metrics, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create classifier: %w", err)
	}

	a.publisher = newPublisher(cfg.Kafka, logger)
	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("close publisher", "error", err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func classifierOptions(cfg config.ModelConfig) classifier.Options {
	opts := classifier.DefaultOptions()
	opts.Backend = cfg.Backend
	opts.Explainer = cfg.Explainer
	opts.Policy = features.UnknownCategoryPolicy(cfg.UnknownCategoryPolicy)
	opts.MinAUC = cfg.MinAUC
	opts.SyntheticSamples = cfg.SyntheticSamples
	opts.Seed = cfg.Seed
	opts.Forest.Trees = cfg.ForestTrees
	opts.Forest.Seed = cfg.Seed
	opts.LockKey = cache.TrainingLockKey()
	if cfg.LockTTL > 0 {
		opts.LockTTL = cfg.LockTTL
	}
	return opts
}

func newArtifactStore(cfg config.ModelConfig, c *cache.RedisCache) (classifier.ArtifactStore, error) {
	switch cfg.ArtifactStore {
	case "redis":
		if c == nil {
			return nil, fmt.Errorf("artifact store redis requires REDIS_URL")
		}
		return classifier.NewRedisArtifactStore(c, cache.ArtifactKey()), nil
	case "file", "":
		return classifier.NewFileArtifactStore(cfg.ArtifactPath), nil
	default:
		return nil, fmt.Errorf("unknown artifact store %q", cfg.ArtifactStore)
	}
}

func newPublisher(cfg config.KafkaConfig, logger *slog.Logger) events.Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Info("no kafka brokers configured, risk events are dropped")
		return events.NoopPublisher{}
	}
	logger.Info("kafka publisher configured", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}
