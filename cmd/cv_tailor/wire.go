package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jonathan/cv-tailor/internal/config"
	"github.com/jonathan/cv-tailor/internal/credits"
	"github.com/jonathan/cv-tailor/internal/db"
	"github.com/jonathan/cv-tailor/internal/fetch"
	"github.com/jonathan/cv-tailor/internal/llm"
	"github.com/jonathan/cv-tailor/internal/phases"
	"github.com/jonathan/cv-tailor/internal/pipeline"
	"github.com/jonathan/cv-tailor/internal/progress"
	"github.com/jonathan/cv-tailor/internal/retry"
)

// app bundles the wired components shared by the serve and run commands.
type app struct {
	cfg    *config.Config
	store  *db.DB
	hub    *progress.Hub
	runner *pipeline.Runner
	log    zerolog.Logger

	rdb *redis.Client
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.LogJSON {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func llmConfig(cfg *config.Config) *llm.Config {
	base := llm.DefaultConfig()
	if cfg.Provider == "gemini" {
		base = llm.DefaultGeminiConfig()
	}
	overrides := map[llm.Feature]string{
		llm.FeatureExtract:        cfg.ModelExtract,
		llm.FeatureClassify:       cfg.ModelClassify,
		llm.FeatureBatch:          cfg.ModelBatch,
		llm.FeatureSkills:         cfg.ModelSkills,
		llm.FeatureRecompose:      cfg.ModelRecompose,
		llm.FeatureDetectLanguage: cfg.ModelDetectLanguage,
	}
	for feature, model := range overrides {
		if model != "" {
			base = base.WithModel(feature, model)
		}
	}
	return base
}

// buildApp wires the full generation stack from configuration. The caller
// owns the returned app and must call close when done.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := newLogger(cfg)

	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	client, err := llm.NewClient(ctx, llmConfig(cfg), cfg.APIKey())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create inference client: %w", err)
	}

	hub := progress.NewHub()
	publishers := progress.Fanout{hub}
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		publishers = append(publishers, progress.NewRedisPublisher(rdb))
	}
	emitter := progress.NewEmitter(publishers, log)

	fetcher := fetch.NewClient(nil, cfg.UseBrowser, log)
	phaseRunner := phases.NewRunner(store, client, fetcher, emitter, retry.DefaultConfig(), log)
	processor := pipeline.NewProcessor(store, phaseRunner, log)
	creditMgr := credits.NewManager(store, cfg.CreditCostAdaptation, log)
	runner := pipeline.NewRunner(store, processor, creditMgr, emitter,
		pipeline.NewSlots(cfg.MaxConcurrentTasks), pipeline.NewCancelRegistry(), log)

	return &app{
		cfg:    cfg,
		store:  store,
		hub:    hub,
		runner: runner,
		log:    log,
		rdb:    rdb,
	}, nil
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	a.store.Close()
}
