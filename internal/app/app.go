package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marquee/internal/common"
	"github.com/ternarybob/marquee/internal/interfaces"
	"github.com/ternarybob/marquee/internal/pipeline"
	badgerstorage "github.com/ternarybob/marquee/internal/storage/badger"
	"github.com/ternarybob/marquee/internal/strapi"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB         *badgerstorage.BadgerDB
	RunStorage interfaces.RunStorage
	Store      interfaces.ContentStore
	Reconciler interfaces.Reconciler
	Fetcher    *pipeline.Fetcher
	Covers     *pipeline.CoverStore
	Runner     *pipeline.Runner

	cron *cron.Cron
}

// New wires the application together in dependency order
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	db, err := badgerstorage.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	fetcher := pipeline.NewFetcher(config.Fetch, logger)

	covers, err := pipeline.NewCoverStore(config.Storage.Filesystem.Images, fetcher, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cover store: %w", err)
	}

	runStorage := badgerstorage.NewRunStorage(db, logger)
	store := strapi.NewClient(config.Strapi, logger)
	reconciler := strapi.NewReconciler(store, config.Strapi.Locale, logger)
	runner := pipeline.NewRunner(config, fetcher, covers, store, reconciler, runStorage, logger)

	return &App{
		Config:     config,
		Logger:     logger,
		DB:         db,
		RunStorage: runStorage,
		Store:      store,
		Reconciler: reconciler,
		Fetcher:    fetcher,
		Covers:     covers,
		Runner:     runner,
	}, nil
}

// RunOnce executes one full pipeline cycle over every source
func (a *App) RunOnce(ctx context.Context) error {
	return a.Runner.RunAll(ctx)
}

// StartScheduler runs the pipeline on the configured cron schedule
// until the context is cancelled. An overlapping invocation is skipped
// when the previous one is still running.
func (a *App) StartScheduler(ctx context.Context) error {
	if a.Config.Schedule == "" {
		return fmt.Errorf("no schedule configured")
	}

	running := make(chan struct{}, 1)
	a.cron = cron.New()

	_, err := a.cron.AddFunc(a.Config.Schedule, func() {
		select {
		case running <- struct{}{}:
		default:
			a.Logger.Warn().Msg("Previous run still in progress, skipping")
			return
		}
		defer func() { <-running }()

		if err := a.Runner.RunAll(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("Scheduled run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", a.Config.Schedule, err)
	}

	a.Logger.Info().Str("schedule", a.Config.Schedule).Msg("Scheduler started")
	a.cron.Start()

	<-ctx.Done()

	stopCtx := a.cron.Stop()
	<-stopCtx.Done()
	return nil
}

// Close releases resources in reverse dependency order
func (a *App) Close() error {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
