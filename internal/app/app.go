// -----------------------------------------------------------------------
// App - application components and dependency wiring
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/eventscout/eventscout/internal/common"
	"github.com/eventscout/eventscout/internal/handlers"
	"github.com/eventscout/eventscout/internal/interfaces"
	"github.com/eventscout/eventscout/internal/services/provider"
	"github.com/eventscout/eventscout/internal/services/worker"
	"github.com/eventscout/eventscout/internal/storage/badger"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	SearchProvider interfaces.SearchProvider
	Worker         *worker.Worker

	// HTTP handlers
	APIHandler   *handlers.APIHandler
	JobHandler   *handlers.JobHandler
	EventHandler *handlers.EventHandler

	cleanup *cron.Cron
}

// New creates the application with all dependencies wired
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	searchProvider, err := provider.New(ctx, cfg, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize search provider: %w", err)
	}
	a.SearchProvider = searchProvider

	a.Worker = worker.NewWorker(storageManager, searchProvider, &cfg.Worker, logger)

	a.APIHandler = handlers.NewAPIHandler()
	a.JobHandler = handlers.NewJobHandler(storageManager.Jobs(), a.Worker, logger)
	a.EventHandler = handlers.NewEventHandler(storageManager.EventCache(), logger)

	if err := a.startCleanupSchedule(); err != nil {
		storageManager.Close()
		return nil, err
	}

	logger.Info().
		Str("provider", searchProvider.Name()).
		Str("badger_path", cfg.Storage.Badger.Path).
		Msg("Application initialized")

	return a, nil
}

// startCleanupSchedule runs the job retention sweep on the configured
// cron schedule.
func (a *App) startCleanupSchedule() error {
	schedule := a.Config.Jobs.CleanupSchedule
	if schedule == "" {
		a.Logger.Debug().Msg("Job cleanup schedule disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		deleted, err := a.StorageManager.Jobs().CleanupOldJobs(context.Background(), a.Config.Jobs.Retention)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Job cleanup sweep failed")
			return
		}
		if deleted > 0 {
			a.Logger.Info().Int("deleted", deleted).Msg("Job cleanup sweep finished")
		}
		if err := a.StorageManager.RunGC(); err != nil {
			a.Logger.Warn().Err(err).Msg("Badger value log GC failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	c.Start()
	a.cleanup = c

	a.Logger.Info().
		Str("schedule", schedule).
		Str("retention", a.Config.Jobs.Retention.String()).
		Msg("Job cleanup schedule started")
	return nil
}

// Close shuts down application components in reverse dependency order
func (a *App) Close() error {
	if a.cleanup != nil {
		a.cleanup.Stop()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
