// Package service wires the engine together for the CLI: the entry store,
// the prompt scheduler, the reconciler, imports and gap detection, all
// configured from one config.Config.
package service

import (
	"log/slog"

	"github.com/xolan/wogger/internal/config"
	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/gaps"
	"github.com/xolan/wogger/internal/reconciler"
	"github.com/xolan/wogger/internal/scheduler"
	"github.com/xolan/wogger/internal/storage"
)

// Paths locates the files the services use.
type Paths struct {
	Storage     string
	Config      string
	IgnoredGaps string
}

// Services holds all service instances used by the application
type Services struct {
	Store      *storage.Store
	Scheduler  *scheduler.Scheduler
	Reconciler *reconciler.Reconciler
	Import     *ImportService
	Gaps       *GapService
	Config     *ConfigService
}

// ResolvePaths returns the default file locations for cfg. DataDir, when
// set, holds the entries and ignored gaps; the config file always lives in
// the app directory.
func ResolvePaths(cfg config.Config) (Paths, error) {
	storagePath, err := storage.GetStoragePath(cfg.DataDir)
	if err != nil {
		return Paths{}, err
	}
	ignoredPath, err := gaps.GetIgnoredPath(cfg.DataDir)
	if err != nil {
		return Paths{}, err
	}
	configPath, err := config.GetConfigPath()
	if err != nil {
		return Paths{}, err
	}
	return Paths{Storage: storagePath, Config: configPath, IgnoredGaps: ignoredPath}, nil
}

// NewServices creates a new Services instance with default paths
func NewServices(logger *slog.Logger) (*Services, error) {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	paths, err := ResolvePaths(cfg)
	if err != nil {
		return nil, err
	}
	return NewServicesWithPaths(paths, cfg, logger)
}

// NewServicesWithPaths creates a new Services instance with custom paths (useful for testing)
func NewServicesWithPaths(paths Paths, cfg config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.Open(paths.Storage,
		storage.WithLockTimeout(cfg.LockTimeout()),
		storage.WithLogger(logger.With("component", "storage")))
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.New(cfg.PromptCron, scheduler.WithLogger(logger.With("component", "scheduler")))
	if err != nil {
		return nil, err
	}

	rec := reconciler.New(store, reconciler.WithLogger(logger.With("component", "prompts")))
	sched.OnSegment(func(seg entry.ScheduledSegment) {
		// Failures are reported to listeners; the segment stays pending.
		_ = rec.HandleSegment(seg)
	})

	ignore, err := gaps.NewIgnoreStore(paths.IgnoredGaps, logger.With("component", "gaps"))
	if err != nil {
		return nil, err
	}

	configService := NewConfigService(paths.Config, cfg)
	configService.OnUpdate(func(c config.Config) {
		if err := sched.UpdateExpression(c.PromptCron); err != nil {
			logger.Error("Unable to apply prompt schedule", "event", "scheduler_update_failed", "error", err)
		}
	})

	return &Services{
		Store:      store,
		Scheduler:  sched,
		Reconciler: rec,
		Import:     NewImportService(store, rec, logger.With("component", "import")),
		Gaps:       NewGapService(store, rec, ignore, configService),
		Config:     configService,
	}, nil
}
