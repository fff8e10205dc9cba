package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ersonp/bookspace/internal/application/handlers"
	"github.com/ersonp/bookspace/internal/domain/ports"
	"github.com/ersonp/bookspace/internal/domain/services"
	"github.com/ersonp/bookspace/internal/infrastructure/backup/s3"
	"github.com/ersonp/bookspace/internal/infrastructure/config"
	"github.com/ersonp/bookspace/internal/infrastructure/localstore/fallback"
	localmemory "github.com/ersonp/bookspace/internal/infrastructure/localstore/memory"
	"github.com/ersonp/bookspace/internal/infrastructure/localstore/sqlite"
	"github.com/ersonp/bookspace/internal/infrastructure/logging"
	"github.com/ersonp/bookspace/internal/infrastructure/remotestore/dynamodb"
	remotememory "github.com/ersonp/bookspace/internal/infrastructure/remotestore/memory"
	"github.com/ersonp/bookspace/internal/infrastructure/remotestore/mongo"
	"github.com/ersonp/bookspace/internal/infrastructure/remotestore/qdrant"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and stores are internal.
type Deps struct {
	Config  *config.Config
	Profile string
	UserID  string
	Logger  *slog.Logger

	Records  *handlers.RecordsHandler
	Settings *handlers.SettingsHandler
	Watch    *handlers.WatchHandler
	Export   *handlers.ExportHandler
	Import   *handlers.DatasetImportHandler
	Activity *handlers.ActivityHandler
	Tasks    *handlers.TasksHandler

	workspace       *handlers.Workspace
	syncService     *services.SyncService
	activityService *services.ActivityService
}

// SyncHandler builds a sync handler making up to attempts tries. Zero uses
// the configured retry count.
func (d *Deps) SyncHandler(attempts int) *handlers.SyncHandler {
	if attempts <= 0 {
		attempts = d.Config.Sync.Retries
	}
	retryer := services.NewRetryer(services.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: d.Config.Sync.RetryBackoff,
		Jitter:         0.1,
		RetryIf:        handlers.RetryRemoteFailures,
	})
	return handlers.NewSyncHandler(d.workspace, d.syncService, d.activityService, retryer)
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically; pending local saves are flushed before
// the stores close.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if globalLogLevel != "" {
		cfg.Log.Level = globalLogLevel
	}

	logger, err := logging.New(os.Stderr, cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	profile, userID, err := resolveProfile(cwd)
	if err != nil {
		return err
	}

	local, closeLocal, err := openLocalStore(ctx, cwd, profile, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocal()

	remote, schemas, err := openRemoteStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if remote != nil {
		defer remote.Close()
	}

	if err := handlers.EnsureSchemas(ctx, logger, schemas...); err != nil {
		return err
	}

	backup, err := openBackupTarget(ctx, cfg)
	if err != nil {
		return err
	}

	diagnostics := func(r services.RemoteResult) {
		if r.Err != nil {
			logger.Debug("remote call failed", "op", r.Op, "user", r.UserID, "error", r.Err)
		}
	}

	syncService := services.NewSyncService(local, remote,
		services.WithLogger(logger),
		services.WithDebounce(cfg.Sync.Debounce),
		services.WithDiagnostics(diagnostics),
	)
	defer syncService.Close()

	activityService := services.NewActivityService(local, remote,
		services.WithActivityLogger(logger),
		services.WithMaxEntries(cfg.Activity.MaxEntries),
		services.WithRemoteLimit(cfg.Activity.RemoteLimit),
		services.WithActivityDiagnostics(diagnostics),
	)
	activityService.SetUser(userID)

	taskService := services.NewTaskService(remote, services.WithTaskLogger(logger))

	workspace := handlers.NewWorkspace(syncService)

	deps := &Deps{
		Config:          cfg,
		Profile:         profile,
		UserID:          userID,
		Logger:          logger,
		Records:         handlers.NewRecordsHandler(workspace, activityService),
		Settings:        handlers.NewSettingsHandler(workspace, activityService),
		Watch:           handlers.NewWatchHandler(workspace, syncService, activityService, nil),
		Export:          handlers.NewExportHandler(workspace, syncService, activityService, backup),
		Import:          handlers.NewDatasetImportHandler(workspace, syncService, activityService),
		Activity:        handlers.NewActivityHandler(activityService),
		Tasks:           handlers.NewTasksHandler(taskService),
		workspace:       workspace,
		syncService:     syncService,
		activityService: activityService,
	}

	return fn(deps)
}

// resolveProfile returns the selected profile and its user id. Selecting an
// unknown profile other than the default is an error.
func resolveProfile(cwd string) (string, string, error) {
	profiles, err := config.LoadProfiles(cwd)
	if err != nil {
		return "", "", fmt.Errorf("loading profiles: %w", err)
	}

	profile := globalProfile
	if profile == "" {
		profile = config.DefaultProfile
	}
	if profile != config.DefaultProfile {
		if _, err := profiles.Get(profile); err != nil {
			return "", "", err
		}
	}
	return profile, profiles.UserID(profile), nil
}

// openLocalStore opens the profile's SQLite database behind an in-memory
// fallback. When the database cannot be opened at all, the session runs on
// memory only.
func openLocalStore(ctx context.Context, cwd, profile string, cfg *config.Config, logger *slog.Logger) (ports.LocalStore, func(), error) {
	noop := func() {}
	if cfg.Local.Driver == config.LocalDriverMemory {
		return localmemory.NewStore(), noop, nil
	}

	localCfg := cfg.Local
	if localCfg.Path == "" {
		localCfg.Path = config.SQLitePathForProfile(cwd, profile)
	}
	if err := os.MkdirAll(filepath.Dir(localCfg.Path), 0755); err != nil {
		return nil, noop, fmt.Errorf("creating profile directory: %w", err)
	}

	db, err := sqlite.NewStore(localCfg)
	if err != nil {
		logger.WarnContext(ctx, "local database unavailable, changes will not persist", "path", localCfg.Path, "error", err)
		return localmemory.NewStore(), noop, nil
	}
	if err := handlers.EnsureSchemas(ctx, logger, db); err != nil {
		db.Close()
		logger.WarnContext(ctx, "local database unusable, changes will not persist", "path", localCfg.Path, "error", err)
		return localmemory.NewStore(), noop, nil
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing local database", "error", err)
		}
	}
	return fallback.NewStore(db, localmemory.NewStore(), logger), closeDB, nil
}

// openRemoteStore connects the configured provider. It returns a nil store
// when sync is disabled.
func openRemoteStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.RemoteStore, []ports.SchemaManager, error) {
	poll := cfg.Sync.PollInterval

	switch cfg.Remote.Provider {
	case "", config.RemoteNone:
		return nil, nil, nil
	case config.RemoteMemory:
		return remotememory.NewStore(), nil, nil
	case config.RemoteMongo:
		store, err := mongo.Connect(ctx, cfg.Remote.Mongo, poll, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to mongodb: %w", err)
		}
		return store, []ports.SchemaManager{store}, nil
	case config.RemoteDynamoDB:
		store, err := dynamodb.New(ctx, cfg.Remote.DynamoDB, poll, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating dynamodb store: %w", err)
		}
		return store, []ports.SchemaManager{store}, nil
	case config.RemoteQdrant:
		store, err := qdrant.NewStore(cfg.Remote.Qdrant, poll, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating qdrant store: %w", err)
		}
		return store, []ports.SchemaManager{store}, nil
	default:
		return nil, nil, fmt.Errorf("unknown remote provider %q", cfg.Remote.Provider)
	}
}

// openBackupTarget returns the S3 uploader when a bucket is configured.
func openBackupTarget(ctx context.Context, cfg *config.Config) (ports.BackupTarget, error) {
	if cfg.Backup.S3.Bucket == "" {
		return nil, nil
	}
	uploader, err := s3.NewUploader(ctx, cfg.Backup.S3)
	if err != nil {
		return nil, fmt.Errorf("creating s3 uploader: %w", err)
	}
	return uploader, nil
}
