package main

import (
	"context"
	"fmt"

	"github.com/abduss/driveingest/internal/auth"
	"github.com/abduss/driveingest/internal/blobstore"
	"github.com/abduss/driveingest/internal/config"
	"github.com/abduss/driveingest/internal/drive"
	"github.com/abduss/driveingest/internal/fileinfo"
	"github.com/abduss/driveingest/internal/folder"
	"github.com/abduss/driveingest/internal/instance"
	"github.com/abduss/driveingest/internal/logger"
	"github.com/abduss/driveingest/internal/notify"
	"github.com/abduss/driveingest/internal/server"
	"github.com/abduss/driveingest/internal/stats"
	"github.com/abduss/driveingest/internal/storage"
	"github.com/abduss/driveingest/internal/thumbnail"
	"github.com/abduss/driveingest/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds every long-lived collaborator of a running process.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	db       *pgxpool.Pool
	redis    *redis.Client
	minio    *minio.Client
	backend  blobstore.Backend
	queue    *worker.Queue
	accounts *auth.Repository
	folders  *folder.Service
	drive    *drive.Service
}

func loadBase() (config.Config, *zap.Logger, error) {
	log, err := logger.Init()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, log, nil
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	db, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.db = db

	rdb, err := storage.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.redis = rdb

	if cfg.Drive.Storage == config.StorageObject {
		client, err := storage.NewMinIOClient(cfg.ObjectStorage)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect object storage: %w", err)
		}
		if err := storage.EnsureBucket(ctx, client, cfg.ObjectStorage.Bucket, cfg.ObjectStorage.Region); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
		a.minio = client
	}

	backend, err := blobstore.New(cfg, a.minio)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.backend = backend

	a.queue = worker.New(log, cfg.Queue.Workers, cfg.Queue.Capacity)
	a.accounts = auth.NewRepository(db)
	a.folders = folder.NewService(folder.NewRepository(db))

	files := drive.NewRepository(db)
	settings := instance.NewCache(instance.NewRepository(db), instance.Settings{
		LocalDriveCapacityMB:  cfg.Drive.LocalCapacityMB,
		RemoteDriveCapacityMB: cfg.Drive.RemoteCapacityMB,
	}, cfg.Drive.SettingsTTL)

	a.drive = drive.NewService(drive.Dependencies{
		Log:        log,
		Files:      files,
		Folders:    a.folders,
		Profiles:   a.accounts,
		Prober:     fileinfo.NewProber(),
		Thumbnails: thumbnail.NewGenerator(log, thumbnail.FFmpeg{Binary: cfg.Drive.FFmpegPath}),
		Backend:    backend,
		Quota:      drive.NewQuotaPolicy(files, settings),
		Notifier:   notify.NewRedisPublisher(rdb, cfg.Redis.Prefix),
		Accounting: stats.NewRecorder(db),
		Queue:      a.queue,
	})

	return a, nil
}

func (a *app) routerDeps(authService *auth.Service) server.Dependencies {
	checks := []server.HealthCheck{server.PostgresCheck(a.db), server.RedisCheck(a.redis)}
	if a.minio != nil {
		checks = append(checks, server.ObjectStorageCheck(a.minio, a.cfg.ObjectStorage.Bucket))
	}
	deps := server.Dependencies{
		Config:        a.cfg,
		Log:           a.log,
		Checks:        checks,
		AuthService:   authService,
		Accounts:      a.accounts,
		FolderService: a.folders,
		DriveService:  a.drive,
	}
	if local, ok := a.backend.(*blobstore.Local); ok {
		deps.LocalFiles = local
	}
	return deps
}

// Close drains background work before releasing connections.
func (a *app) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
