package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ytsprites/api/internal/client"
	"github.com/ytsprites/api/internal/config"
	"github.com/ytsprites/api/internal/logging"
	"github.com/ytsprites/api/internal/middleware"
	"github.com/ytsprites/api/internal/model"
	"github.com/ytsprites/api/internal/server"
	"github.com/ytsprites/api/internal/service"
	"github.com/ytsprites/api/internal/sprite"
	"github.com/ytsprites/api/internal/websocket"
	"github.com/ytsprites/api/internal/worker"
	"github.com/ytsprites/api/internal/workspace"
)

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Minute
)

func runServe(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Initialize Redis client (optional - rate limiting is off without it)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not available, rate limiting disabled", zap.Error(err))
			redisClient = nil
		}
	}

	// Initialize storage client (optional - results stay in memory only)
	var storage client.StorageClient
	if cfg.Storage.Enabled() {
		s3Client, err := client.NewS3Client(ctx, &cfg.Storage)
		if err != nil {
			logger.Warn("storage client not initialized", zap.Error(err))
		} else {
			storage = s3Client
		}
	} else {
		logger.Info("result archiving not configured")
	}

	ffmpeg := client.NewFFmpegClient(&cfg.FFmpeg)
	if err := ffmpeg.Check(ctx); err != nil {
		logger.Warn("ffmpeg not usable, jobs will fail", zap.Error(err))
	}

	store := service.NewJobStore(cfg.Queue.MaxSize)
	workspaces := workspace.NewManager(cfg.Workspace.TmpDir, logger.Named("workspace"))
	spriteService := service.NewSpriteService(store, workspaces, defaultOptions(cfg), logger.Named("service"))
	engine := sprite.NewEngine(ffmpeg, cfg.Sprites.TileWidth, cfg.Sprites.TileHeight, logger.Named("sprite"))

	pool := worker.NewPool(store, engine, workspaces, logger.Named("worker"),
		worker.WithWorkers(cfg.Queue.Workers),
		worker.WithIdleBackoff(cfg.Queue.IdleBackoff),
		worker.WithStorage(storage, cfg.Storage.Prefix),
	)
	hub := websocket.NewHub(spriteService, time.Second, logger.Named("websocket"))

	app := server.New(server.Deps{
		Service:       spriteService,
		Hub:           hub,
		RateLimiter:   middleware.NewRateLimiter(redisClient, logger.Named("ratelimit")),
		SubmitPerHour: cfg.RateLimit.SubmitPerHour,
		BodyLimit:     cfg.BodyLimitBytes(),
		Version:       version,
		Port:          cfg.Server.Port,
		Labels:        cfg.Info.Labels,
		AccessLog:     true,
		Debug:         strings.EqualFold(cfg.Server.LogLevel, "debug"),
		Logger:        logger.Named("http"),
	})

	g, gctx := errgroup.WithContext(ctx)

	pool.Start(gctx)
	g.Go(func() error {
		<-gctx.Done()
		pool.Wait()
		return nil
	})

	g.Go(func() error {
		return spriteService.RunJanitor(gctx, janitorInterval, cfg.Queue.Retention)
	})

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.Int("workers", cfg.Queue.Workers),
			zap.Int("queue_size", cfg.Queue.MaxSize),
			zap.String("tmp_dir", workspaces.BaseDir()),
		)
		return app.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func defaultOptions(cfg *config.Config) model.SpriteOptions {
	return model.SpriteOptions{
		StepSec: cfg.Sprites.StepSec,
		Columns: cfg.Sprites.Columns,
		Rows:    cfg.Sprites.Rows,
		Format:  cfg.Sprites.Format,
		Quality: cfg.Sprites.Quality,
	}
}
