package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/postwatch/postwatch/internal/api"
	"github.com/postwatch/postwatch/internal/config"
	"github.com/postwatch/postwatch/internal/database"
	"github.com/postwatch/postwatch/internal/fetch"
	"github.com/postwatch/postwatch/internal/logging"
	"github.com/postwatch/postwatch/internal/metrics"
	"github.com/postwatch/postwatch/internal/monitor"
	"github.com/postwatch/postwatch/internal/notify"
	"github.com/postwatch/postwatch/internal/scheduler"
	"github.com/postwatch/postwatch/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting postwatch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL

	logger.Info("connecting to database")
	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	accounts := database.NewPostgresAccountRepository(db)
	posts := database.NewPostgresPostRepository(db)
	webhooks := database.NewPostgresWebhookRepository(db)
	stats := database.NewPostgresStatsRepository(db)

	collector, err := metrics.NewPipelineCollector()
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	retry := fetch.RetryPolicy{
		MaxRetries:     cfg.Fetch.MaxRetries,
		InitialBackoff: cfg.Fetch.InitialBackoff,
		MaxBackoff:     cfg.Fetch.MaxBackoff,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
	platformCfg := fetch.PlatformConfig{
		RequestTimeout: cfg.Fetch.RequestTimeout,
		SessionRefresh: cfg.Fetch.SessionRefresh,
		CacheTTL:       cfg.Fetch.ProfileCacheTTL,
		Retry:          retry,
		MaxPages:       cfg.Monitor.MaxPages,
		Logger:         logger,
		Collector:      collector,
	}

	weibo, err := fetch.NewWeiboFetcher(platformCfg)
	if err != nil {
		logger.Error("failed to build weibo fetcher", "error", err)
		os.Exit(1)
	}
	douyin, err := fetch.NewDouyinFetcher(platformCfg)
	if err != nil {
		logger.Error("failed to build douyin fetcher", "error", err)
		os.Exit(1)
	}
	fetchRouter := fetch.NewRouter(weibo, douyin)
	logger.Info("content fetchers ready", "platforms", fetchRouter.Platforms())

	dispatcher := notify.NewDispatcher(webhooks, posts, stats, cfg.Notify.DeliveryTimeout, logger, collector)
	mon := monitor.NewMonitor(accounts, posts, stats, fetchRouter, dispatcher, cfg.Monitor.PauseThreshold, logger, collector)

	sched := scheduler.NewScheduler(mon, cfg.Monitor.CheckCadence, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	mux := http.NewServeMux()
	api.SetupRoutes(mux, accounts, posts, webhooks, stats, fetchRouter, sched, collector, logger)

	srv := server.New(cfg.Server, logger, mux)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	sched.Stop()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("postwatch stopped")
}
