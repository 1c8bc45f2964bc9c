package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/pharmalink/pharmalink/internal/app"
	"github.com/pharmalink/pharmalink/internal/bus"
	"github.com/pharmalink/pharmalink/internal/ledger"
	"github.com/pharmalink/pharmalink/internal/messaging"
	"github.com/pharmalink/pharmalink/internal/platform/cache"
	"github.com/pharmalink/pharmalink/internal/platform/db"
	"github.com/pharmalink/pharmalink/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, db.Config{
		DSN:            cfg.PGDSN,
		MaxConns:       cfg.PGMaxConns,
		ConnectTimeout: cfg.PGConnectTimeout,
	})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Config{
		Addr:        cfg.RedisAddr,
		DialTimeout: cfg.RedisDialTimeout,
		PingTimeout: cfg.RedisPingTimeout,
	})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// The worker publishes through the same redis channel the web
	// process fans out from, so realtime clients still hear job events.
	bridge := bus.NewBridge(bus.New(), redisClient, logger)
	publisher := bus.NewPublisher(bridge, logger, nil)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)

	messagingRepo := messaging.NewRepository(pool)
	messagingService := messaging.NewService(messagingRepo, publisher, logger)

	expiryJob := jobs.NewExpirySweepJob(ledgerService, messagingService, logger, cfg.ExpiryHorizon)
	lowStockJob := jobs.NewLowStockScanJob(ledgerService, messagingService, logger)

	expiryTask, err := jobs.NewExpirySweepTask(jobs.ExpirySweepPayload{HorizonHours: int(cfg.ExpiryHorizon.Hours())})
	if err != nil {
		logger.Error("build expiry sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	lowStockTask := jobs.NewLowStockScanTask()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeExpirySweep, Handler: expiryJob.Handle},
			{Type: jobs.TaskTypeLowStockScan, Handler: lowStockJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ExpirySweepCron, Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.LowStockScanCron, Task: lowStockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil {
		logger.Error("worker", slog.Any("error", err))
		os.Exit(1)
	}
}
