package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/openshelf-backend/internal/borrowings"
	"github.com/angelmondragon/openshelf-backend/internal/checkout"
	"github.com/angelmondragon/openshelf-backend/internal/cron"
	"github.com/angelmondragon/openshelf-backend/internal/notifier"
	"github.com/angelmondragon/openshelf-backend/internal/payments"
	"github.com/angelmondragon/openshelf-backend/pkg/config"
	"github.com/angelmondragon/openshelf-backend/pkg/db"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/angelmondragon/openshelf-backend/pkg/metrics"
	"github.com/angelmondragon/openshelf-backend/pkg/migrate"
	"github.com/angelmondragon/openshelf-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/openshelf-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}
	gateway, err := checkout.NewStripeGateway(stripeClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout gateway", err)
		os.Exit(1)
	}

	var sink notifier.Sink = notifier.NopSink{}
	if cfg.Telegram.Enabled() {
		sink, err = notifier.NewTelegramSink(cfg.Telegram)
		if err != nil {
			logg.Error(context.Background(), "failed to create telegram sink", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "telegram credentials missing, overdue reports disabled")
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	overdueJob, err := cron.NewOverdueBorrowingsJob(cron.OverdueBorrowingsJobParams{
		Logger:  logg,
		Repo:    borrowings.NewRepository(dbClient.DB()),
		Sink:    sink,
		Metrics: metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create overdue borrowings job", err)
		os.Exit(1)
	}
	expiredJob, err := cron.NewExpiredSessionsJob(cron.ExpiredSessionsJobParams{
		Logger:  logg,
		Repo:    payments.NewRepository(dbClient.DB()),
		Gateway: gateway,
		Metrics: metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expired sessions job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, "cron-worker:"+cfg.App.Env, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	worker, err := cron.NewWorker(cron.WorkerParams{
		Logger:   logg,
		Registry: cron.NewRegistry(overdueJob, expiredJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
