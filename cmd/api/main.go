package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/openshelf-backend/api/routes"
	"github.com/angelmondragon/openshelf-backend/internal/books"
	"github.com/angelmondragon/openshelf-backend/internal/borrowings"
	"github.com/angelmondragon/openshelf-backend/internal/checkout"
	"github.com/angelmondragon/openshelf-backend/internal/notifier"
	"github.com/angelmondragon/openshelf-backend/internal/payments"
	"github.com/angelmondragon/openshelf-backend/internal/users"
	"github.com/angelmondragon/openshelf-backend/pkg/config"
	"github.com/angelmondragon/openshelf-backend/pkg/db"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/angelmondragon/openshelf-backend/pkg/migrate"
	"github.com/angelmondragon/openshelf-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/openshelf-backend/pkg/stripe"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
		logg.Warn(context.Background(), "telegram credentials missing, notifications disabled")
	}

	booksRepo := books.NewRepository(dbClient.DB())
	borrowingsRepo := borrowings.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())

	booksService, err := books.NewService(booksRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create books service", err)
		os.Exit(1)
	}
	borrowingsService, err := borrowings.NewService(
		borrowingsRepo, booksRepo, paymentsRepo, usersRepo, dbClient, gateway, sink, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create borrowings service", err)
		os.Exit(1)
	}
	paymentsService, err := payments.NewService(paymentsRepo, gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}
	usersService, err := users.NewService(usersRepo, cfg.JWT, cfg.Password, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Users:      usersService,
			Books:      booksService,
			Borrowings: borrowingsService,
			Payments:   paymentsService,
		}),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-stopCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "server shutdown error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
