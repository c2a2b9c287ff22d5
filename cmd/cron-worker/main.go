package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/harborline/excursions-backend/internal/bookings"
	"github.com/harborline/excursions-backend/internal/cron"
	"github.com/harborline/excursions-backend/internal/inventory"
	"github.com/harborline/excursions-backend/internal/notifications"
	"github.com/harborline/excursions-backend/internal/payments"
	"github.com/harborline/excursions-backend/pkg/config"
	"github.com/harborline/excursions-backend/pkg/db"
	"github.com/harborline/excursions-backend/pkg/logger"
	"github.com/harborline/excursions-backend/pkg/metrics"
	"github.com/harborline/excursions-backend/pkg/migrate"
	"github.com/harborline/excursions-backend/pkg/redis"
	"github.com/harborline/excursions-backend/pkg/square"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	bookingsRepo := bookings.NewRepository(gormDB)

	inventoryService, err := inventory.NewService(inventory.NewRepository(gormDB))
	requireService(logg, "inventory service", err)

	bookingsService, err := bookings.NewService(bookingsRepo, dbClient, inventoryService, logg)
	requireService(logg, "bookings service", err)

	sender := notifications.NewSendgridSender(cfg.Sendgrid)
	paymentsService, err := payments.NewService(bookingsRepo, dbClient, squareClient, sender, logg)
	requireService(logg, "payments service", err)

	draftExpiry, err := cron.NewDraftExpiryJob(bookingsService, logg)
	requireService(logg, "draft expiry job", err)

	paymentReconcile, err := cron.NewPaymentReconcileJob(paymentsService, logg)
	requireService(logg, "payment reconcile job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 0)
	requireService(logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(draftExpiry, paymentReconcile),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	requireService(logg, "cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name, err)
	os.Exit(1)
}
