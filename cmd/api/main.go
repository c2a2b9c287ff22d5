package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/harborline/excursions-backend/api/routes"
	"github.com/harborline/excursions-backend/internal/accesstokens"
	"github.com/harborline/excursions-backend/internal/admission"
	"github.com/harborline/excursions-backend/internal/bookings"
	"github.com/harborline/excursions-backend/internal/capacity"
	"github.com/harborline/excursions-backend/internal/inventory"
	"github.com/harborline/excursions-backend/internal/notifications"
	"github.com/harborline/excursions-backend/internal/payments"
	"github.com/harborline/excursions-backend/internal/refunds"
	"github.com/harborline/excursions-backend/internal/trips"
	squarewebhook "github.com/harborline/excursions-backend/internal/webhooks/square"
	"github.com/harborline/excursions-backend/pkg/config"
	"github.com/harborline/excursions-backend/pkg/db"
	"github.com/harborline/excursions-backend/pkg/logger"
	"github.com/harborline/excursions-backend/pkg/metrics"
	"github.com/harborline/excursions-backend/pkg/migrate"
	"github.com/harborline/excursions-backend/pkg/redis"
	"github.com/harborline/excursions-backend/pkg/square"
)

// Square retries failed webhook deliveries for up to a day; keep dedupe
// records around longer than that.
const webhookGuardTTL = 48 * time.Hour

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
	tripsRepo := trips.NewRepository(gormDB)
	bookingsRepo := bookings.NewRepository(gormDB)

	capacityService, err := capacity.NewService(capacity.NewRepository(gormDB))
	requireService(logg, "capacity service", err)

	inventoryService, err := inventory.NewService(inventory.NewRepository(gormDB))
	requireService(logg, "inventory service", err)

	tokensService, err := accesstokens.NewService(accesstokens.NewRepository(gormDB))
	requireService(logg, "access token service", err)

	tripsService, err := trips.NewService(tripsRepo)
	requireService(logg, "trips service", err)

	bookingsService, err := bookings.NewService(bookingsRepo, dbClient, inventoryService, logg)
	requireService(logg, "bookings service", err)

	admissionMetrics := metrics.NewAdmissionMetrics(prometheus.DefaultRegisterer)
	admissionService, err := admission.NewService(
		tripsRepo,
		tokensService,
		capacityService,
		inventoryService,
		bookingsRepo,
		dbClient,
		admissionMetrics,
		cfg.Bookings,
		logg,
	)
	requireService(logg, "admission service", err)

	sender := notifications.NewSendgridSender(cfg.Sendgrid)
	paymentsService, err := payments.NewService(bookingsRepo, dbClient, squareClient, sender, logg)
	requireService(logg, "payments service", err)

	refundsService, err := refunds.NewService(bookingsRepo, dbClient, squareClient, inventoryService, logg)
	requireService(logg, "refunds service", err)

	webhookService, err := squarewebhook.NewService(paymentsService, logg)
	requireService(logg, "square webhook service", err)

	webhookGuard, err := squarewebhook.NewIdempotencyGuard(redisClient, webhookGuardTTL, "square-webhook")
	requireService(logg, "square webhook guard", err)

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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			squareClient,
			tripsService,
			capacityService,
			admissionService,
			bookingsService,
			paymentsService,
			refundsService,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name, err)
	os.Exit(1)
}
