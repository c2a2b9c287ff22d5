package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborline/excursions-backend/api/controllers"
	webhookcontrollers "github.com/harborline/excursions-backend/api/controllers/webhooks"
	"github.com/harborline/excursions-backend/api/middleware"
	"github.com/harborline/excursions-backend/internal/admission"
	"github.com/harborline/excursions-backend/internal/bookings"
	"github.com/harborline/excursions-backend/internal/capacity"
	"github.com/harborline/excursions-backend/internal/payments"
	"github.com/harborline/excursions-backend/internal/refunds"
	"github.com/harborline/excursions-backend/internal/trips"
	squarewebhook "github.com/harborline/excursions-backend/internal/webhooks/square"
	"github.com/harborline/excursions-backend/pkg/config"
	"github.com/harborline/excursions-backend/pkg/db"
	"github.com/harborline/excursions-backend/pkg/logger"
	"github.com/harborline/excursions-backend/pkg/redis"
	"github.com/harborline/excursions-backend/pkg/square"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	squareClient *square.Client,
	tripsService trips.Service,
	capacityService capacity.Service,
	admissionService admission.Service,
	bookingsService bookings.Service,
	paymentsService payments.Service,
	refundsService refunds.Service,
	webhookService *squarewebhook.Service,
	webhookGuard *squarewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquareWebhook(webhookService, squareClient, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/trips", func(r chi.Router) {
			r.Get("/", controllers.TripDirectory(tripsService, logg))
			r.Get("/{tripID}", controllers.TripDetail(tripsService, capacityService, logg))
			r.Get("/{tripID}/availability", controllers.TripAvailability(tripsService, capacityService, logg))
			r.Get("/{tripID}/merchandise", controllers.TripMerchandise(tripsService, logg))
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", controllers.BookingCreate(admissionService, logg))
			r.Get("/{code}", controllers.BookingFetch(bookingsService, logg))
			r.Post("/{code}/payment", controllers.PaymentCreate(paymentsService, logg))
			r.Get("/{code}/payment", controllers.PaymentPoll(paymentsService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminKey(cfg.Bookings.AdminAPIKey, logg))

			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", controllers.AdminBookingList(bookingsService, logg))
				r.Post("/{code}/confirm", controllers.AdminBookingConfirm(bookingsService, logg))
				r.Post("/{code}/check-in", controllers.AdminBookingCheckIn(bookingsService, logg))
				r.Post("/{code}/complete", controllers.AdminBookingComplete(bookingsService, logg))
				r.Post("/{code}/cancel", controllers.AdminBookingCancel(bookingsService, logg))
				r.Post("/{code}/refund", controllers.AdminBookingRefund(refundsService, logg))
				r.Delete("/{code}", controllers.AdminBookingDelete(bookingsService, logg))
			})
		})
	})

	return r
}
