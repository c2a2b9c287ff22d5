package trips

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/pagination"
)

// Repository defines read operations over the excursion catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	FindTripWithBoats(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	ListUpcomingTrips(ctx context.Context, eventID *uuid.UUID, after time.Time, params pagination.Params) (*TripList, error)
	FindTripBoat(ctx context.Context, id uuid.UUID) (*models.TripBoat, error)
	FindTripBoats(ctx context.Context, ids []uuid.UUID) ([]models.TripBoat, error)
	FindTripMerchandise(ctx context.Context, id uuid.UUID) (*models.TripMerchandise, error)
	ListTripMerchandise(ctx context.Context, tripID uuid.UUID) ([]models.TripMerchandise, error)
}
