package capacity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/db/models"
)

// Repository defines the persistence surface for seat accounting.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// LockTripBoat serializes concurrent admissions against one pairing.
	LockTripBoat(ctx context.Context, id uuid.UUID) error
	FindTripBoat(ctx context.Context, id uuid.UUID) (*models.TripBoat, error)
	// CommittedCounts sums active booking items per ticket type for the
	// pairing, excluding cancelled bookings.
	CommittedCounts(ctx context.Context, tripBoatID uuid.UUID) (map[string]int, error)
}
