package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	"github.com/harborline/excursions-backend/pkg/pagination"
)

// Repository defines persistence operations for booking aggregates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	FindByCode(ctx context.Context, code string) (*models.Booking, error)
	FindByPaymentRef(ctx context.Context, ref string) (*models.Booking, error)
	// LockByID serializes concurrent writers against one booking row.
	LockByID(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*BookingList, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateItemStatuses(ctx context.Context, bookingID uuid.UUID, from, to enums.BookingItemStatus) error
	UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.BookingItemStatus) error
	FindExpiredDrafts(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	FindStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	// ClaimConfirmationSend flips confirmation_sent_at once; false means
	// another worker already sent it.
	ClaimConfirmationSend(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	DeleteCancelled(ctx context.Context, id uuid.UUID) (bool, error)
}
