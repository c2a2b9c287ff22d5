package capacity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/internal/repo"
	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a capacity repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: repo.Session(r.db, tx)}
}

func (r *repository) LockTripBoat(ctx context.Context, id uuid.UUID) error {
	// FOR UPDATE is Postgres-only; other dialects (sqlite in tests) fall
	// back to a plain existence check.
	query := "SELECT id FROM trip_boats WHERE id = ?"
	if r.db.Dialector.Name() == "postgres" {
		query += " FOR UPDATE"
	}
	var locked string
	if err := r.db.WithContext(ctx).Raw(query, id).Scan(&locked).Error; err != nil {
		return err
	}
	if locked == "" {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindTripBoat(ctx context.Context, id uuid.UUID) (*models.TripBoat, error) {
	var tb models.TripBoat
	err := r.db.WithContext(ctx).
		Preload("Boat.TicketTypes").
		Preload("Overrides").
		Where("id = ?", id).
		First(&tb).Error
	if err != nil {
		return nil, err
	}
	return &tb, nil
}

func (r *repository) CommittedCounts(ctx context.Context, tripBoatID uuid.UUID) (map[string]int, error) {
	type row struct {
		TicketType string
		Total      int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Table("booking_items").
		Select("booking_items.ticket_type AS ticket_type, COALESCE(SUM(booking_items.quantity), 0) AS total").
		Joins("JOIN bookings ON bookings.id = booking_items.booking_id").
		Where("booking_items.trip_boat_id = ?", tripBoatID).
		Where("booking_items.status = ?", enums.BookingItemStatusActive).
		Where("bookings.status <> ?", enums.BookingStatusCancelled).
		Group("booking_items.ticket_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.TicketType] = r.Total
	}
	return counts, nil
}
