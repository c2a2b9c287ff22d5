package trips

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/internal/repo"
	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	"github.com/harborline/excursions-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: repo.Session(r.db, tx)}
}

func (r *repository) FindEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	var trip models.Trip
	err := r.db.WithContext(ctx).
		Preload("Event").
		Where("id = ?", id).
		First(&trip).Error
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (r *repository) FindTripWithBoats(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	var trip models.Trip
	err := r.db.WithContext(ctx).
		Preload("Event").
		Preload("Boats.Boat.TicketTypes").
		Preload("Boats.Overrides").
		Where("id = ?", id).
		First(&trip).Error
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func (r *repository) ListUpcomingTrips(ctx context.Context, eventID *uuid.UUID, after time.Time, params pagination.Params) (*TripList, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Preload("Event").
		Joins("JOIN events ON events.id = trips.event_id").
		Where("trips.active = ?", true).
		Where("events.active = ?", true).
		Where("events.visibility_mode <> ?", enums.VisibilityModePrivate).
		Where("trips.departs_at > ?", after)
	if eventID != nil {
		query = query.Where("trips.event_id = ?", *eventID)
	}
	if cursor != nil {
		query = query.Where(
			"(trips.created_at < ?) OR (trips.created_at = ? AND trips.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Trip
	if err := query.
		Order("trips.created_at DESC, trips.id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &TripList{Trips: rows}
	if len(rows) == limit {
		last := rows[limit-2]
		list.Trips = rows[:limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
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

func (r *repository) FindTripBoats(ctx context.Context, ids []uuid.UUID) ([]models.TripBoat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.TripBoat
	err := r.db.WithContext(ctx).
		Preload("Trip").
		Preload("Boat.TicketTypes").
		Preload("Overrides").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindTripMerchandise(ctx context.Context, id uuid.UUID) (*models.TripMerchandise, error) {
	var tm models.TripMerchandise
	err := r.db.WithContext(ctx).
		Preload("Trip").
		Preload("MerchandiseItem.Variants").
		Where("id = ?", id).
		First(&tm).Error
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func (r *repository) ListTripMerchandise(ctx context.Context, tripID uuid.UUID) ([]models.TripMerchandise, error) {
	var rows []models.TripMerchandise
	err := r.db.WithContext(ctx).
		Preload("MerchandiseItem.Variants").
		Where("trip_id = ?", tripID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
