package trips

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/pagination"
)

// Service exposes the public excursion directory and trip lookups.
type Service interface {
	Directory(ctx context.Context, eventID *uuid.UUID, params pagination.Params) (*DirectoryPage, error)
	GetTrip(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	GetTripMerchandise(ctx context.Context, tripID uuid.UUID) ([]models.TripMerchandise, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the catalog service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("trips repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Directory(ctx context.Context, eventID *uuid.UUID, params pagination.Params) (*DirectoryPage, error) {
	list, err := s.repo.ListUpcomingTrips(ctx, eventID, s.now().UTC(), params)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &DirectoryPage{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing upcoming trips")
	}

	page := &DirectoryPage{
		Trips:      make([]TripSummary, 0, len(list.Trips)),
		NextCursor: list.NextCursor,
	}
	for _, trip := range list.Trips {
		summary := TripSummary{
			ID:        trip.ID,
			EventID:   trip.EventID,
			Name:      trip.Name,
			DepartsAt: trip.DepartsAt,
		}
		if trip.Event != nil {
			summary.EventName = trip.Event.Name
		}
		page.Trips = append(page.Trips, summary)
	}
	return page, nil
}

func (s *service) GetTrip(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	trip, err := s.repo.FindTripWithBoats(ctx, tripID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "trip not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading trip")
	}
	if !trip.Active || (trip.Event != nil && !trip.Event.Active) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "trip not found")
	}
	if trip.Event != nil && trip.Event.VisibilityMode == enums.VisibilityModePrivate {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "trip not found")
	}
	return trip, nil
}

func (s *service) GetTripMerchandise(ctx context.Context, tripID uuid.UUID) ([]models.TripMerchandise, error) {
	links, err := s.repo.ListTripMerchandise(ctx, tripID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing trip merchandise")
	}
	return links, nil
}
