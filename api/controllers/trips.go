package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/harborline/excursions-backend/api/responses"
	"github.com/harborline/excursions-backend/api/validators"
	"github.com/harborline/excursions-backend/internal/capacity"
	"github.com/harborline/excursions-backend/internal/trips"
	"github.com/harborline/excursions-backend/pkg/db/models"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/logger"
	"github.com/harborline/excursions-backend/pkg/pagination"
)

type tripBoatAvailability struct {
	TripBoatID uuid.UUID                     `json:"trip_boat_id"`
	BoatName   string                        `json:"boat_name"`
	Tickets    []capacity.TicketAvailability `json:"tickets"`
}

type tripDetailResponse struct {
	ID        uuid.UUID              `json:"id"`
	EventID   uuid.UUID              `json:"event_id"`
	EventName string                 `json:"event_name,omitempty"`
	Name      string                 `json:"name"`
	DepartsAt time.Time              `json:"departs_at"`
	Boats     []tripBoatAvailability `json:"boats"`
}

type merchandiseVariantResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Remaining int       `json:"remaining"`
}

type tripMerchandiseResponse struct {
	ID                uuid.UUID                    `json:"id"`
	Name              string                       `json:"name"`
	PriceCents        int                          `json:"price_cents"`
	QuantityAvailable int                          `json:"quantity_available"`
	Variants          []merchandiseVariantResponse `json:"variants,omitempty"`
}

// TripDirectory lists upcoming public departures, optionally scoped to one
// event.
func TripDirectory(svc trips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "trips service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		var eventID *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("event_id")); raw != "" {
			parsed, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid event id"))
				return
			}
			eventID = &parsed
		}

		page, err := svc.Directory(r.Context(), eventID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// TripDetail returns one departure with live per-boat seat availability.
func TripDetail(svc trips.Service, capacitySvc capacity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || capacitySvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "trips service unavailable"))
			return
		}

		tripID, err := parseTripID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		trip, err := svc.GetTrip(r.Context(), tripID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		boats, err := boatAvailability(r, capacitySvc, trip)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail := tripDetailResponse{
			ID:        trip.ID,
			EventID:   trip.EventID,
			Name:      trip.Name,
			DepartsAt: trip.DepartsAt,
			Boats:     boats,
		}
		if trip.Event != nil {
			detail.EventName = trip.Event.Name
		}

		responses.WriteSuccess(w, detail)
	}
}

// TripAvailability returns only the per-boat seat counts for one departure,
// for clients polling while a customer picks seats.
func TripAvailability(svc trips.Service, capacitySvc capacity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || capacitySvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "trips service unavailable"))
			return
		}

		tripID, err := parseTripID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		trip, err := svc.GetTrip(r.Context(), tripID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		boats, err := boatAvailability(r, capacitySvc, trip)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, boats)
	}
}

// TripMerchandise lists the merchandise sellable alongside one departure.
func TripMerchandise(svc trips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "trips service unavailable"))
			return
		}

		tripID, err := parseTripID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		links, err := svc.GetTripMerchandise(r.Context(), tripID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]tripMerchandiseResponse, 0, len(links))
		for _, link := range links {
			out = append(out, merchandiseResponse(link))
		}
		responses.WriteSuccess(w, out)
	}
}

func merchandiseResponse(link models.TripMerchandise) tripMerchandiseResponse {
	resp := tripMerchandiseResponse{
		ID:                link.ID,
		PriceCents:        link.EffectivePriceCents(),
		QuantityAvailable: link.EffectiveQuantityAvailable(),
	}
	if link.MerchandiseItem != nil {
		resp.Name = link.MerchandiseItem.Name
		for _, variant := range link.MerchandiseItem.Variants {
			remaining := variant.QuantityTotal - variant.QuantitySold
			if remaining < 0 {
				remaining = 0
			}
			resp.Variants = append(resp.Variants, merchandiseVariantResponse{
				ID:        variant.ID,
				Name:      variant.Name,
				Remaining: remaining,
			})
		}
	}
	return resp
}

func boatAvailability(r *http.Request, capacitySvc capacity.Service, trip *models.Trip) ([]tripBoatAvailability, error) {
	boats := make([]tripBoatAvailability, 0, len(trip.Boats))
	for _, tb := range trip.Boats {
		entry := tripBoatAvailability{TripBoatID: tb.ID}
		if tb.Boat != nil {
			entry.BoatName = tb.Boat.Name
		}
		tickets, err := capacitySvc.Snapshot(r.Context(), tb.ID)
		if err != nil {
			return nil, err
		}
		entry.Tickets = tickets
		boats = append(boats, entry)
	}
	return boats, nil
}

func parseTripID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "tripID"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "trip id is required")
	}
	tripID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid trip id")
	}
	return tripID, nil
}
