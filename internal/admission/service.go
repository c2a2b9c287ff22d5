package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/internal/bookings"
	"github.com/harborline/excursions-backend/internal/capacity"
	"github.com/harborline/excursions-backend/internal/pricing"
	"github.com/harborline/excursions-backend/pkg/config"
	"github.com/harborline/excursions-backend/pkg/db"
	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/logger"
	"github.com/harborline/excursions-backend/pkg/metrics"
)

const codeAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Catalog is the slice of the trip catalog admission reads.
type Catalog interface {
	FindEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindTripBoats(ctx context.Context, ids []uuid.UUID) ([]models.TripBoat, error)
	FindTripMerchandise(ctx context.Context, id uuid.UUID) (*models.TripMerchandise, error)
}

// TokenAuthorizer gates admission into non-public events.
type TokenAuthorizer interface {
	Authorize(ctx context.Context, event *models.Event, tokenCode string) (*models.AccessToken, error)
	Consume(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID) error
}

// SeatChecker verifies seat availability under row locks.
type SeatChecker interface {
	CheckBatch(ctx context.Context, tx *gorm.DB, requests []capacity.SeatRequest) error
}

// InventoryReserver sells merchandise units inside the admission transaction.
type InventoryReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error
}

// Service admits bookings atomically: every requested seat and unit is
// granted, or the whole request is refused and nothing is held.
type Service interface {
	Admit(ctx context.Context, input AdmitInput) (*models.Booking, error)
}

type service struct {
	catalog   Catalog
	tokens    TokenAuthorizer
	seats     SeatChecker
	inventory InventoryReserver
	bookings  bookings.Repository
	tx        txRunner
	metrics   *metrics.AdmissionMetrics
	cfg       config.BookingsConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the admission service with the required dependencies.
func NewService(
	catalog Catalog,
	tokens TokenAuthorizer,
	seats SeatChecker,
	inventory InventoryReserver,
	bookingRepo bookings.Repository,
	tx txRunner,
	admissionMetrics *metrics.AdmissionMetrics,
	cfg config.BookingsConfig,
	logg *logger.Logger,
) (Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token authorizer required")
	}
	if seats == nil {
		return nil, fmt.Errorf("seat checker required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory reserver required")
	}
	if bookingRepo == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		catalog:   catalog,
		tokens:    tokens,
		seats:     seats,
		inventory: inventory,
		bookings:  bookingRepo,
		tx:        tx,
		metrics:   admissionMetrics,
		cfg:       cfg,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Admit(ctx context.Context, input AdmitInput) (*models.Booking, error) {
	booking, err := s.admit(ctx, input)
	switch {
	case err == nil:
		s.metrics.IncOutcome("admitted")
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		s.metrics.IncOutcome("conflict")
	default:
		s.metrics.IncOutcome("rejected")
	}
	return booking, err
}

func (s *service) admit(ctx context.Context, input AdmitInput) (*models.Booking, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	event, err := s.loadEvent(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Authorize(ctx, event, input.AccessTokenCode)
	if err != nil {
		return nil, err
	}

	items, seatRequests, subtotal, err := s.buildItems(ctx, event, input, now)
	if err != nil {
		return nil, err
	}
	if input.DiscountCents > subtotal {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal").
			WithDetails(map[string]any{"discount_cents": input.DiscountCents, "subtotal_cents": subtotal})
	}

	expiresAt := now.Add(s.cfg.DraftTTL)
	booking := &models.Booking{
		EventID:       event.ID,
		Status:        enums.BookingStatusDraft,
		PaymentStatus: enums.PaymentStatusNone,
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerEmail: strings.TrimSpace(input.CustomerEmail),
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		SubtotalCents: subtotal,
		DiscountCents: input.DiscountCents,
		TaxCents:      input.TaxCents,
		TipCents:      input.TipCents,
		TotalCents:    subtotal - input.DiscountCents + input.TaxCents + input.TipCents,
		ExpiresAt:     &expiresAt,
	}
	if token != nil {
		booking.AccessTokenID = &token.ID
	}

	// Confirmation codes collide rarely; retry the whole transaction with a
	// fresh code when they do.
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newConfirmationCode(s.cfg.CodePrefix)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating confirmation code")
		}
		booking.ID = uuid.Nil
		booking.Code = code
		booking.Items = cloneItems(items)

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.seats.CheckBatch(ctx, tx, seatRequests); err != nil {
				return err
			}
			if err := s.bookings.WithTx(tx).Create(ctx, booking); err != nil {
				return err
			}
			if token != nil {
				if err := s.tokens.Consume(ctx, tx, token.ID); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			// Merchandise decrements land in a second transaction. The
			// booking is already committed, so a stock failure here leaves
			// it standing and is reported as an upstream failure.
			if err := s.reserveMerchandise(ctx, booking); err != nil {
				return nil, err
			}
			s.logg.Info(s.logg.WithBookingCode(ctx, booking.Code), "booking admitted")
			return booking, nil
		}
		if db.IsUniqueViolation(err, "") {
			continue
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "admitting booking")
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "exhausted confirmation code attempts")
}

// reserveMerchandise decrements stock for the booking's merchandise items in
// its own transaction, after the booking itself has committed.
func (s *service) reserveMerchandise(ctx context.Context, booking *models.Booking) error {
	hasMerch := false
	for i := range booking.Items {
		if booking.Items[i].IsMerchandise() {
			hasMerch = true
			break
		}
	}
	if !hasMerch {
		return nil
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for i := range booking.Items {
			item := &booking.Items[i]
			if !item.IsMerchandise() {
				continue
			}
			if err := s.inventory.Reserve(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	s.logg.Error(s.logg.WithBookingCode(ctx, booking.Code), "reserving merchandise after admission", err)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merchandise reservation failed, booking held").
		WithDetails(map[string]any{"code": booking.Code})
}

func (s *service) loadEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.catalog.FindEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading event")
	}
	if !event.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	return event, nil
}

func (s *service) buildItems(ctx context.Context, event *models.Event, input AdmitInput, now time.Time) ([]models.BookingItem, []capacity.SeatRequest, int, error) {
	items := make([]models.BookingItem, 0, len(input.Tickets)+len(input.Merchandise))
	seatRequests := make([]capacity.SeatRequest, 0, len(input.Tickets))
	total := 0

	if len(input.Tickets) > 0 {
		ids := make([]uuid.UUID, 0, len(input.Tickets))
		seen := make(map[uuid.UUID]bool)
		for _, line := range input.Tickets {
			if !seen[line.TripBoatID] {
				seen[line.TripBoatID] = true
				ids = append(ids, line.TripBoatID)
			}
		}
		tbs, err := s.catalog.FindTripBoats(ctx, ids)
		if err != nil {
			return nil, nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading trip boats")
		}
		byID := make(map[uuid.UUID]*models.TripBoat, len(tbs))
		for i := range tbs {
			byID[tbs[i].ID] = &tbs[i]
		}

		for _, line := range input.Tickets {
			tb, ok := byID[line.TripBoatID]
			if !ok {
				return nil, nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown trip boat").
					WithDetails(map[string]any{"trip_boat_id": line.TripBoatID.String()})
			}
			if err := checkTripBookable(tb.Trip, event, now); err != nil {
				return nil, nil, 0, err
			}
			terms, err := pricing.TermsFor(tb, line.TicketType)
			if err != nil {
				return nil, nil, 0, err
			}
			if line.UnitPriceCents != terms.PriceCents {
				return nil, nil, 0, pkgerrors.New(pkgerrors.CodeConflict, "price mismatch").
					WithDetails(map[string]any{
						"ticket_type": line.TicketType,
						"quoted":      line.UnitPriceCents,
						"current":     terms.PriceCents,
					})
			}
			tbID := line.TripBoatID
			items = append(items, models.BookingItem{
				Status:         enums.BookingItemStatusActive,
				TripBoatID:     &tbID,
				TicketType:     line.TicketType,
				Quantity:       line.Quantity,
				UnitPriceCents: terms.PriceCents,
			})
			seatRequests = append(seatRequests, capacity.SeatRequest{
				TripBoatID: line.TripBoatID,
				TicketType: line.TicketType,
				Quantity:   line.Quantity,
			})
			total += line.Quantity * terms.PriceCents
		}
	}

	for _, line := range input.Merchandise {
		tm, err := s.catalog.FindTripMerchandise(ctx, line.TripMerchandiseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown trip merchandise").
					WithDetails(map[string]any{"trip_merchandise_id": line.TripMerchandiseID.String()})
			}
			return nil, nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading trip merchandise")
		}
		if err := checkTripBookable(tm.Trip, event, now); err != nil {
			return nil, nil, 0, err
		}
		if line.Quantity > tm.EffectiveQuantityAvailable() {
			return nil, nil, 0, pkgerrors.New(pkgerrors.CodeConflict, "insufficient merchandise stock").
				WithDetails(map[string]any{
					"trip_merchandise_id": line.TripMerchandiseID.String(),
					"requested":           line.Quantity,
					"available":           tm.EffectiveQuantityAvailable(),
				})
		}
		if line.VariantID != nil {
			if err := checkVariant(tm, *line.VariantID, line.Quantity); err != nil {
				return nil, nil, 0, err
			}
		}
		price, err := pricing.MerchandisePriceCents(tm)
		if err != nil {
			return nil, nil, 0, err
		}
		if line.UnitPriceCents != price {
			return nil, nil, 0, pkgerrors.New(pkgerrors.CodeConflict, "price mismatch").
				WithDetails(map[string]any{
					"trip_merchandise_id": line.TripMerchandiseID.String(),
					"quoted":              line.UnitPriceCents,
					"current":             price,
				})
		}
		tmID := line.TripMerchandiseID
		items = append(items, models.BookingItem{
			Status:               enums.BookingItemStatusActive,
			TripMerchandiseID:    &tmID,
			MerchandiseVariantID: line.VariantID,
			Quantity:             line.Quantity,
			UnitPriceCents:       price,
		})
		total += line.Quantity * price
	}

	return items, seatRequests, total, nil
}

func checkTripBookable(trip *models.Trip, event *models.Event, now time.Time) error {
	if trip == nil || trip.EventID != event.ID {
		return pkgerrors.New(pkgerrors.CodeValidation, "line does not belong to the booked event")
	}
	if !trip.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "trip is not open for booking")
	}
	if trip.Departed(now) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "trip already departed").
			WithDetails(map[string]any{"trip_id": trip.ID.String()})
	}
	return nil
}

func checkVariant(tm *models.TripMerchandise, variantID uuid.UUID, quantity int) error {
	if tm.MerchandiseItem != nil {
		for _, v := range tm.MerchandiseItem.Variants {
			if v.ID != variantID {
				continue
			}
			if remaining := v.QuantityTotal - v.QuantitySold; quantity > remaining {
				return pkgerrors.New(pkgerrors.CodeConflict, "insufficient variant stock").
					WithDetails(map[string]any{
						"variant_id": variantID.String(),
						"requested":  quantity,
						"available":  remaining,
					})
			}
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to merchandise item").
		WithDetails(map[string]any{"variant_id": variantID.String()})
}

func validateInput(input AdmitInput) error {
	if input.EventID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if strings.TrimSpace(input.CustomerName) == "" || strings.TrimSpace(input.CustomerEmail) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name and email required")
	}
	if len(input.Tickets) == 0 && len(input.Merchandise) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking requires at least one line")
	}
	if input.DiscountCents < 0 || input.TaxCents < 0 || input.TipCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount, tax, and tip must not be negative")
	}
	for _, line := range input.Tickets {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "ticket quantity must be positive")
		}
	}
	for _, line := range input.Merchandise {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "merchandise quantity must be positive")
		}
	}
	return nil
}

func cloneItems(items []models.BookingItem) []models.BookingItem {
	out := make([]models.BookingItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].ID = uuid.Nil
	}
	return out
}
