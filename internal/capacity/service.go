package capacity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/internal/pricing"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
)

// SeatRequest asks for seats of one fare class on one trip-boat pairing.
type SeatRequest struct {
	TripBoatID uuid.UUID
	TicketType string
	Quantity   int
}

// TicketAvailability reports remaining seats and pricing for one fare class.
type TicketAvailability struct {
	TicketType string `json:"ticket_type"`
	PriceCents int    `json:"price_cents"`
	Capacity   int    `json:"capacity"`
	Committed  int    `json:"committed"`
	Remaining  int    `json:"remaining"`
}

// Service answers seat availability questions. CheckBatch runs inside the
// admission transaction and acquires row locks; Snapshot is a dirty read for
// the public availability endpoint.
type Service interface {
	CheckBatch(ctx context.Context, tx *gorm.DB, requests []SeatRequest) error
	Snapshot(ctx context.Context, tripBoatID uuid.UUID) ([]TicketAvailability, error)
}

type service struct {
	repo Repository
}

// NewService builds a capacity service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("capacity repository required")
	}
	return &service{repo: repo}, nil
}

// CheckBatch verifies every requested fare class has room, with all affected
// pairings locked for the remainder of the transaction. Pairings are locked
// in ID order so concurrent admissions cannot deadlock.
func (s *service) CheckBatch(ctx context.Context, tx *gorm.DB, requests []SeatRequest) error {
	if len(requests) == 0 {
		return nil
	}

	repo := s.repo.WithTx(tx)

	// Merge duplicate (pairing, fare class) requests before checking.
	merged := make(map[uuid.UUID]map[string]int)
	for _, req := range requests {
		if req.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "seat quantity must be positive")
		}
		if merged[req.TripBoatID] == nil {
			merged[req.TripBoatID] = make(map[string]int)
		}
		merged[req.TripBoatID][req.TicketType] += req.Quantity
	}

	ids := make([]uuid.UUID, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		if err := repo.LockTripBoat(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "trip boat not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking trip boat")
		}

		tb, err := repo.FindTripBoat(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading trip boat")
		}
		committed, err := repo.CommittedCounts(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting committed seats")
		}

		for ticketType, wanted := range merged[id] {
			terms, err := pricing.TermsFor(tb, ticketType)
			if err != nil {
				return err
			}
			remaining := terms.Capacity - committed[ticketType]
			if wanted > remaining {
				return pkgerrors.New(pkgerrors.CodeConflict, "not enough seats remaining").
					WithDetails(map[string]any{
						"trip_boat_id": id.String(),
						"ticket_type":  ticketType,
						"requested":    wanted,
						"remaining":    max(remaining, 0),
					})
			}
		}
	}
	return nil
}

func (s *service) Snapshot(ctx context.Context, tripBoatID uuid.UUID) ([]TicketAvailability, error) {
	tb, err := s.repo.FindTripBoat(ctx, tripBoatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "trip boat not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading trip boat")
	}
	committed, err := s.repo.CommittedCounts(ctx, tripBoatID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting committed seats")
	}

	terms, err := pricing.EffectiveTicketTypes(tb)
	if err != nil {
		return nil, err
	}

	out := make([]TicketAvailability, 0, len(terms))
	for _, t := range terms {
		used := committed[t.TicketType]
		out = append(out, TicketAvailability{
			TicketType: t.TicketType,
			PriceCents: t.PriceCents,
			Capacity:   t.Capacity,
			Committed:  used,
			Remaining:  max(t.Capacity-used, 0),
		})
	}
	return out, nil
}
