// Package pricing resolves the effective price and seat capacity of a fare
// class on a trip-boat pairing. Boat-level ticket types are the defaults;
// trip-level overrides shadow them field by field. An override naming a fare
// class the boat does not carry introduces that class for the trip.
package pricing

import (
	"sort"

	"github.com/harborline/excursions-backend/pkg/db/models"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
)

// TicketTerms is the resolved price and capacity for one fare class.
type TicketTerms struct {
	TicketType string `json:"ticket_type"`
	PriceCents int    `json:"price_cents"`
	Capacity   int    `json:"capacity"`
}

// EffectiveTicketTypes resolves every fare class sellable on the pairing,
// sorted by ticket type. The boat and its overrides must be preloaded.
func EffectiveTicketTypes(tb *models.TripBoat) ([]TicketTerms, error) {
	if tb == nil || tb.Boat == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "trip boat missing preloaded boat")
	}

	overrides := make(map[string]models.TripTicketTypeOverride, len(tb.Overrides))
	for _, ov := range tb.Overrides {
		overrides[ov.TicketType] = ov
	}

	terms := make([]TicketTerms, 0, len(tb.Boat.TicketTypes)+len(tb.Overrides))
	seen := make(map[string]bool, len(tb.Boat.TicketTypes))
	for _, tt := range tb.Boat.TicketTypes {
		resolved := TicketTerms{
			TicketType: tt.TicketType,
			PriceCents: tt.PriceCents,
			Capacity:   tt.Capacity,
		}
		if ov, ok := overrides[tt.TicketType]; ok {
			if ov.PriceCents != nil {
				resolved.PriceCents = *ov.PriceCents
			}
			if ov.Capacity != nil {
				resolved.Capacity = *ov.Capacity
			}
		}
		seen[tt.TicketType] = true
		terms = append(terms, resolved)
	}

	// Override-only fare classes have no boat default to fall back on; an
	// unset field resolves to zero.
	for _, ov := range tb.Overrides {
		if seen[ov.TicketType] {
			continue
		}
		resolved := TicketTerms{TicketType: ov.TicketType}
		if ov.PriceCents != nil {
			resolved.PriceCents = *ov.PriceCents
		}
		if ov.Capacity != nil {
			resolved.Capacity = *ov.Capacity
		}
		terms = append(terms, resolved)
	}

	sort.Slice(terms, func(i, j int) bool { return terms[i].TicketType < terms[j].TicketType })
	return terms, nil
}

// TermsFor resolves a single fare class on the pairing.
func TermsFor(tb *models.TripBoat, ticketType string) (*TicketTerms, error) {
	terms, err := EffectiveTicketTypes(tb)
	if err != nil {
		return nil, err
	}
	for i := range terms {
		if terms[i].TicketType == ticketType {
			return &terms[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown ticket type for boat").
		WithDetails(map[string]any{"ticket_type": ticketType})
}

// MerchandisePriceCents resolves the per-unit price of a trip-merchandise
// link. The catalog item must be preloaded.
func MerchandisePriceCents(tm *models.TripMerchandise) (int, error) {
	if tm == nil || tm.MerchandiseItem == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "trip merchandise missing preloaded item")
	}
	return tm.EffectivePriceCents(), nil
}
