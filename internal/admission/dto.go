package admission

import "github.com/google/uuid"

// TicketLine requests seats of one fare class on one trip-boat pairing.
// UnitPriceCents is the price the customer saw; admission refuses the line
// when it no longer matches the current effective price.
type TicketLine struct {
	TripBoatID     uuid.UUID
	TicketType     string
	Quantity       int
	UnitPriceCents int
}

// MerchandiseLine requests units of one trip-merchandise link, optionally a
// specific variant. UnitPriceCents carries the quoted price like TicketLine.
type MerchandiseLine struct {
	TripMerchandiseID uuid.UUID
	VariantID         *uuid.UUID
	Quantity          int
	UnitPriceCents    int
}

// AdmitInput is one all-or-nothing booking request. Discount, tax, and tip
// arrive as already-resolved cent amounts; admission only folds them into the
// total.
type AdmitInput struct {
	EventID         uuid.UUID
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	AccessTokenCode string
	DiscountCents   int
	TaxCents        int
	TipCents        int
	Tickets         []TicketLine
	Merchandise     []MerchandiseLine
}
