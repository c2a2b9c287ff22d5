package models

import (
	"time"

	"github.com/google/uuid"
)

// TripBoat pairs a trip with a boat serving it. Its override rows shadow the
// boat's ticket-type defaults for this trip only.
type TripBoat struct {
	ID        uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	TripID    uuid.UUID                `gorm:"column:trip_id;type:uuid;not null;uniqueIndex:uq_trip_boat"`
	BoatID    uuid.UUID                `gorm:"column:boat_id;type:uuid;not null;uniqueIndex:uq_trip_boat"`
	Trip      *Trip                    `gorm:"foreignKey:TripID"`
	Boat      *Boat                    `gorm:"foreignKey:BoatID"`
	Overrides []TripTicketTypeOverride `gorm:"foreignKey:TripBoatID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// TripTicketTypeOverride replaces the boat default price and/or capacity for
// one fare class on one trip-boat pairing. Nil fields fall through to the
// boat default.
type TripTicketTypeOverride struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TripBoatID uuid.UUID `gorm:"column:trip_boat_id;type:uuid;not null;uniqueIndex:uq_trip_boat_ticket_type"`
	TicketType string    `gorm:"column:ticket_type;not null;uniqueIndex:uq_trip_boat_ticket_type"`
	PriceCents *int      `gorm:"column:price_cents"`
	Capacity   *int      `gorm:"column:capacity"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (TripTicketTypeOverride) TableName() string { return "trip_ticket_type_overrides" }
