package models

import (
	"time"

	"github.com/google/uuid"
)

// Boat is a vessel that can serve trips. Its ticket-type rows are the
// defaults a trip-boat pairing inherits unless overridden.
type Boat struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name        string           `gorm:"column:name;not null"`
	TicketTypes []BoatTicketType `gorm:"foreignKey:BoatID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// BoatTicketType is a boat-level default price and seat capacity for one
// fare class.
type BoatTicketType struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BoatID     uuid.UUID `gorm:"column:boat_id;type:uuid;not null;uniqueIndex:uq_boat_ticket_type"`
	TicketType string    `gorm:"column:ticket_type;not null;uniqueIndex:uq_boat_ticket_type"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	Capacity   int       `gorm:"column:capacity;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
