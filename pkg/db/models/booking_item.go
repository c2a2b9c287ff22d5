package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/enums"
)

// BookingItem is one line of a booking: either seats of one ticket type on
// one trip-boat pairing, or units of one trip-merchandise link (optionally a
// specific variant). Unit price is captured at admission time.
type BookingItem struct {
	ID                   uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	BookingID            uuid.UUID               `gorm:"column:booking_id;type:uuid;not null;index"`
	Status               enums.BookingItemStatus `gorm:"column:status;type:text;not null;default:'active'"`
	TripBoatID           *uuid.UUID              `gorm:"column:trip_boat_id;type:uuid;index"`
	TicketType           string                  `gorm:"column:ticket_type"`
	TripMerchandiseID    *uuid.UUID              `gorm:"column:trip_merchandise_id;type:uuid;index"`
	MerchandiseVariantID *uuid.UUID              `gorm:"column:merchandise_variant_id;type:uuid"`
	Quantity             int                     `gorm:"column:quantity;not null"`
	UnitPriceCents       int                     `gorm:"column:unit_price_cents;not null"`
	CreatedAt            time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (bi *BookingItem) BeforeCreate(tx *gorm.DB) error {
	if bi.ID == uuid.Nil {
		bi.ID = uuid.New()
	}
	return nil
}

func (bi *BookingItem) IsTicket() bool {
	return bi.TripBoatID != nil
}

func (bi *BookingItem) IsMerchandise() bool {
	return bi.TripMerchandiseID != nil
}

// SubtotalCents is quantity times the captured unit price.
func (bi *BookingItem) SubtotalCents() int {
	return bi.Quantity * bi.UnitPriceCents
}
