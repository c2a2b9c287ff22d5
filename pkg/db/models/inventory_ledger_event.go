package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/enums"
)

// InventoryLedgerEvent is an append-only record of every merchandise counter
// movement, written in the same transaction as the counter change.
type InventoryLedgerEvent struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	BookingItemID        uuid.UUID                `gorm:"column:booking_item_id;type:uuid;not null;index"`
	TripMerchandiseID    uuid.UUID                `gorm:"column:trip_merchandise_id;type:uuid;not null;index"`
	MerchandiseVariantID *uuid.UUID               `gorm:"column:merchandise_variant_id;type:uuid"`
	Type                 enums.InventoryEventType `gorm:"column:type;type:text;not null"`
	Quantity             int                      `gorm:"column:quantity;not null"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (e *InventoryLedgerEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
