package models

import (
	"time"

	"github.com/google/uuid"
)

// MerchandiseItem is a catalog product sellable alongside tickets.
type MerchandiseItem struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Name              string               `gorm:"column:name;not null"`
	PriceCents        int                  `gorm:"column:price_cents;not null"`
	QuantityAvailable int                  `gorm:"column:quantity_available;not null;default:0"`
	Variants          []MerchandiseVariant `gorm:"foreignKey:MerchandiseItemID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// MerchandiseVariant splits a catalog item into named variants (e.g. sizes)
// with monotonic sold/fulfilled counters: sold <= total, fulfilled <= sold.
type MerchandiseVariant struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	MerchandiseItemID uuid.UUID `gorm:"column:merchandise_item_id;type:uuid;not null;index"`
	Name              string    `gorm:"column:name;not null"`
	QuantityTotal     int       `gorm:"column:quantity_total;not null;default:0"`
	QuantitySold      int       `gorm:"column:quantity_sold;not null;default:0"`
	QuantityFulfilled int       `gorm:"column:quantity_fulfilled;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
