package models

import (
	"time"

	"github.com/google/uuid"
)

// TripMerchandise links a catalog item to a trip, optionally overriding
// price and available quantity for that trip. A link with a quantity
// override keeps its own sold counter; without one the catalog item's
// availability is the single ledger.
type TripMerchandise struct {
	ID                        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	TripID                    uuid.UUID        `gorm:"column:trip_id;type:uuid;not null;index"`
	MerchandiseItemID         uuid.UUID        `gorm:"column:merchandise_item_id;type:uuid;not null"`
	PriceOverrideCents        *int             `gorm:"column:price_override_cents"`
	QuantityAvailableOverride *int             `gorm:"column:quantity_available_override"`
	QuantitySold              int              `gorm:"column:quantity_sold;not null;default:0"`
	Trip                      *Trip            `gorm:"foreignKey:TripID"`
	MerchandiseItem           *MerchandiseItem `gorm:"foreignKey:MerchandiseItemID"`
	CreatedAt                 time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (TripMerchandise) TableName() string { return "trip_merchandise" }

// EffectivePriceCents resolves override-over-catalog pricing. The catalog
// item must be preloaded.
func (tm *TripMerchandise) EffectivePriceCents() int {
	if tm.PriceOverrideCents != nil {
		return *tm.PriceOverrideCents
	}
	if tm.MerchandiseItem != nil {
		return tm.MerchandiseItem.PriceCents
	}
	return 0
}

// EffectiveQuantityAvailable resolves the remaining sellable quantity for
// this link: override minus link-level sold when an override is set, else
// the catalog item's availability.
func (tm *TripMerchandise) EffectiveQuantityAvailable() int {
	if tm.QuantityAvailableOverride != nil {
		remaining := *tm.QuantityAvailableOverride - tm.QuantitySold
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	if tm.MerchandiseItem != nil {
		return tm.MerchandiseItem.QuantityAvailable
	}
	return 0
}
