package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/db/models"
)

// Repository defines the counter movements behind merchandise inventory.
// Every mutation is a conditional UPDATE so a concurrent writer can never
// drive a counter past its bound; the bool result reports whether the
// guard held.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindTripMerchandise(ctx context.Context, id uuid.UUID) (*models.TripMerchandise, error)
	DecrementCatalogStock(ctx context.Context, itemID uuid.UUID, qty int) (bool, error)
	IncrementCatalogStock(ctx context.Context, itemID uuid.UUID, qty int) error
	IncrementLinkSold(ctx context.Context, tripMerchandiseID uuid.UUID, qty int) (bool, error)
	DecrementLinkSold(ctx context.Context, tripMerchandiseID uuid.UUID, qty int) (bool, error)
	SellVariant(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	ReleaseVariant(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	FulfillVariant(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	CreateLedgerEvent(ctx context.Context, event *models.InventoryLedgerEvent) error
	ListLedgerEvents(ctx context.Context, bookingItemID uuid.UUID) ([]models.InventoryLedgerEvent, error)
}
