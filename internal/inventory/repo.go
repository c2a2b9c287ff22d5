package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/internal/repo"
	"github.com/harborline/excursions-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: repo.Session(r.db, tx)}
}

func (r *repository) FindTripMerchandise(ctx context.Context, id uuid.UUID) (*models.TripMerchandise, error) {
	var tm models.TripMerchandise
	err := r.db.WithContext(ctx).
		Preload("MerchandiseItem.Variants").
		Where("id = ?", id).
		First(&tm).Error
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func (r *repository) DecrementCatalogStock(ctx context.Context, itemID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MerchandiseItem{}).
		Where("id = ? AND quantity_available >= ?", itemID, qty).
		Update("quantity_available", gorm.Expr("quantity_available - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) IncrementCatalogStock(ctx context.Context, itemID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.MerchandiseItem{}).
		Where("id = ?", itemID).
		Update("quantity_available", gorm.Expr("quantity_available + ?", qty)).Error
}

func (r *repository) IncrementLinkSold(ctx context.Context, tripMerchandiseID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.TripMerchandise{}).
		Where("id = ?", tripMerchandiseID).
		Where("quantity_available_override IS NOT NULL").
		Where("quantity_available_override - quantity_sold >= ?", qty).
		Update("quantity_sold", gorm.Expr("quantity_sold + ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) DecrementLinkSold(ctx context.Context, tripMerchandiseID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.TripMerchandise{}).
		Where("id = ? AND quantity_sold >= ?", tripMerchandiseID, qty).
		Update("quantity_sold", gorm.Expr("quantity_sold - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SellVariant(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MerchandiseVariant{}).
		Where("id = ? AND quantity_total - quantity_sold >= ?", variantID, qty).
		Update("quantity_sold", gorm.Expr("quantity_sold + ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ReleaseVariant(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	// Fulfilled units can never be released back to stock.
	result := r.db.WithContext(ctx).
		Model(&models.MerchandiseVariant{}).
		Where("id = ? AND quantity_sold - quantity_fulfilled >= ?", variantID, qty).
		Update("quantity_sold", gorm.Expr("quantity_sold - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FulfillVariant(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MerchandiseVariant{}).
		Where("id = ? AND quantity_sold - quantity_fulfilled >= ?", variantID, qty).
		Update("quantity_fulfilled", gorm.Expr("quantity_fulfilled + ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreateLedgerEvent(ctx context.Context, event *models.InventoryLedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListLedgerEvents(ctx context.Context, bookingItemID uuid.UUID) ([]models.InventoryLedgerEvent, error) {
	var events []models.InventoryLedgerEvent
	err := r.db.WithContext(ctx).
		Where("booking_item_id = ?", bookingItemID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
