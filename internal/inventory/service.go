package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
)

// Service moves merchandise inventory for booking items. A link with a
// quantity override sells from its own pool; otherwise units come out of the
// catalog item's availability. Variant counters move alongside either pool
// when the item names a variant. Every movement appends a ledger event in
// the same transaction.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error
	Release(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error
	Fulfill(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error
}

type service struct {
	repo Repository
}

// NewService builds an inventory service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error {
	repo, tm, err := s.resolve(ctx, tx, item)
	if err != nil {
		return err
	}

	if tm.QuantityAvailableOverride != nil {
		ok, err := repo.IncrementLinkSold(ctx, tm.ID, item.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "selling from trip allocation")
		}
		if !ok {
			return soldOut(tm.ID, item.Quantity)
		}
	} else {
		ok, err := repo.DecrementCatalogStock(ctx, tm.MerchandiseItemID, item.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "selling from catalog stock")
		}
		if !ok {
			return soldOut(tm.ID, item.Quantity)
		}
	}

	if item.MerchandiseVariantID != nil {
		ok, err := repo.SellVariant(ctx, *item.MerchandiseVariantID, item.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "selling variant units")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "variant sold out").
				WithDetails(map[string]any{"variant_id": item.MerchandiseVariantID.String()})
		}
	}

	return s.appendLedger(ctx, repo, item, tm.ID, enums.InventoryEventReserve)
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error {
	repo, tm, err := s.resolve(ctx, tx, item)
	if err != nil {
		return err
	}

	if tm.QuantityAvailableOverride != nil {
		ok, err := repo.DecrementLinkSold(ctx, tm.ID, item.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "returning trip allocation")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "release exceeds units sold").
				WithDetails(map[string]any{"trip_merchandise_id": tm.ID.String()})
		}
	} else {
		if err := repo.IncrementCatalogStock(ctx, tm.MerchandiseItemID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "returning catalog stock")
		}
	}

	if item.MerchandiseVariantID != nil {
		ok, err := repo.ReleaseVariant(ctx, *item.MerchandiseVariantID, item.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "returning variant units")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot release fulfilled variant units").
				WithDetails(map[string]any{"variant_id": item.MerchandiseVariantID.String()})
		}
	}

	return s.appendLedger(ctx, repo, item, tm.ID, enums.InventoryEventRelease)
}

func (s *service) Fulfill(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error {
	if item == nil || !item.IsMerchandise() {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking item is not merchandise")
	}
	if item.MerchandiseVariantID == nil {
		// Only variant counters track fulfillment.
		return nil
	}
	repo := s.repo.WithTx(tx)
	ok, err := repo.FulfillVariant(ctx, *item.MerchandiseVariantID, item.Quantity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fulfilling variant units")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "fulfillment exceeds units sold").
			WithDetails(map[string]any{"variant_id": item.MerchandiseVariantID.String()})
	}
	return nil
}

func (s *service) resolve(ctx context.Context, tx *gorm.DB, item *models.BookingItem) (Repository, *models.TripMerchandise, error) {
	if item == nil || !item.IsMerchandise() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "booking item is not merchandise")
	}
	if item.Quantity <= 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "merchandise quantity must be positive")
	}
	repo := s.repo.WithTx(tx)
	tm, err := repo.FindTripMerchandise(ctx, *item.TripMerchandiseID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading trip merchandise")
	}
	return repo, tm, nil
}

func (s *service) appendLedger(ctx context.Context, repo Repository, item *models.BookingItem, tripMerchandiseID uuid.UUID, eventType enums.InventoryEventType) error {
	event := &models.InventoryLedgerEvent{
		BookingItemID:        item.ID,
		TripMerchandiseID:    tripMerchandiseID,
		MerchandiseVariantID: item.MerchandiseVariantID,
		Type:                 eventType,
		Quantity:             item.Quantity,
	}
	if err := repo.CreateLedgerEvent(ctx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording inventory ledger event")
	}
	return nil
}

func soldOut(tripMerchandiseID uuid.UUID, requested int) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "merchandise sold out").
		WithDetails(map[string]any{
			"trip_merchandise_id": tripMerchandiseID.String(),
			"requested":           requested,
		})
}
