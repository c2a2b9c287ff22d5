package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.MerchandiseItem{},
		&models.MerchandiseVariant{},
		&models.TripMerchandise{},
		&models.InventoryLedgerEvent{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn
}

func intPtr(v int) *int { return &v }

type fixture struct {
	item    *models.MerchandiseItem
	variant *models.MerchandiseVariant
	link    *models.TripMerchandise
}

func seed(t *testing.T, db *gorm.DB, override *int) fixture {
	t.Helper()
	item := &models.MerchandiseItem{
		ID:                uuid.New(),
		Name:              "Harbor Hoodie",
		PriceCents:        3900,
		QuantityAvailable: 10,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	variant := &models.MerchandiseVariant{
		ID:                uuid.New(),
		MerchandiseItemID: item.ID,
		Name:              "L",
		QuantityTotal:     5,
	}
	if err := db.Create(variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	link := &models.TripMerchandise{
		ID:                        uuid.New(),
		TripID:                    uuid.New(),
		MerchandiseItemID:         item.ID,
		QuantityAvailableOverride: override,
	}
	if err := db.Create(link).Error; err != nil {
		t.Fatalf("seed link: %v", err)
	}
	return fixture{item: item, variant: variant, link: link}
}

func merchItem(f fixture, variantID *uuid.UUID, qty int) *models.BookingItem {
	return &models.BookingItem{
		ID:                   uuid.New(),
		BookingID:            uuid.New(),
		Status:               enums.BookingItemStatusActive,
		TripMerchandiseID:    &f.link.ID,
		MerchandiseVariantID: variantID,
		Quantity:             qty,
		UnitPriceCents:       3900,
	}
}

func newService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestReserveFromCatalogStock(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db, nil)
	svc := newService(t, db)

	item := merchItem(f, nil, 3)
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, item)
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var reloaded models.MerchandiseItem
	if err := db.First(&reloaded, "id = ?", f.item.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if reloaded.QuantityAvailable != 7 {
		t.Fatalf("expected catalog stock 7, got %d", reloaded.QuantityAvailable)
	}

	events, err := NewRepository(db).ListLedgerEvents(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(events) != 1 || events[0].Type != enums.InventoryEventReserve || events[0].Quantity != 3 {
		t.Fatalf("unexpected ledger events %+v", events)
	}
}

func TestReserveFromLinkOverride(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db, intPtr(4))
	svc := newService(t, db)

	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, merchItem(f, nil, 4))
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var link models.TripMerchandise
	if err := db.First(&link, "id = ?", f.link.ID).Error; err != nil {
		t.Fatalf("reload link: %v", err)
	}
	if link.QuantitySold != 4 {
		t.Fatalf("expected link sold 4, got %d", link.QuantitySold)
	}

	// Catalog stock is untouched when the link carries its own pool.
	var item models.MerchandiseItem
	if err := db.First(&item, "id = ?", f.item.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if item.QuantityAvailable != 10 {
		t.Fatalf("catalog stock must not move, got %d", item.QuantityAvailable)
	}

	// Pool exhausted: next unit must be refused.
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, merchItem(f, nil, 1))
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict once pool is drained, got %v", err)
	}
}

func TestReserveVariantShortage(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db, nil)
	svc := newService(t, db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, merchItem(f, &f.variant.ID, 6))
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for variant shortage, got %v", err)
	}
}

func TestReleaseReturnsStockAndAppendsLedger(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db, nil)
	svc := newService(t, db)

	item := merchItem(f, &f.variant.ID, 2)
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, item)
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Release(context.Background(), tx, item)
	}); err != nil {
		t.Fatalf("release: %v", err)
	}

	var reloadedItem models.MerchandiseItem
	if err := db.First(&reloadedItem, "id = ?", f.item.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if reloadedItem.QuantityAvailable != 10 {
		t.Fatalf("expected stock restored to 10, got %d", reloadedItem.QuantityAvailable)
	}

	var variant models.MerchandiseVariant
	if err := db.First(&variant, "id = ?", f.variant.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if variant.QuantitySold != 0 {
		t.Fatalf("expected variant sold 0, got %d", variant.QuantitySold)
	}

	events, err := NewRepository(db).ListLedgerEvents(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(events) != 2 || events[1].Type != enums.InventoryEventRelease {
		t.Fatalf("expected reserve+release ledger trail, got %+v", events)
	}
}

func TestReleaseRefusesFulfilledVariantUnits(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db, nil)
	svc := newService(t, db)

	item := merchItem(f, &f.variant.ID, 2)
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, item)
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Fulfill(context.Background(), tx, item)
	}); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Release(context.Background(), tx, item)
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict releasing fulfilled units, got %v", err)
	}
}

func TestFulfillMonotonicBound(t *testing.T) {
	db := newTestDB(t)
	f := seed(t, db, nil)
	svc := newService(t, db)

	item := merchItem(f, &f.variant.ID, 2)
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, item)
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Fulfill(context.Background(), tx, item)
	}); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	// fulfilled == sold, a second fulfillment must be refused
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Fulfill(context.Background(), tx, item)
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict past sold count, got %v", err)
	}
}
