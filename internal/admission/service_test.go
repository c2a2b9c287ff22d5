package admission

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/harborline/excursions-backend/internal/accesstokens"
	"github.com/harborline/excursions-backend/internal/bookings"
	"github.com/harborline/excursions-backend/internal/capacity"
	"github.com/harborline/excursions-backend/internal/inventory"
	"github.com/harborline/excursions-backend/internal/trips"
	"github.com/harborline/excursions-backend/pkg/config"
	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Event{},
		&models.Trip{},
		&models.Boat{},
		&models.BoatTicketType{},
		&models.TripBoat{},
		&models.TripTicketTypeOverride{},
		&models.MerchandiseItem{},
		&models.MerchandiseVariant{},
		&models.TripMerchandise{},
		&models.AccessToken{},
		&models.Booking{},
		&models.BookingItem{},
		&models.InventoryLedgerEvent{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	tokens, err := accesstokens.NewService(accesstokens.NewRepository(db))
	if err != nil {
		t.Fatalf("accesstokens.NewService: %v", err)
	}
	seats, err := capacity.NewService(capacity.NewRepository(db))
	if err != nil {
		t.Fatalf("capacity.NewService: %v", err)
	}
	inv, err := inventory.NewService(inventory.NewRepository(db))
	if err != nil {
		t.Fatalf("inventory.NewService: %v", err)
	}
	svc, err := NewService(
		trips.NewRepository(db),
		tokens,
		seats,
		inv,
		bookings.NewRepository(db),
		gormTxRunner{db: db},
		nil,
		config.BookingsConfig{DraftTTL: 30 * time.Minute, CodePrefix: "HL"},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

type fixture struct {
	event   *models.Event
	trip    *models.Trip
	tb      *models.TripBoat
	tm      *models.TripMerchandise
	variant *models.MerchandiseVariant
}

func seedFixture(t *testing.T, db *gorm.DB, visibility enums.VisibilityMode) *fixture {
	t.Helper()
	event := &models.Event{ID: uuid.New(), Name: "Harbor Fireworks", Active: true, VisibilityMode: visibility}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	trip := &models.Trip{
		ID:        uuid.New(),
		EventID:   event.ID,
		Name:      "Evening Departure",
		Active:    true,
		DepartsAt: time.Now().Add(48 * time.Hour),
	}
	if err := db.Create(trip).Error; err != nil {
		t.Fatalf("seed trip: %v", err)
	}
	boat := &models.Boat{ID: uuid.New(), Name: "Sea Sprite"}
	if err := db.Create(boat).Error; err != nil {
		t.Fatalf("seed boat: %v", err)
	}
	types := []models.BoatTicketType{
		{ID: uuid.New(), BoatID: boat.ID, TicketType: "adult", PriceCents: 4500, Capacity: 4},
		{ID: uuid.New(), BoatID: boat.ID, TicketType: "child", PriceCents: 2500, Capacity: 2},
	}
	if err := db.Create(&types).Error; err != nil {
		t.Fatalf("seed ticket types: %v", err)
	}
	tb := &models.TripBoat{ID: uuid.New(), TripID: trip.ID, BoatID: boat.ID}
	if err := db.Create(tb).Error; err != nil {
		t.Fatalf("seed trip boat: %v", err)
	}

	item := &models.MerchandiseItem{ID: uuid.New(), Name: "Harbor Tee", PriceCents: 2000, QuantityAvailable: 10}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed merchandise item: %v", err)
	}
	variant := &models.MerchandiseVariant{ID: uuid.New(), MerchandiseItemID: item.ID, Name: "M", QuantityTotal: 5}
	if err := db.Create(variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	tm := &models.TripMerchandise{ID: uuid.New(), TripID: trip.ID, MerchandiseItemID: item.ID}
	if err := db.Create(tm).Error; err != nil {
		t.Fatalf("seed trip merchandise: %v", err)
	}

	return &fixture{event: event, trip: trip, tb: tb, tm: tm, variant: variant}
}

func baseInput(fix *fixture) AdmitInput {
	return AdmitInput{
		EventID:       fix.event.ID,
		CustomerName:  "Ada Mercer",
		CustomerEmail: "ada@example.com",
	}
}

func TestAdmitCreatesDraftBooking(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)
	svc := newTestService(t, db)

	input := baseInput(fix)
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "adult", Quantity: 2, UnitPriceCents: 4500}}
	input.Merchandise = []MerchandiseLine{{TripMerchandiseID: fix.tm.ID, VariantID: &fix.variant.ID, Quantity: 2, UnitPriceCents: 2000}}

	booking, err := svc.Admit(context.Background(), input)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if booking.Status != enums.BookingStatusDraft || booking.PaymentStatus != enums.PaymentStatusNone {
		t.Fatalf("expected draft/none, got %s/%s", booking.Status, booking.PaymentStatus)
	}
	if !strings.HasPrefix(booking.Code, "HL-") || len(booking.Code) != len("HL-")+codeLength {
		t.Fatalf("unexpected confirmation code %q", booking.Code)
	}
	if booking.TotalCents != 2*4500+2*2000 {
		t.Fatalf("unexpected total %d", booking.TotalCents)
	}
	if booking.ExpiresAt == nil || !booking.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected a future expiry, got %v", booking.ExpiresAt)
	}

	var itemCount int64
	if err := db.Model(&models.BookingItem{}).Where("booking_id = ?", booking.ID).Count(&itemCount).Error; err != nil {
		t.Fatalf("counting items: %v", err)
	}
	if itemCount != 2 {
		t.Fatalf("expected 2 persisted items, got %d", itemCount)
	}

	var variant models.MerchandiseVariant
	if err := db.First(&variant, "id = ?", fix.variant.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if variant.QuantitySold != 2 {
		t.Fatalf("expected variant sold=2, got %d", variant.QuantitySold)
	}

	var ledgerCount int64
	if err := db.Model(&models.InventoryLedgerEvent{}).
		Where("trip_merchandise_id = ? AND type = ?", fix.tm.ID, enums.InventoryEventReserve).
		Count(&ledgerCount).Error; err != nil {
		t.Fatalf("counting ledger events: %v", err)
	}
	if ledgerCount != 1 {
		t.Fatalf("expected 1 reserve ledger event, got %d", ledgerCount)
	}
}

func TestAdmitFoldsAdjustmentsIntoTotal(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)
	svc := newTestService(t, db)

	input := baseInput(fix)
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "adult", Quantity: 2, UnitPriceCents: 4500}}
	input.DiscountCents = 1000
	input.TaxCents = 720
	input.TipCents = 500

	booking, err := svc.Admit(context.Background(), input)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if booking.SubtotalCents != 2*4500 {
		t.Fatalf("unexpected subtotal %d", booking.SubtotalCents)
	}
	if booking.TotalCents != 2*4500-1000+720+500 {
		t.Fatalf("unexpected total %d", booking.TotalCents)
	}
	if booking.DiscountCents != 1000 || booking.TaxCents != 720 || booking.TipCents != 500 {
		t.Fatalf("adjustments not recorded: %+v", booking)
	}
}

func TestAdmitRejectsDiscountAboveSubtotal(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)
	svc := newTestService(t, db)

	input := baseInput(fix)
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "child", Quantity: 1, UnitPriceCents: 2500}}
	input.DiscountCents = 9999

	_, err := svc.Admit(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdmitRejectsOverCapacityAndHoldsNothing(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)
	svc := newTestService(t, db)

	input := baseInput(fix)
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "child", Quantity: 3, UnitPriceCents: 2500}}
	input.Merchandise = []MerchandiseLine{{TripMerchandiseID: fix.tm.ID, VariantID: &fix.variant.ID, Quantity: 1, UnitPriceCents: 2000}}

	_, err := svc.Admit(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	var bookingCount int64
	if err := db.Model(&models.Booking{}).Count(&bookingCount).Error; err != nil {
		t.Fatalf("counting bookings: %v", err)
	}
	if bookingCount != 0 {
		t.Fatalf("rejected admission must hold nothing, found %d bookings", bookingCount)
	}
	var variant models.MerchandiseVariant
	if err := db.First(&variant, "id = ?", fix.variant.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if variant.QuantitySold != 0 {
		t.Fatalf("rejected admission must not sell units, sold=%d", variant.QuantitySold)
	}
}

func TestAdmitRefusesSoldOutMerchandise(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)
	svc := newTestService(t, db)

	input := baseInput(fix)
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "adult", Quantity: 1, UnitPriceCents: 4500}}
	input.Merchandise = []MerchandiseLine{{TripMerchandiseID: fix.tm.ID, VariantID: &fix.variant.ID, Quantity: 6, UnitPriceCents: 2000}}

	_, err := svc.Admit(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	var bookingCount int64
	if err := db.Model(&models.Booking{}).Count(&bookingCount).Error; err != nil {
		t.Fatalf("counting bookings: %v", err)
	}
	if bookingCount != 0 {
		t.Fatalf("sold-out merchandise must refuse the booking, found %d", bookingCount)
	}
}

func TestAdmitRejectsStaleQuotedPrice(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)
	svc := newTestService(t, db)

	input := baseInput(fix)
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "adult", Quantity: 1, UnitPriceCents: 3999}}

	_, err := svc.Admit(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for stale price, got %v", err)
	}

	var bookingCount int64
	if err := db.Model(&models.Booking{}).Count(&bookingCount).Error; err != nil {
		t.Fatalf("counting bookings: %v", err)
	}
	if bookingCount != 0 {
		t.Fatalf("stale price must hold nothing, found %d bookings", bookingCount)
	}
}

type failingReserver struct{}

func (failingReserver) Reserve(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "merchandise sold out")
}

func TestAdmitKeepsBookingWhenMerchandiseStepFails(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)

	tokens, err := accesstokens.NewService(accesstokens.NewRepository(db))
	if err != nil {
		t.Fatalf("accesstokens.NewService: %v", err)
	}
	seats, err := capacity.NewService(capacity.NewRepository(db))
	if err != nil {
		t.Fatalf("capacity.NewService: %v", err)
	}
	svc, err := NewService(
		trips.NewRepository(db),
		tokens,
		seats,
		failingReserver{},
		bookings.NewRepository(db),
		gormTxRunner{db: db},
		nil,
		config.BookingsConfig{DraftTTL: 30 * time.Minute, CodePrefix: "HL"},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	input := baseInput(fix)
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "adult", Quantity: 1, UnitPriceCents: 4500}}
	input.Merchandise = []MerchandiseLine{{TripMerchandiseID: fix.tm.ID, Quantity: 1, UnitPriceCents: 2000}}

	_, err = svc.Admit(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error from the merchandise step, got %v", err)
	}

	// the admission transaction already committed, so the booking stands
	var bookingCount int64
	if err := db.Model(&models.Booking{}).Where("status = ?", enums.BookingStatusDraft).Count(&bookingCount).Error; err != nil {
		t.Fatalf("counting bookings: %v", err)
	}
	if bookingCount != 1 {
		t.Fatalf("booking must survive a failed merchandise step, found %d", bookingCount)
	}
}

func TestAdmitSeatsAreExclusiveUnderContention(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)
	if err := db.Model(&models.BoatTicketType{}).
		Where("ticket_type = ?", "adult").
		Update("capacity", 10).Error; err != nil {
		t.Fatalf("raise capacity: %v", err)
	}
	svc := newTestService(t, db)

	// two back-to-back six-seat requests against ten seats: the row lock
	// serializes them, so the second sees the first's committed items
	input := baseInput(fix)
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "adult", Quantity: 6, UnitPriceCents: 4500}}

	if _, err := svc.Admit(context.Background(), input); err != nil {
		t.Fatalf("first admission: %v", err)
	}

	second := baseInput(fix)
	second.CustomerEmail = "rival@example.com"
	second.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "adult", Quantity: 6, UnitPriceCents: 4500}}

	_, err := svc.Admit(context.Background(), second)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected the second admission refused, got %v", err)
	}

	var committed int64
	err = db.Model(&models.BookingItem{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("trip_boat_id = ? AND ticket_type = ?", fix.tb.ID, "adult").
		Scan(&committed).Error
	if err != nil {
		t.Fatalf("summing committed seats: %v", err)
	}
	if committed != 6 {
		t.Fatalf("exactly one admission may hold seats, committed=%d", committed)
	}
}

func TestAdmitGatedEventRequiresToken(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModeEarlyAccess)
	svc := newTestService(t, db)

	input := baseInput(fix)
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "adult", Quantity: 1, UnitPriceCents: 4500}}

	_, err := svc.Admit(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden without token, got %v", err)
	}
}

func TestAdmitConsumesAccessToken(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModeEarlyAccess)
	svc := newTestService(t, db)

	maxUses := 3
	token := &models.AccessToken{
		ID:      uuid.New(),
		Code:    "EARLYBIRD",
		Active:  true,
		EventID: &fix.event.ID,
		MaxUses: &maxUses,
	}
	if err := db.Create(token).Error; err != nil {
		t.Fatalf("seed token: %v", err)
	}

	input := baseInput(fix)
	input.AccessTokenCode = "EARLYBIRD"
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "adult", Quantity: 1, UnitPriceCents: 4500}}

	booking, err := svc.Admit(context.Background(), input)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if booking.AccessTokenID == nil || *booking.AccessTokenID != token.ID {
		t.Fatalf("expected booking to reference the token, got %v", booking.AccessTokenID)
	}

	var reloaded models.AccessToken
	if err := db.First(&reloaded, "id = ?", token.ID).Error; err != nil {
		t.Fatalf("reload token: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("expected token used_count=1, got %d", reloaded.UsedCount)
	}
}

func TestAdmitRejectsDepartedTrip(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)
	if err := db.Model(&models.Trip{}).
		Where("id = ?", fix.trip.ID).
		Update("departs_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("backdate trip: %v", err)
	}
	svc := newTestService(t, db)

	input := baseInput(fix)
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "adult", Quantity: 1, UnitPriceCents: 4500}}

	_, err := svc.Admit(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for departed trip, got %v", err)
	}
}

func TestAdmitRejectsForeignEventLines(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)
	other := seedFixture(t, db, enums.VisibilityModePublic)
	svc := newTestService(t, db)

	input := baseInput(fix)
	input.Tickets = []TicketLine{{TripBoatID: other.tb.ID, TicketType: "adult", Quantity: 1, UnitPriceCents: 4500}}

	_, err := svc.Admit(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for cross-event line, got %v", err)
	}
}

func TestAdmitRequiresAtLeastOneLine(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)
	svc := newTestService(t, db)

	_, err := svc.Admit(context.Background(), baseInput(fix))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdmitUnknownEvent(t *testing.T) {
	db := newTestDB(t)
	fix := seedFixture(t, db, enums.VisibilityModePublic)
	svc := newTestService(t, db)

	input := baseInput(fix)
	input.EventID = uuid.New()
	input.Tickets = []TicketLine{{TripBoatID: fix.tb.ID, TicketType: "adult", Quantity: 1, UnitPriceCents: 4500}}

	_, err := svc.Admit(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
