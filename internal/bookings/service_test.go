package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/logger"
	"github.com/harborline/excursions-backend/pkg/pagination"
)

type itemStatusMove struct {
	bookingID uuid.UUID
	from, to  enums.BookingItemStatus
}

type stubRepo struct {
	bookings  map[string]*models.Booking
	updates   map[uuid.UUID]map[string]any
	itemMoves []itemStatusMove
	drafts    []models.Booking
	deleted   []uuid.UUID
}

func newStubRepo(bookings ...*models.Booking) *stubRepo {
	repo := &stubRepo{
		bookings: make(map[string]*models.Booking),
		updates:  make(map[uuid.UUID]map[string]any),
	}
	for _, b := range bookings {
		repo.bookings[b.Code] = b
	}
	return repo
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, booking *models.Booking) error {
	s.bookings[booking.Code] = booking
	return nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	for _, b := range s.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindByCode(ctx context.Context, code string) (*models.Booking, error) {
	if b, ok := s.bookings[code]; ok {
		return b, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindByPaymentRef(ctx context.Context, ref string) (*models.Booking, error) {
	for _, b := range s.bookings {
		if b.PaymentRef == ref {
			return b, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) LockByID(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubRepo) List(ctx context.Context, params pagination.Params, filters ListFilters) (*BookingList, error) {
	out := &BookingList{}
	for _, b := range s.bookings {
		out.Bookings = append(out.Bookings, *b)
	}
	return out, nil
}

func (s *stubRepo) UpdateBooking(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	merged := s.updates[id]
	if merged == nil {
		merged = make(map[string]any)
	}
	for k, v := range updates {
		merged[k] = v
	}
	s.updates[id] = merged
	return nil
}

func (s *stubRepo) UpdateItemStatuses(ctx context.Context, bookingID uuid.UUID, from, to enums.BookingItemStatus) error {
	s.itemMoves = append(s.itemMoves, itemStatusMove{bookingID: bookingID, from: from, to: to})
	return nil
}

func (s *stubRepo) FindExpiredDrafts(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	return s.drafts, nil
}

func (s *stubRepo) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status enums.BookingItemStatus) error {
	return nil
}

func (s *stubRepo) FindStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	return nil, nil
}

func (s *stubRepo) ClaimConfirmationSend(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return true, nil
}

func (s *stubRepo) DeleteCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	for _, b := range s.bookings {
		if b.ID == id && b.Status == enums.BookingStatusCancelled {
			s.deleted = append(s.deleted, id)
			return true, nil
		}
	}
	return false, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubInventory struct {
	released  []uuid.UUID
	fulfilled []uuid.UUID
}

func (s *stubInventory) Release(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error {
	s.released = append(s.released, item.ID)
	return nil
}

func (s *stubInventory) Fulfill(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error {
	s.fulfilled = append(s.fulfilled, item.ID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "bookings-test"})
}

func newTestService(t *testing.T, repo Repository, inventory InventoryKeeper) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, inventory, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func booking(status enums.BookingStatus, payment enums.PaymentStatus) *models.Booking {
	return &models.Booking{
		ID:            uuid.New(),
		Code:          "HL-TEST01",
		EventID:       uuid.New(),
		Status:        status,
		PaymentStatus: payment,
		CustomerName:  "Jess",
		CustomerEmail: "jess@example.com",
	}
}

func TestCheckInPaidBooking(t *testing.T) {
	b := booking(enums.BookingStatusConfirmed, enums.PaymentStatusPaid)
	tmID := uuid.New()
	tbID := uuid.New()
	b.Items = []models.BookingItem{
		{ID: uuid.New(), BookingID: b.ID, Status: enums.BookingItemStatusActive, TripMerchandiseID: &tmID, Quantity: 1},
		{ID: uuid.New(), BookingID: b.ID, Status: enums.BookingItemStatusActive, TripBoatID: &tbID, TicketType: "adult", Quantity: 2},
	}
	repo := newStubRepo(b)
	inventory := &stubInventory{}
	svc := newTestService(t, repo, inventory)

	out, err := svc.CheckIn(context.Background(), b.Code)
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if out.Status != enums.BookingStatusCheckedIn || out.CheckedInAt == nil {
		t.Fatalf("expected checked_in with timestamp, got %+v", out)
	}
	if repo.updates[b.ID]["status"] != enums.BookingStatusCheckedIn {
		t.Fatalf("expected status persisted")
	}
	// merchandise is handed over at the gate; seats have nothing to fulfill
	if len(inventory.fulfilled) != 1 || inventory.fulfilled[0] != b.Items[0].ID {
		t.Fatalf("expected merchandise fulfillment only, got %v", inventory.fulfilled)
	}
	if len(repo.itemMoves) != 1 ||
		repo.itemMoves[0].from != enums.BookingItemStatusActive ||
		repo.itemMoves[0].to != enums.BookingItemStatusFulfilled {
		t.Fatalf("expected items flipped active->fulfilled, got %v", repo.itemMoves)
	}
	for i := range out.Items {
		if out.Items[i].Status != enums.BookingItemStatusFulfilled {
			t.Fatalf("item %d not fulfilled: %s", i, out.Items[i].Status)
		}
	}
}

func TestCheckInAgainIsHarmless(t *testing.T) {
	b := booking(enums.BookingStatusCheckedIn, enums.PaymentStatusPaid)
	tmID := uuid.New()
	b.Items = []models.BookingItem{
		{ID: uuid.New(), BookingID: b.ID, Status: enums.BookingItemStatusFulfilled, TripMerchandiseID: &tmID, Quantity: 1},
	}
	inventory := &stubInventory{}
	svc := newTestService(t, newStubRepo(b), inventory)

	out, err := svc.CheckIn(context.Background(), b.Code)
	if err != nil {
		t.Fatalf("re-check-in: %v", err)
	}
	if out.Status != enums.BookingStatusCheckedIn {
		t.Fatalf("expected checked_in, got %s", out.Status)
	}
	if len(inventory.fulfilled) != 0 {
		t.Fatalf("fulfilled items must not be handed over twice, got %v", inventory.fulfilled)
	}
}

func TestConfirmDraftBooking(t *testing.T) {
	b := booking(enums.BookingStatusDraft, enums.PaymentStatusNone)
	repo := newStubRepo(b)
	svc := newTestService(t, repo, &stubInventory{})

	out, err := svc.Confirm(context.Background(), b.Code)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if out.Status != enums.BookingStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", out.Status)
	}
	if repo.updates[b.ID]["status"] != enums.BookingStatusConfirmed {
		t.Fatalf("expected status persisted")
	}
}

func TestConfirmCompletedBookingRefused(t *testing.T) {
	b := booking(enums.BookingStatusCompleted, enums.PaymentStatusPaid)
	svc := newTestService(t, newStubRepo(b), &stubInventory{})

	_, err := svc.Confirm(context.Background(), b.Code)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCheckInUnpaidBookingRefused(t *testing.T) {
	b := booking(enums.BookingStatusConfirmed, enums.PaymentStatusPending)
	svc := newTestService(t, newStubRepo(b), &stubInventory{})

	_, err := svc.CheckIn(context.Background(), b.Code)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCheckInWrongStatusRefused(t *testing.T) {
	b := booking(enums.BookingStatusDraft, enums.PaymentStatusPaid)
	svc := newTestService(t, newStubRepo(b), &stubInventory{})

	_, err := svc.CheckIn(context.Background(), b.Code)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelReleasesMerchandise(t *testing.T) {
	b := booking(enums.BookingStatusPendingPayment, enums.PaymentStatusPending)
	tmID := uuid.New()
	tbID := uuid.New()
	b.Items = []models.BookingItem{
		{ID: uuid.New(), BookingID: b.ID, Status: enums.BookingItemStatusActive, TripMerchandiseID: &tmID, Quantity: 2},
		{ID: uuid.New(), BookingID: b.ID, Status: enums.BookingItemStatusActive, TripBoatID: &tbID, TicketType: "adult", Quantity: 1},
	}
	repo := newStubRepo(b)
	releaser := &stubInventory{}
	svc := newTestService(t, repo, releaser)

	out, err := svc.Cancel(context.Background(), b.Code)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.Status != enums.BookingStatusCancelled {
		t.Fatalf("expected cancelled, got %s", out.Status)
	}
	// only the merchandise item goes through the releaser; seats free up
	// by virtue of the cancelled status
	if len(releaser.released) != 1 || releaser.released[0] != b.Items[0].ID {
		t.Fatalf("expected merchandise release only, got %v", releaser.released)
	}
}

func TestCancelPaidBookingRefused(t *testing.T) {
	b := booking(enums.BookingStatusConfirmed, enums.PaymentStatusPaid)
	svc := newTestService(t, newStubRepo(b), &stubInventory{})

	_, err := svc.Cancel(context.Background(), b.Code)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected refund path required, got %v", err)
	}
}

func TestCancelFullyRefundedBooking(t *testing.T) {
	b := booking(enums.BookingStatusConfirmed, enums.PaymentStatusRefunded)
	repo := newStubRepo(b)
	svc := newTestService(t, repo, &stubInventory{})

	out, err := svc.Cancel(context.Background(), b.Code)
	if err != nil {
		t.Fatalf("cancel after refund: %v", err)
	}
	if out.Status != enums.BookingStatusCancelled {
		t.Fatalf("expected cancelled, got %s", out.Status)
	}
}

func TestExpireDrafts(t *testing.T) {
	repo := newStubRepo()
	draft := booking(enums.BookingStatusDraft, enums.PaymentStatusNone)
	repo.drafts = []models.Booking{*draft}
	releaser := &stubInventory{}
	svc := newTestService(t, repo, releaser)

	expired, err := svc.ExpireDrafts(context.Background(), 50)
	if err != nil {
		t.Fatalf("expire drafts: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired draft, got %d", expired)
	}
	if repo.updates[draft.ID]["status"] != enums.BookingStatusCancelled {
		t.Fatalf("expected draft cancelled")
	}
}

func TestDeleteCancelledOnly(t *testing.T) {
	b := booking(enums.BookingStatusConfirmed, enums.PaymentStatusPaid)
	repo := newStubRepo(b)
	svc := newTestService(t, repo, &stubInventory{})

	err := svc.DeleteCancelled(context.Background(), b.Code)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	b.Status = enums.BookingStatusCancelled
	if err := svc.DeleteCancelled(context.Background(), b.Code); err != nil {
		t.Fatalf("delete cancelled: %v", err)
	}
	if len(repo.deleted) != 1 {
		t.Fatalf("expected hard delete")
	}
}
