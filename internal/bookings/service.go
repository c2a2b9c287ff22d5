package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/logger"
	"github.com/harborline/excursions-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryKeeper moves merchandise stock as booking items change state:
// released back to the pool on cancellation, marked handed over on check-in.
type InventoryKeeper interface {
	Release(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error
	Fulfill(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error
}

// Service manages the booking lifecycle after admission.
type Service interface {
	GetByCode(ctx context.Context, code string) (*models.Booking, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*BookingList, error)
	Confirm(ctx context.Context, code string) (*models.Booking, error)
	CheckIn(ctx context.Context, code string) (*models.Booking, error)
	Complete(ctx context.Context, code string) (*models.Booking, error)
	Cancel(ctx context.Context, code string) (*models.Booking, error)
	ExpireDrafts(ctx context.Context, limit int) (int, error)
	DeleteCancelled(ctx context.Context, code string) error
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory InventoryKeeper
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a bookings service with the required dependencies.
func NewService(repo Repository, tx txRunner, inventory InventoryKeeper, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory keeper required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		inventory: inventory,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.Booking, error) {
	booking, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading booking")
	}
	return booking, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*BookingList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing bookings")
	}
	return list, nil
}

// Confirm moves a booking to confirmed without a payment, for bookings
// settled outside the gateway (cash, comp). Fully paid bookings arrive at
// confirmed through payment reconciliation instead.
func (s *service) Confirm(ctx context.Context, code string) (*models.Booking, error) {
	booking, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := EnsureTransition(booking.Status, enums.BookingStatusConfirmed); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBooking(ctx, booking.ID, map[string]any{
		"status": enums.BookingStatusConfirmed,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirming booking")
	}
	booking.Status = enums.BookingStatusConfirmed
	return booking, nil
}

// CheckIn moves a confirmed, fully paid booking to checked_in, hands over its
// merchandise, and marks every active item fulfilled. Calling it again on a
// checked-in booking is a no-op apart from refreshing the timestamp.
func (s *service) CheckIn(ctx context.Context, code string) (*models.Booking, error) {
	booking, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := EnsureTransition(booking.Status, enums.BookingStatusCheckedIn); err != nil {
		return nil, err
	}
	if booking.PaymentStatus != enums.PaymentStatusPaid &&
		booking.PaymentStatus != enums.PaymentStatusPartiallyRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking is not paid").
			WithDetails(map[string]any{"payment_status": string(booking.PaymentStatus)})
	}

	now := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.LockByID(ctx, booking.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking booking")
		}
		for i := range booking.Items {
			item := &booking.Items[i]
			if item.Status != enums.BookingItemStatusActive || !item.IsMerchandise() {
				continue
			}
			if err := s.inventory.Fulfill(ctx, tx, item); err != nil {
				return err
			}
		}
		if err := repo.UpdateItemStatuses(ctx, booking.ID, enums.BookingItemStatusActive, enums.BookingItemStatusFulfilled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fulfilling items")
		}
		if err := repo.UpdateBooking(ctx, booking.ID, map[string]any{
			"status":        enums.BookingStatusCheckedIn,
			"checked_in_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking in booking")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range booking.Items {
		if booking.Items[i].Status == enums.BookingItemStatusActive {
			booking.Items[i].Status = enums.BookingItemStatusFulfilled
		}
	}
	booking.Status = enums.BookingStatusCheckedIn
	booking.CheckedInAt = &now
	return booking, nil
}

// Complete moves a checked-in booking to completed after the trip.
func (s *service) Complete(ctx context.Context, code string) (*models.Booking, error) {
	booking, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := EnsureTransition(booking.Status, enums.BookingStatusCompleted); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBooking(ctx, booking.ID, map[string]any{
		"status": enums.BookingStatusCompleted,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "completing booking")
	}
	booking.Status = enums.BookingStatusCompleted
	return booking, nil
}

// Cancel voids an unpaid booking and returns its merchandise to stock. Paid
// bookings must be refunded instead, which handles cancellation itself.
func (s *service) Cancel(ctx context.Context, code string) (*models.Booking, error) {
	booking, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := EnsureTransition(booking.Status, enums.BookingStatusCancelled); err != nil {
		return nil, err
	}
	switch booking.PaymentStatus {
	case enums.PaymentStatusNone, enums.PaymentStatusPending, enums.PaymentStatusFailed,
		enums.PaymentStatusRefunded:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "paid bookings are refunded before cancellation").
			WithDetails(map[string]any{"payment_status": string(booking.PaymentStatus)})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.cancelInTx(ctx, tx, booking)
	})
	if err != nil {
		return nil, err
	}
	booking.Status = enums.BookingStatusCancelled
	return booking, nil
}

func (s *service) cancelInTx(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	repo := s.repo.WithTx(tx)
	if err := repo.LockByID(ctx, booking.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking booking")
	}
	for i := range booking.Items {
		item := &booking.Items[i]
		if item.Status != enums.BookingItemStatusActive || !item.IsMerchandise() {
			continue
		}
		if err := s.inventory.Release(ctx, tx, item); err != nil {
			return err
		}
	}
	if err := repo.UpdateBooking(ctx, booking.ID, map[string]any{
		"status": enums.BookingStatusCancelled,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling booking")
	}
	return nil
}

// ExpireDrafts cancels draft bookings whose hold has lapsed, freeing their
// seats and merchandise. Returns how many drafts were expired.
func (s *service) ExpireDrafts(ctx context.Context, limit int) (int, error) {
	drafts, err := s.repo.FindExpiredDrafts(ctx, s.now().UTC(), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finding expired drafts")
	}

	expired := 0
	for i := range drafts {
		draft := drafts[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.cancelInTx(ctx, tx, &draft)
		})
		if err != nil {
			s.logg.Error(s.logg.WithBookingCode(ctx, draft.Code), "expiring draft booking", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// DeleteCancelled hard-deletes a cancelled booking and its items.
func (s *service) DeleteCancelled(ctx context.Context, code string) error {
	booking, err := s.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	deleted, err := s.repo.DeleteCancelled(ctx, booking.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting booking")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only cancelled bookings can be deleted").
			WithDetails(map[string]any{"status": string(booking.Status)})
	}
	return nil
}
