// Package refunds returns money through Square while keeping the booking's
// refunded amount monotonic: it only grows, and never past the amount paid.
package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/internal/bookings"
	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/logger"
	"github.com/harborline/excursions-backend/pkg/square"
)

const defaultCurrency = "USD"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryReleaser returns merchandise stock when refunded items carry it.
type InventoryReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, item *models.BookingItem) error
}

// RefundInput describes one refund request. Exactly one sizing mode applies:
// explicit item IDs (refunds their subtotals and releases their stock), an
// explicit amount, or neither, which refunds the full remaining balance.
type RefundInput struct {
	Code           string
	AmountCents    int
	Reason         string
	Notes          string
	ItemIDs        []uuid.UUID
	IdempotencyKey string
}

// Service issues refunds against a booking's Square payment.
type Service interface {
	Refund(ctx context.Context, input RefundInput) (*models.Booking, error)
}

type service struct {
	repo      bookings.Repository
	tx        txRunner
	gateway   square.Gateway
	inventory InventoryReleaser
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a refunds service with the required dependencies.
func NewService(repo bookings.Repository, tx txRunner, gateway square.Gateway, inventory InventoryReleaser, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("square gateway required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		gateway:   gateway,
		inventory: inventory,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Booking, error) {
	if len(input.ItemIDs) > 0 && input.AmountCents > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "specify an amount or item ids, not both")
	}
	if input.AmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must not be negative")
	}

	booking, err := s.findByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	switch booking.PaymentStatus {
	case enums.PaymentStatusPaid, enums.PaymentStatusPartiallyRefunded:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking has no refundable payment").
			WithDetails(map[string]any{"payment_status": string(booking.PaymentStatus)})
	}
	items, err := resolveItems(booking, input.ItemIDs)
	if err != nil {
		return nil, err
	}

	amount := input.AmountCents
	if len(items) > 0 {
		amount = 0
		for _, item := range items {
			amount += item.SubtotalCents()
		}
	}
	if amount == 0 {
		amount = booking.RemainingRefundableCents()
	}
	remaining := booking.RemainingRefundableCents()
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to refund")
	}
	if amount > remaining {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refund exceeds refundable balance").
			WithDetails(map[string]any{"requested": amount, "remaining": remaining})
	}

	// Bookings recorded as paid outside the gateway carry no payment ref;
	// those get the local bookkeeping without a Square call.
	refundID := "none"
	if booking.PaymentRef != "" {
		result, err := s.gateway.RefundPayment(ctx, square.RefundCreateParams{
			PaymentID:      booking.PaymentRef,
			AmountCents:    int64(amount),
			Currency:       defaultCurrency,
			Reason:         input.Reason,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			return nil, err
		}
		refundID = result.ID
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.LockByID(ctx, booking.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking booking")
		}
		current, err := repo.FindByID(ctx, booking.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading booking")
		}

		newRefunded := current.AmountRefundedCents + amount
		if newRefunded > current.AmountPaidCents {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund exceeds refundable balance").
				WithDetails(map[string]any{"requested": amount, "remaining": current.RemainingRefundableCents()})
		}
		target := enums.PaymentStatusPartiallyRefunded
		if newRefunded == current.AmountPaidCents {
			target = enums.PaymentStatusRefunded
		}
		if err := bookings.EnsurePaymentTransition(current.PaymentStatus, target); err != nil {
			return err
		}

		updates := map[string]any{
			"amount_refunded_cents": newRefunded,
			"payment_status":        target,
		}
		current.AmountRefundedCents = newRefunded
		current.PaymentStatus = target

		// First reason wins so later partial refunds keep the original one.
		if current.RefundReason == "" && input.Reason != "" {
			updates["refund_reason"] = input.Reason
			current.RefundReason = input.Reason
		}
		if current.RefundNotes == "" && input.Notes != "" {
			updates["refund_notes"] = input.Notes
			current.RefundNotes = input.Notes
		}

		for _, id := range input.ItemIDs {
			if err := s.refundItem(ctx, tx, repo, current, id); err != nil {
				return err
			}
		}

		if target == enums.PaymentStatusRefunded {
			if err := s.closeOut(ctx, tx, repo, current); err != nil {
				return err
			}
		}

		if err := repo.UpdateBooking(ctx, current.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording refund")
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(
		s.logg.WithPaymentRef(s.logg.WithBookingCode(ctx, booking.Code), booking.PaymentRef),
		fmt.Sprintf("refunded %d cents (square refund %s)", amount, refundID),
	)
	return booking, nil
}

// closeOut flips a fully refunded booking's remaining items to refunded and
// returns their stock. The booking status is untouched: refunds move money,
// cancellation is a separate operational call. Fulfilled variant units stay
// sold; the money moved but handed-over goods do not come back to the pool.
func (s *service) closeOut(ctx context.Context, tx *gorm.DB, repo bookings.Repository, booking *models.Booking) error {
	for i := range booking.Items {
		item := &booking.Items[i]
		if item.Status != enums.BookingItemStatusActive {
			continue
		}
		if item.IsMerchandise() {
			if err := s.inventory.Release(ctx, tx, item); err != nil {
				if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
					return err
				}
				s.logg.Warn(s.logg.WithBookingCode(ctx, booking.Code), "refunded item holds fulfilled units, stock not returned")
			}
		}
		item.Status = enums.BookingItemStatusRefunded
	}
	if err := repo.UpdateItemStatuses(ctx, booking.ID, enums.BookingItemStatusActive, enums.BookingItemStatusRefunded); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking items refunded")
	}
	return nil
}

func (s *service) refundItem(ctx context.Context, tx *gorm.DB, repo bookings.Repository, booking *models.Booking, itemID uuid.UUID) error {
	var item *models.BookingItem
	for i := range booking.Items {
		if booking.Items[i].ID == itemID {
			item = &booking.Items[i]
			break
		}
	}
	if item == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item does not belong to booking").
			WithDetails(map[string]any{"item_id": itemID.String()})
	}
	if item.Status != enums.BookingItemStatusActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "item already refunded or fulfilled").
			WithDetails(map[string]any{"item_id": itemID.String(), "status": string(item.Status)})
	}
	if item.IsMerchandise() {
		if err := s.inventory.Release(ctx, tx, item); err != nil {
			return err
		}
	}
	if err := repo.UpdateItemStatus(ctx, item.ID, enums.BookingItemStatusRefunded); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking item refunded")
	}
	item.Status = enums.BookingItemStatusRefunded
	return nil
}

// resolveItems validates the requested item IDs against the booking before
// any money moves.
func resolveItems(booking *models.Booking, ids []uuid.UUID) ([]*models.BookingItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	byID := make(map[uuid.UUID]*models.BookingItem, len(booking.Items))
	for i := range booking.Items {
		byID[booking.Items[i].ID] = &booking.Items[i]
	}
	items := make([]*models.BookingItem, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate item id").
				WithDetails(map[string]any{"item_id": id.String()})
		}
		seen[id] = true
		item, ok := byID[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item does not belong to booking").
				WithDetails(map[string]any{"item_id": id.String()})
		}
		if item.Status != enums.BookingItemStatusActive {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "item already refunded or fulfilled").
				WithDetails(map[string]any{"item_id": id.String(), "status": string(item.Status)})
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *service) findByCode(ctx context.Context, code string) (*models.Booking, error) {
	booking, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading booking")
	}
	return booking, nil
}
