// Package payments drives the Square payment lifecycle of a booking: intent
// creation, reconciliation against Square's view of the payment, and the
// one-time confirmation email once funds clear.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/internal/bookings"
	"github.com/harborline/excursions-backend/internal/notifications"
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

// CreateIntentInput starts a charge for a booking's full balance.
type CreateIntentInput struct {
	Code           string
	SourceID       string
	IdempotencyKey string
}

// Service reconciles booking payment state against Square. Reconciliation is
// idempotent: replaying the same Square result leaves the booking unchanged.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*models.Booking, error)
	// Poll re-reads the booking's payment from Square and applies the result.
	Poll(ctx context.Context, code string) (*models.Booking, error)
	// Reconcile applies Square's current view of the payment to its booking.
	Reconcile(ctx context.Context, paymentRef string) (*models.Booking, error)
	// ReconcileStale sweeps pending payments that have not progressed within
	// olderThan. Returns how many were reconciled.
	ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type service struct {
	repo    bookings.Repository
	tx      txRunner
	gateway square.Gateway
	sender  notifications.Sender
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds a payments service with the required dependencies.
func NewService(repo bookings.Repository, tx txRunner, gateway square.Gateway, sender notifications.Sender, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("square gateway required")
	}
	if sender == nil {
		return nil, fmt.Errorf("notification sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		gateway: gateway,
		sender:  sender,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*models.Booking, error) {
	if input.SourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source required")
	}
	booking, err := s.findByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	if booking.TotalCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking has no balance due")
	}
	if booking.Status != enums.BookingStatusPendingPayment {
		if err := bookings.EnsureTransition(booking.Status, enums.BookingStatusPendingPayment); err != nil {
			return nil, err
		}
	}
	switch booking.PaymentStatus {
	case enums.PaymentStatusNone, enums.PaymentStatusFailed:
	case enums.PaymentStatusPending:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already in progress").
			WithDetails(map[string]any{"payment_ref": booking.PaymentRef})
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking already paid").
			WithDetails(map[string]any{"payment_status": string(booking.PaymentStatus)})
	}

	result, err := s.gateway.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    int64(booking.TotalCents),
		Currency:       defaultCurrency,
		LocationID:     s.gateway.LocationID(),
		SourceID:       input.SourceID,
		IdempotencyKey: input.IdempotencyKey,
		Note:           fmt.Sprintf("Harborline booking %s", booking.Code),
		ReferenceID:    booking.Code,
		BuyerEmail:     booking.CustomerEmail,
	})
	if err != nil {
		return nil, err
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

		updates := map[string]any{"payment_ref": result.ID}
		if current.Status == enums.BookingStatusDraft {
			updates["status"] = enums.BookingStatusPendingPayment
			current.Status = enums.BookingStatusPendingPayment
		}
		if current.PaymentStatus == enums.PaymentStatusNone ||
			current.PaymentStatus == enums.PaymentStatusFailed {
			updates["payment_status"] = enums.PaymentStatusPending
			current.PaymentStatus = enums.PaymentStatusPending
		}
		current.PaymentRef = result.ID

		if err := applyResult(current, result, updates); err != nil {
			return err
		}
		if err := repo.UpdateBooking(ctx, current.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating booking payment state")
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithPaymentRef(s.logg.WithBookingCode(ctx, booking.Code), result.ID), "payment intent created")
	s.maybeSendConfirmation(ctx, booking)
	return booking, nil
}

func (s *service) Poll(ctx context.Context, code string) (*models.Booking, error) {
	booking, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if booking.PaymentRef == "" {
		return booking, nil
	}
	return s.Reconcile(ctx, booking.PaymentRef)
}

func (s *service) Reconcile(ctx context.Context, paymentRef string) (*models.Booking, error) {
	if paymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	// Read Square outside the transaction; only the state application needs
	// the row lock.
	result, err := s.gateway.GetPayment(ctx, paymentRef)
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.FindByPaymentRef(ctx, paymentRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no booking for payment").
				WithDetails(map[string]any{"payment_ref": paymentRef})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading booking by payment ref")
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

		updates := map[string]any{}
		if err := applyResult(current, result, updates); err != nil {
			return err
		}
		if len(updates) == 0 {
			booking = current
			return nil
		}
		if err := repo.UpdateBooking(ctx, current.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating booking payment state")
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.maybeSendConfirmation(ctx, booking)
	return booking, nil
}

func (s *service) ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.now().UTC().Add(-olderThan)
	stale, err := s.repo.FindStalePendingPayments(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finding stale pending payments")
	}

	reconciled := 0
	for i := range stale {
		ref := stale[i].PaymentRef
		if _, err := s.Reconcile(ctx, ref); err != nil {
			s.logg.Error(s.logg.WithPaymentRef(ctx, ref), "reconciling stale payment", err)
			continue
		}
		reconciled++
	}
	return reconciled, nil
}

// applyResult folds Square's payment state into the booking, collecting
// column updates. A result that changes nothing leaves updates untouched.
func applyResult(booking *models.Booking, result *square.PaymentResult, updates map[string]any) error {
	switch result.Status {
	case square.StatusCompleted:
		switch booking.PaymentStatus {
		case enums.PaymentStatusPaid, enums.PaymentStatusPartiallyRefunded, enums.PaymentStatusRefunded:
			return nil
		}
		if err := bookings.EnsurePaymentTransition(booking.PaymentStatus, enums.PaymentStatusPaid); err != nil {
			return err
		}
		updates["payment_status"] = enums.PaymentStatusPaid
		updates["amount_paid_cents"] = int(result.AmountCents)
		booking.PaymentStatus = enums.PaymentStatusPaid
		booking.AmountPaidCents = int(result.AmountCents)
		if booking.Status == enums.BookingStatusPendingPayment {
			updates["status"] = enums.BookingStatusConfirmed
			booking.Status = enums.BookingStatusConfirmed
		}
	case square.StatusFailed, square.StatusCanceled, square.StatusRejected:
		if booking.PaymentStatus != enums.PaymentStatusPending {
			return nil
		}
		updates["payment_status"] = enums.PaymentStatusFailed
		booking.PaymentStatus = enums.PaymentStatusFailed
		// A failed charge closes the booking; retrying means admitting a
		// fresh one so held capacity is not stranded behind a dead payment.
		if booking.Status == enums.BookingStatusPendingPayment {
			updates["status"] = enums.BookingStatusCancelled
			booking.Status = enums.BookingStatusCancelled
		}
	}
	return nil
}

// maybeSendConfirmation sends the confirmation email at most once per
// booking. Failures are logged, never surfaced: the payment already
// succeeded.
func (s *service) maybeSendConfirmation(ctx context.Context, booking *models.Booking) {
	if booking.PaymentStatus != enums.PaymentStatusPaid {
		return
	}
	claimed, err := s.repo.ClaimConfirmationSend(ctx, booking.ID, s.now().UTC())
	if err != nil {
		s.logg.Error(s.logg.WithBookingCode(ctx, booking.Code), "claiming confirmation send", err)
		return
	}
	if !claimed {
		return
	}
	if err := s.sender.Send(ctx, notifications.BookingConfirmation(booking)); err != nil {
		s.logg.Error(s.logg.WithBookingCode(ctx, booking.Code), "sending confirmation email", err)
	}
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
