package bookings

import (
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
)

// bookingTransitions is the full lifecycle graph. Anything not listed is
// refused with a state conflict.
var bookingTransitions = map[enums.BookingStatus][]enums.BookingStatus{
	enums.BookingStatusDraft: {
		enums.BookingStatusPendingPayment,
		// Direct confirmation covers bookings settled outside the gateway.
		enums.BookingStatusConfirmed,
		enums.BookingStatusCancelled,
	},
	enums.BookingStatusPendingPayment: {
		enums.BookingStatusConfirmed,
		// Straight to completed when payment lands after the trip already ran.
		enums.BookingStatusCompleted,
		enums.BookingStatusCancelled,
	},
	enums.BookingStatusConfirmed: {
		enums.BookingStatusCheckedIn,
		enums.BookingStatusCancelled,
	},
	enums.BookingStatusCheckedIn: {
		// Re-check-in is allowed; gate staff re-scan codes.
		enums.BookingStatusCheckedIn,
		enums.BookingStatusCompleted,
	},
	enums.BookingStatusCompleted: {},
	enums.BookingStatusCancelled: {},
}

var paymentTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusNone: {
		enums.PaymentStatusPending,
	},
	enums.PaymentStatusPending: {
		enums.PaymentStatusPaid,
		enums.PaymentStatusFailed,
	},
	enums.PaymentStatusFailed: {
		enums.PaymentStatusPending,
	},
	enums.PaymentStatusPaid: {
		enums.PaymentStatusPartiallyRefunded,
		enums.PaymentStatusRefunded,
	},
	enums.PaymentStatusPartiallyRefunded: {
		enums.PaymentStatusPartiallyRefunded,
		enums.PaymentStatusRefunded,
	},
	enums.PaymentStatusRefunded: {},
}

// CanTransition reports whether the booking lifecycle allows from -> to.
func CanTransition(from, to enums.BookingStatus) bool {
	for _, allowed := range bookingTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// EnsureTransition returns a state-conflict error when from -> to is not a
// legal booking move.
func EnsureTransition(from, to enums.BookingStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown booking status").
			WithDetails(map[string]any{"status": string(to)})
	}
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "booking status transition not allowed").
			WithDetails(map[string]any{"from": string(from), "to": string(to)})
	}
	return nil
}

// CanPaymentTransition reports whether the payment lifecycle allows
// from -> to. partially_refunded may repeat, every other self-move is
// refused.
func CanPaymentTransition(from, to enums.PaymentStatus) bool {
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// EnsurePaymentTransition returns a state-conflict error when from -> to is
// not a legal payment move.
func EnsurePaymentTransition(from, to enums.PaymentStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status").
			WithDetails(map[string]any{"status": string(to)})
	}
	if !CanPaymentTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment status transition not allowed").
			WithDetails(map[string]any{"from": string(from), "to": string(to)})
	}
	return nil
}
