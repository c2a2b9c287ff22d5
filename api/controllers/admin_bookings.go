package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/harborline/excursions-backend/api/responses"
	"github.com/harborline/excursions-backend/api/validators"
	"github.com/harborline/excursions-backend/internal/bookings"
	"github.com/harborline/excursions-backend/internal/refunds"
	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/logger"
	"github.com/harborline/excursions-backend/pkg/pagination"
)

type bookingListResponse struct {
	Bookings   []bookingResponse `json:"bookings"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type refundRequest struct {
	AmountCents int      `json:"amount_cents,omitempty" validate:"omitempty,min=1"`
	Reason      string   `json:"reason,omitempty" validate:"omitempty,max=500"`
	Notes       string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
	ItemIDs     []string `json:"item_ids,omitempty" validate:"omitempty,dive,uuid"`
}

// AdminBookingList pages through bookings with optional status, payment
// status, and event filters.
func AdminBookingList(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		filters, err := buildBookingFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), pagination.Params{Limit: limit, Cursor: cursor}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := bookingListResponse{
			Bookings:   make([]bookingResponse, 0, len(list.Bookings)),
			NextCursor: list.NextCursor,
		}
		for i := range list.Bookings {
			resp.Bookings = append(resp.Bookings, newBookingResponse(&list.Bookings[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

// AdminBookingConfirm confirms a booking settled outside the payment gateway.
func AdminBookingConfirm(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return bookingTransition(svc, logg, func(ctx context.Context, code string) (*models.Booking, error) {
		return svc.Confirm(ctx, code)
	})
}

// AdminBookingCheckIn marks a paid booking's party as aboard.
func AdminBookingCheckIn(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return bookingTransition(svc, logg, func(ctx context.Context, code string) (*models.Booking, error) {
		return svc.CheckIn(ctx, code)
	})
}

// AdminBookingComplete closes out a checked-in booking after the trip.
func AdminBookingComplete(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return bookingTransition(svc, logg, func(ctx context.Context, code string) (*models.Booking, error) {
		return svc.Complete(ctx, code)
	})
}

// AdminBookingCancel cancels a booking and releases whatever it still holds.
func AdminBookingCancel(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return bookingTransition(svc, logg, func(ctx context.Context, code string) (*models.Booking, error) {
		return svc.Cancel(ctx, code)
	})
}

// AdminBookingDelete removes a cancelled booking entirely.
func AdminBookingDelete(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
			return
		}

		code, err := parseBookingCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteCancelled(r.Context(), code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"code": code, "deleted": "true"})
	}
}

// AdminBookingRefund issues a full, amount, or item-level refund against the
// booking's Square payment.
func AdminBookingRefund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		code, err := parseBookingCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := refunds.RefundInput{
			Code:           code,
			AmountCents:    req.AmountCents,
			Reason:         strings.TrimSpace(req.Reason),
			Notes:          strings.TrimSpace(req.Notes),
			IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		}
		for _, raw := range req.ItemIDs {
			itemID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid item id"))
				return
			}
			input.ItemIDs = append(input.ItemIDs, itemID)
		}

		booking, err := svc.Refund(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookingResponse(booking))
	}
}

func bookingTransition(
	svc bookings.Service,
	logg *logger.Logger,
	transition func(ctx context.Context, code string) (*models.Booking, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
			return
		}

		code, err := parseBookingCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := transition(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookingResponse(booking))
	}
}

func buildBookingFilters(r *http.Request) (bookings.ListFilters, error) {
	var filters bookings.ListFilters

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := enums.BookingStatus(raw)
		if !status.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "unknown booking status").WithDetails(map[string]any{"status": raw})
		}
		filters.Status = &status
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("payment_status")); raw != "" {
		status := enums.PaymentStatus(raw)
		if !status.IsValid() {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status").WithDetails(map[string]any{"payment_status": raw})
		}
		filters.PaymentStatus = &status
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("event_id")); raw != "" {
		eventID, err := uuid.Parse(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id")
		}
		filters.EventID = &eventID
	}

	return filters, nil
}
