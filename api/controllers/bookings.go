package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/harborline/excursions-backend/api/responses"
	"github.com/harborline/excursions-backend/api/validators"
	"github.com/harborline/excursions-backend/internal/admission"
	"github.com/harborline/excursions-backend/internal/bookings"
	"github.com/harborline/excursions-backend/pkg/db/models"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/logger"
)

type ticketLineRequest struct {
	TripBoatID        string `json:"trip_boat_id" validate:"required,uuid"`
	TicketType        string `json:"ticket_type" validate:"required"`
	Quantity          int    `json:"quantity" validate:"required,min=1"`
	PricePerUnitCents int    `json:"price_per_unit_cents" validate:"min=0"`
}

type merchandiseLineRequest struct {
	TripMerchandiseID string  `json:"trip_merchandise_id" validate:"required,uuid"`
	VariantID         *string `json:"variant_id,omitempty" validate:"omitempty,uuid"`
	Quantity          int     `json:"quantity" validate:"required,min=1"`
	PricePerUnitCents int     `json:"price_per_unit_cents" validate:"min=0"`
}

type createBookingRequest struct {
	EventID         string                   `json:"event_id" validate:"required,uuid"`
	CustomerName    string                   `json:"customer_name" validate:"required,max=200"`
	CustomerEmail   string                   `json:"customer_email" validate:"required,email"`
	CustomerPhone   string                   `json:"customer_phone,omitempty" validate:"omitempty,max=40"`
	AccessTokenCode string                   `json:"access_token_code,omitempty"`
	DiscountCents   int                      `json:"discount_cents,omitempty" validate:"omitempty,min=0"`
	TaxCents        int                      `json:"tax_cents,omitempty" validate:"omitempty,min=0"`
	TipCents        int                      `json:"tip_cents,omitempty" validate:"omitempty,min=0"`
	Tickets         []ticketLineRequest      `json:"tickets,omitempty" validate:"omitempty,dive"`
	Merchandise     []merchandiseLineRequest `json:"merchandise,omitempty" validate:"omitempty,dive"`
}

type bookingItemResponse struct {
	ID                   uuid.UUID  `json:"id"`
	Status               string     `json:"status"`
	TripBoatID           *uuid.UUID `json:"trip_boat_id,omitempty"`
	TicketType           string     `json:"ticket_type,omitempty"`
	TripMerchandiseID    *uuid.UUID `json:"trip_merchandise_id,omitempty"`
	MerchandiseVariantID *uuid.UUID `json:"merchandise_variant_id,omitempty"`
	Quantity             int        `json:"quantity"`
	UnitPriceCents       int        `json:"unit_price_cents"`
	SubtotalCents        int        `json:"subtotal_cents"`
}

type bookingResponse struct {
	Code                string                `json:"code"`
	Status              string                `json:"status"`
	PaymentStatus       string                `json:"payment_status"`
	CustomerName        string                `json:"customer_name"`
	CustomerEmail       string                `json:"customer_email"`
	SubtotalCents       int                   `json:"subtotal_cents"`
	DiscountCents       int                   `json:"discount_cents"`
	TaxCents            int                   `json:"tax_cents"`
	TipCents            int                   `json:"tip_cents"`
	TotalCents          int                   `json:"total_cents"`
	AmountPaidCents     int                   `json:"amount_paid_cents"`
	AmountRefundedCents int                   `json:"amount_refunded_cents"`
	RefundReason        string                `json:"refund_reason,omitempty"`
	ExpiresAt           *time.Time            `json:"expires_at,omitempty"`
	CheckedInAt         *time.Time            `json:"checked_in_at,omitempty"`
	Items               []bookingItemResponse `json:"items"`
	CreatedAt           time.Time             `json:"created_at"`
}

func newBookingResponse(booking *models.Booking) bookingResponse {
	resp := bookingResponse{
		Code:                booking.Code,
		Status:              string(booking.Status),
		PaymentStatus:       string(booking.PaymentStatus),
		CustomerName:        booking.CustomerName,
		CustomerEmail:       booking.CustomerEmail,
		SubtotalCents:       booking.SubtotalCents,
		DiscountCents:       booking.DiscountCents,
		TaxCents:            booking.TaxCents,
		TipCents:            booking.TipCents,
		TotalCents:          booking.TotalCents,
		AmountPaidCents:     booking.AmountPaidCents,
		AmountRefundedCents: booking.AmountRefundedCents,
		RefundReason:        booking.RefundReason,
		ExpiresAt:           booking.ExpiresAt,
		CheckedInAt:         booking.CheckedInAt,
		Items:               make([]bookingItemResponse, 0, len(booking.Items)),
		CreatedAt:           booking.CreatedAt,
	}
	for _, item := range booking.Items {
		resp.Items = append(resp.Items, bookingItemResponse{
			ID:                   item.ID,
			Status:               string(item.Status),
			TripBoatID:           item.TripBoatID,
			TicketType:           item.TicketType,
			TripMerchandiseID:    item.TripMerchandiseID,
			MerchandiseVariantID: item.MerchandiseVariantID,
			Quantity:             item.Quantity,
			UnitPriceCents:       item.UnitPriceCents,
			SubtotalCents:        item.SubtotalCents(),
		})
	}
	return resp
}

// BookingCreate admits a new booking: seats, merchandise, and the optional
// access token succeed or fail as one unit.
func BookingCreate(svc admission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admission service unavailable"))
			return
		}

		var req createBookingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := admitInputFromRequest(req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.Admit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newBookingResponse(booking))
	}
}

// BookingFetch returns a booking by its confirmation code.
func BookingFetch(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
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

		booking, err := svc.GetByCode(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookingResponse(booking))
	}
}

func admitInputFromRequest(req createBookingRequest) (admission.AdmitInput, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return admission.AdmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id")
	}

	input := admission.AdmitInput{
		EventID:         eventID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		AccessTokenCode: strings.TrimSpace(req.AccessTokenCode),
		DiscountCents:   req.DiscountCents,
		TaxCents:        req.TaxCents,
		TipCents:        req.TipCents,
	}

	for _, line := range req.Tickets {
		tripBoatID, parseErr := uuid.Parse(line.TripBoatID)
		if parseErr != nil {
			return admission.AdmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid trip boat id")
		}
		input.Tickets = append(input.Tickets, admission.TicketLine{
			TripBoatID:     tripBoatID,
			TicketType:     line.TicketType,
			Quantity:       line.Quantity,
			UnitPriceCents: line.PricePerUnitCents,
		})
	}

	for _, line := range req.Merchandise {
		linkID, parseErr := uuid.Parse(line.TripMerchandiseID)
		if parseErr != nil {
			return admission.AdmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid trip merchandise id")
		}
		merchLine := admission.MerchandiseLine{
			TripMerchandiseID: linkID,
			Quantity:          line.Quantity,
			UnitPriceCents:    line.PricePerUnitCents,
		}
		if line.VariantID != nil {
			variantID, variantErr := uuid.Parse(*line.VariantID)
			if variantErr != nil {
				return admission.AdmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, variantErr, "invalid variant id")
			}
			merchLine.VariantID = &variantID
		}
		input.Merchandise = append(input.Merchandise, merchLine)
	}

	return input, nil
}

func parseBookingCode(r *http.Request) (string, error) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "booking code is required")
	}
	return strings.ToUpper(code), nil
}
