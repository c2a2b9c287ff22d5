package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/harborline/excursions-backend/internal/refunds"
	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
)

type stubRefunds struct {
	input   refunds.RefundInput
	booking *models.Booking
	err     error
}

func (s *stubRefunds) Refund(ctx context.Context, input refunds.RefundInput) (*models.Booking, error) {
	s.input = input
	return s.booking, s.err
}

func adminRouter(handler http.HandlerFunc, method, pattern string) http.Handler {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, handler)
	return r
}

func TestAdminBookingRefundMapsRequest(t *testing.T) {
	booking := draftBooking("HL-REF001")
	booking.Status = enums.BookingStatusConfirmed
	booking.PaymentStatus = enums.PaymentStatusPartiallyRefunded
	svc := &stubRefunds{booking: booking}

	router := adminRouter(AdminBookingRefund(svc, nil), http.MethodPost, "/api/v1/admin/bookings/{code}/refund")

	itemID := uuid.New()
	body := `{"amount_cents": 2500, "reason": "weather", "item_ids": ["` + itemID.String() + `"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/bookings/hl-ref001/refund", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "refund-key-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.input.Code != "HL-REF001" {
		t.Fatalf("expected upper-cased code, got %q", svc.input.Code)
	}
	if svc.input.AmountCents != 2500 || svc.input.Reason != "weather" {
		t.Fatalf("unexpected refund input: %+v", svc.input)
	}
	if len(svc.input.ItemIDs) != 1 || svc.input.ItemIDs[0] != itemID {
		t.Fatalf("unexpected item ids: %v", svc.input.ItemIDs)
	}
	if svc.input.IdempotencyKey != "refund-key-1" {
		t.Fatalf("idempotency key not forwarded: %q", svc.input.IdempotencyKey)
	}
}

func TestAdminBookingRefundRejectsBadItemID(t *testing.T) {
	router := adminRouter(AdminBookingRefund(&stubRefunds{}, nil), http.MethodPost, "/api/v1/admin/bookings/{code}/refund")

	body := `{"item_ids": ["not-a-uuid"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/bookings/HL-REF001/refund", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminBookingRefundSurfacesStateConflict(t *testing.T) {
	svc := &stubRefunds{err: pkgerrors.New(pkgerrors.CodeStateConflict, "refund exceeds refundable balance")}
	router := adminRouter(AdminBookingRefund(svc, nil), http.MethodPost, "/api/v1/admin/bookings/{code}/refund")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/bookings/HL-REF001/refund", strings.NewReader(`{"amount_cents": 99999}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestAdminBookingCheckInTransitions(t *testing.T) {
	booking := draftBooking("HL-CHK001")
	booking.Status = enums.BookingStatusCheckedIn
	booking.PaymentStatus = enums.PaymentStatusPaid

	router := adminRouter(AdminBookingCheckIn(&stubBookingsService{booking: booking}, nil), http.MethodPost, "/api/v1/admin/bookings/{code}/check-in")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/bookings/HL-CHK001/check-in", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data bookingResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Status != string(enums.BookingStatusCheckedIn) {
		t.Fatalf("unexpected status %q", envelope.Data.Status)
	}
}

func TestAdminBookingConfirmTransitions(t *testing.T) {
	booking := draftBooking("HL-CNF001")
	booking.Status = enums.BookingStatusConfirmed

	router := adminRouter(AdminBookingConfirm(&stubBookingsService{booking: booking}, nil), http.MethodPost, "/api/v1/admin/bookings/{code}/confirm")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/bookings/HL-CNF001/confirm", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data bookingResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Status != string(enums.BookingStatusConfirmed) {
		t.Fatalf("unexpected status %q", envelope.Data.Status)
	}
}

func TestAdminBookingListRejectsUnknownStatus(t *testing.T) {
	router := adminRouter(AdminBookingList(&stubBookingsService{}, nil), http.MethodGet, "/api/v1/admin/bookings")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bookings?status=flying", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
