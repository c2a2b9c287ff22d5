package controllers

import (
	"net/http"
	"strings"

	"github.com/harborline/excursions-backend/api/responses"
	"github.com/harborline/excursions-backend/api/validators"
	"github.com/harborline/excursions-backend/internal/payments"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/logger"
)

type createPaymentRequest struct {
	SourceID string `json:"source_id" validate:"required"`
}

// PaymentCreate charges the booking's balance through Square. The
// Idempotency-Key header doubles as the Square idempotency key so a retried
// request cannot charge twice.
func PaymentCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		code, err := parseBookingCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.CreateIntent(r.Context(), payments.CreateIntentInput{
			Code:           code,
			SourceID:       req.SourceID,
			IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookingResponse(booking))
	}
}

// PaymentPoll re-reads the booking's payment from Square and returns the
// reconciled booking.
func PaymentPoll(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		code, err := parseBookingCode(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.Poll(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookingResponse(booking))
	}
}
