package squarewebhook

import (
	"context"
	"strings"

	"github.com/harborline/excursions-backend/pkg/db/models"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
	"github.com/harborline/excursions-backend/pkg/logger"
)

// paymentsReconciler applies Square's current view of a payment to its
// booking.
type paymentsReconciler interface {
	Reconcile(ctx context.Context, paymentRef string) (*models.Booking, error)
}

type Service struct {
	payments paymentsReconciler
	logg     *logger.Logger
}

func NewService(payments paymentsReconciler, logg *logger.Logger) (*Service, error) {
	if payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments reconciler required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{payments: payments, logg: logg}, nil
}

type SquareWebhookEvent struct {
	EventID string            `json:"event_id"`
	Type    string            `json:"type"`
	Data    SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Payment *SquarePaymentPayload `json:"payment"`
	Refund  *SquareRefundPayload  `json:"refund"`
}

type SquarePaymentPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type SquareRefundPayload struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// HandleEvent reconciles the booking behind a payment or refund event. The
// event payload is treated as a hint only: the reconciler re-reads Square
// before touching booking state.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
		if event.Data.Object.Payment == nil || event.Data.Object.Payment.ID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
		}
		return s.reconcile(ctx, event.Data.Object.Payment.ID)
	case "refund.created", "refund.updated":
		if event.Data.Object.Refund == nil || event.Data.Object.Refund.PaymentID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund payload missing")
		}
		return s.reconcile(ctx, event.Data.Object.Refund.PaymentID)
	default:
		s.logg.Info(s.logg.WithField(ctx, "event_type", event.Type), "ignoring unhandled square event")
		return nil
	}
}

func (s *Service) reconcile(ctx context.Context, paymentRef string) error {
	_, err := s.payments.Reconcile(ctx, paymentRef)
	if err != nil {
		// Square can notify about payments that never belonged to a booking,
		// e.g. charges made directly in the dashboard. Acknowledge those so
		// Square stops retrying.
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(s.logg.WithPaymentRef(ctx, paymentRef), "webhook for unknown payment")
			return nil
		}
		return err
	}
	return nil
}
