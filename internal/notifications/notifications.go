// Package notifications delivers customer-facing email. Delivery is
// best-effort: callers must never fail a payment or booking flow because an
// email could not be sent.
package notifications

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/harborline/excursions-backend/pkg/config"
	"github.com/harborline/excursions-backend/pkg/db/models"
)

// Message is one outbound email.
type Message struct {
	ToEmail   string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

// Sender delivers outbound email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendgridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewSendgridSender builds a Sender backed by the SendGrid API. An empty API
// key yields a no-op sender so development environments work without one.
func NewSendgridSender(cfg config.SendgridConfig) Sender {
	if cfg.APIKey == "" {
		return NoopSender{}
	}
	return &sendgridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.DefaultFrom,
		fromName:  cfg.FromName,
	}
}

func (s *sendgridSender) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.PlainText, msg.HTML)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected email: status %d", resp.StatusCode)
	}
	return nil
}

// NoopSender drops every message. Used when no SendGrid key is configured.
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, msg Message) error { return nil }

// BookingConfirmation renders the confirmation email for a paid booking.
func BookingConfirmation(booking *models.Booking) Message {
	subject := fmt.Sprintf("Booking %s confirmed", booking.Code)
	plain := fmt.Sprintf(
		"Hi %s,\n\nYour booking %s is confirmed. Total paid: $%.2f.\n\nShow your confirmation code at boarding.\n",
		booking.CustomerName, booking.Code, float64(booking.AmountPaidCents)/100,
	)
	html := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your booking <strong>%s</strong> is confirmed. Total paid: <strong>$%.2f</strong>.</p><p>Show your confirmation code at boarding.</p>`,
		booking.CustomerName, booking.Code, float64(booking.AmountPaidCents)/100,
	)
	return Message{
		ToEmail:   booking.CustomerEmail,
		ToName:    booking.CustomerName,
		Subject:   subject,
		PlainText: plain,
		HTML:      html,
	}
}
