package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/enums"
)

// Booking is the customer-facing aggregate: a confirmation code, contact
// details, a lifecycle status pair, and the line items admitted together.
// Monetary fields are integer cents.
type Booking struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code                string              `gorm:"column:code;not null;uniqueIndex"`
	EventID             uuid.UUID           `gorm:"column:event_id;type:uuid;not null;index"`
	Status              enums.BookingStatus `gorm:"column:status;type:text;not null"`
	PaymentStatus       enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	CustomerName        string              `gorm:"column:customer_name;not null"`
	CustomerEmail       string              `gorm:"column:customer_email;not null"`
	CustomerPhone       string              `gorm:"column:customer_phone"`
	SubtotalCents       int                 `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents       int                 `gorm:"column:discount_cents;not null;default:0"`
	TaxCents            int                 `gorm:"column:tax_cents;not null;default:0"`
	TipCents            int                 `gorm:"column:tip_cents;not null;default:0"`
	TotalCents          int                 `gorm:"column:total_cents;not null;default:0"`
	AmountPaidCents     int                 `gorm:"column:amount_paid_cents;not null;default:0"`
	AmountRefundedCents int                 `gorm:"column:amount_refunded_cents;not null;default:0"`
	RefundReason        string              `gorm:"column:refund_reason"`
	RefundNotes         string              `gorm:"column:refund_notes"`
	PaymentRef          string              `gorm:"column:payment_ref;index"`
	AccessTokenID       *uuid.UUID          `gorm:"column:access_token_id;type:uuid"`
	ConfirmationSentAt  *time.Time          `gorm:"column:confirmation_sent_at"`
	CheckedInAt         *time.Time          `gorm:"column:checked_in_at"`
	ExpiresAt           *time.Time          `gorm:"column:expires_at;index"`
	Items               []BookingItem       `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// RemainingRefundableCents is the ceiling any further refund must respect.
func (b *Booking) RemainingRefundableCents() int {
	remaining := b.AmountPaidCents - b.AmountRefundedCents
	if remaining < 0 {
		return 0
	}
	return remaining
}
