package enums

// PaymentStatus tracks the money side of a booking independently of its
// operational status.
type PaymentStatus string

const (
	PaymentStatusNone              PaymentStatus = "none"
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusNone,
		PaymentStatusPending,
		PaymentStatusPaid,
		PaymentStatusFailed,
		PaymentStatusRefunded,
		PaymentStatusPartiallyRefunded:
		return true
	default:
		return false
	}
}

// CountsTowardCapacity reports whether bookings in this payment state hold
// their seats. Drafts hold seats until the expiry job reclaims them; failed
// and fully refunded payments release theirs.
func (s PaymentStatus) CountsTowardCapacity() bool {
	switch s {
	case PaymentStatusNone, PaymentStatusPending, PaymentStatusPaid, PaymentStatusPartiallyRefunded:
		return true
	default:
		return false
	}
}
