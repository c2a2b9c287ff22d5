package enums

// BookingStatus tracks where a booking sits in its lifecycle.
type BookingStatus string

const (
	BookingStatusDraft          BookingStatus = "draft"
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusCheckedIn      BookingStatus = "checked_in"
	BookingStatusCompleted      BookingStatus = "completed"
	BookingStatusCancelled      BookingStatus = "cancelled"
)

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusDraft,
		BookingStatusPendingPayment,
		BookingStatusConfirmed,
		BookingStatusCheckedIn,
		BookingStatusCompleted,
		BookingStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no forward transition is possible.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled
}
