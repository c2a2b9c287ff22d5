package enums

// BookingItemStatus is the per-line-item state within a booking.
type BookingItemStatus string

const (
	BookingItemStatusActive    BookingItemStatus = "active"
	BookingItemStatusFulfilled BookingItemStatus = "fulfilled"
	BookingItemStatusRefunded  BookingItemStatus = "refunded"
)

func (s BookingItemStatus) IsValid() bool {
	switch s {
	case BookingItemStatusActive, BookingItemStatusFulfilled, BookingItemStatusRefunded:
		return true
	default:
		return false
	}
}
