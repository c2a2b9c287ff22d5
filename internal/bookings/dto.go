package bookings

import (
	"github.com/google/uuid"

	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
)

// ListFilters narrows admin booking listings.
type ListFilters struct {
	EventID       *uuid.UUID
	Status        *enums.BookingStatus
	PaymentStatus *enums.PaymentStatus
}

// BookingList is a cursor page of bookings.
type BookingList struct {
	Bookings   []models.Booking
	NextCursor string
}
