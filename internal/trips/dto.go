package trips

import (
	"time"

	"github.com/google/uuid"

	"github.com/harborline/excursions-backend/pkg/db/models"
)

// TripList is a cursor page of upcoming trips.
type TripList struct {
	Trips      []models.Trip
	NextCursor string
}

// TripSummary is the directory view of a scheduled departure.
type TripSummary struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	EventName string    `json:"event_name"`
	Name      string    `json:"name"`
	DepartsAt time.Time `json:"departs_at"`
}

// DirectoryPage is the paginated public trip directory.
type DirectoryPage struct {
	Trips      []TripSummary `json:"trips"`
	NextCursor string        `json:"next_cursor,omitempty"`
}
