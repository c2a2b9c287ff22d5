package models

import (
	"time"

	"github.com/google/uuid"
)

// Trip is one scheduled departure under an event.
type Trip struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	EventID   uuid.UUID  `gorm:"column:event_id;type:uuid;not null;index"`
	Name      string     `gorm:"column:name;not null"`
	Active    bool       `gorm:"column:active;not null;default:true"`
	DepartsAt time.Time  `gorm:"column:departs_at;not null"`
	Event     *Event     `gorm:"foreignKey:EventID"`
	Boats     []TripBoat `gorm:"foreignKey:TripID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Departed reports whether the trip has already left relative to now.
func (t *Trip) Departed(now time.Time) bool {
	return !t.DepartsAt.After(now)
}
