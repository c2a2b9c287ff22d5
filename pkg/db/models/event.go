package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/harborline/excursions-backend/pkg/enums"
)

// Event is the parent grouping for trips (a timed occasion such as a
// fireworks night). Every item of a booking must reference trips under one
// event.
type Event struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Name           string               `gorm:"column:name;not null"`
	Active         bool                 `gorm:"column:active;not null;default:true"`
	VisibilityMode enums.VisibilityMode `gorm:"column:visibility_mode;type:text;not null;default:'public'"`
	Trips          []Trip               `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
