package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessToken gates bookings against events in early_access or private
// visibility. A nil EventID makes the token valid for any gated event.
type AccessToken struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Code       string     `gorm:"column:code;not null;uniqueIndex"`
	Active     bool       `gorm:"column:active;not null;default:true"`
	EventID    *uuid.UUID `gorm:"column:event_id;type:uuid;index"`
	ValidFrom  *time.Time `gorm:"column:valid_from"`
	ValidUntil *time.Time `gorm:"column:valid_until"`
	MaxUses    *int       `gorm:"column:max_uses"`
	UsedCount  int        `gorm:"column:used_count;not null;default:0"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// UsableAt reports whether the token is active, inside its validity window,
// and under its use cap at the given instant.
func (t *AccessToken) UsableAt(now time.Time) bool {
	if !t.Active {
		return false
	}
	if t.ValidFrom != nil && now.Before(*t.ValidFrom) {
		return false
	}
	if t.ValidUntil != nil && now.After(*t.ValidUntil) {
		return false
	}
	if t.MaxUses != nil && t.UsedCount >= *t.MaxUses {
		return false
	}
	return true
}
