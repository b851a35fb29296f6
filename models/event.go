package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Event struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GroupID      uuid.UUID  `gorm:"column:group_id;type:uuid;not null;index" json:"group_id"`
	Title        string     `gorm:"column:title;size:200;not null" json:"title"`
	Description  string     `gorm:"column:description;type:text" json:"description"`
	StartAt      time.Time  `gorm:"column:start_at;not null;index" json:"start_at"`
	EndAt        *time.Time `gorm:"column:end_at" json:"end_at"`
	LocationName *string    `gorm:"column:location_name;size:255" json:"location_name"`
	Visibility   string     `gorm:"column:visibility;size:20;not null;default:'GROUP'" json:"visibility"`
	Status       Status     `gorm:"column:status;size:20;not null;default:'PENDING';index" json:"status"`
	CreatedBy    uuid.UUID  `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`

	Attendees []EventAttendee `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Event) TableName() string {
	return "events"
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// EventAttendee is an attendance request, unique per (event_id, user_id).
type EventAttendee struct {
	EventID   uuid.UUID        `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;primaryKey;index" json:"user_id"`
	Status    AttendanceStatus `gorm:"column:status;size:20;not null;default:'PENDING'" json:"status"`
	UpdatedAt time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

func (EventAttendee) TableName() string {
	return "event_attendees"
}
