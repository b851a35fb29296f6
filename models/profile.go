package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile mirrors the auth user. Rows are created on the first authenticated request.
type Profile struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email           string     `gorm:"column:email;size:255" json:"email"`
	DisplayName     *string    `gorm:"column:display_name;size:80" json:"display_name"`
	SelectedGroupID *uuid.UUID `gorm:"column:selected_group_id;type:uuid" json:"selected_group_id"`
	CreatedAt       time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// NameOrFallback returns the display name, or the first 8 characters of the id.
func (p Profile) NameOrFallback() string {
	return DisplayNameOr(p.DisplayName, p.ID)
}

func DisplayNameOr(name *string, id uuid.UUID) string {
	if name != nil && *name != "" {
		return *name
	}
	return id.String()[:8]
}
