package models

import "gorm.io/gorm"

// AutoMigrate creates or updates every table used by the workflow.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Profile{},
		&Group{},
		&GroupMember{},
		&GroupJoinRequest{},
		&Event{},
		&EventAttendee{},
	)
}
