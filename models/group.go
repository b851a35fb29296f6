package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Group struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;size:100;not null" json:"name"`
	Description *string   `gorm:"column:description;type:text" json:"description"`
	OwnerID     uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Privacy     string    `gorm:"column:privacy;size:20;not null;default:'PUBLIC'" json:"privacy"`
	Status      Status    `gorm:"column:status;size:20;not null;default:'PENDING';index" json:"status"`
	CoverURL    *string   `gorm:"column:cover_url;type:text" json:"cover_url"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`

	Members      []GroupMember      `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	JoinRequests []GroupJoinRequest `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	Events       []Event            `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Group) TableName() string {
	return "groups"
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// GroupMember is unique per (group_id, user_id).
type GroupMember struct {
	GroupID   uuid.UUID `gorm:"column:group_id;type:uuid;primaryKey" json:"group_id"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey;index" json:"user_id"`
	Role      Role      `gorm:"column:role;size:20;not null;default:'MEMBER'" json:"role"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (GroupMember) TableName() string {
	return "group_members"
}

type GroupJoinRequest struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	GroupID     uuid.UUID  `gorm:"column:group_id;type:uuid;not null;index" json:"group_id"`
	RequesterID uuid.UUID  `gorm:"column:requester_id;type:uuid;not null;index" json:"requester_id"`
	Status      Status     `gorm:"column:status;size:20;not null;default:'PENDING'" json:"status"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	DecidedAt   *time.Time `gorm:"column:decided_at" json:"decided_at"`
}

func (GroupJoinRequest) TableName() string {
	return "group_join_requests"
}

func (r *GroupJoinRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
