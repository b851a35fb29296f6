// Package notify hands workflow transitions to the external delivery system.
// Delivery itself (push, in-app) happens outside this service.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	GroupPending        Type = "group.pending"
	GroupApproved       Type = "group.approved"
	GroupRejected       Type = "group.rejected"
	JoinRequested       Type = "join.requested"
	JoinApproved        Type = "join.approved"
	JoinRejected        Type = "join.rejected"
	EventPending        Type = "event.pending"
	EventApproved       Type = "event.approved"
	EventRejected       Type = "event.rejected"
	AttendanceRequested Type = "attendance.requested"
	AttendanceApproved  Type = "attendance.approved"
	AttendanceRejected  Type = "attendance.rejected"
)

// Notification describes one transition. Zero ids are omitted on the wire.
type Notification struct {
	Type        Type       `json:"type"`
	GroupID     uuid.UUID  `json:"group_id"`
	EventID     *uuid.UUID `json:"event_id,omitempty"`
	RequestID   *uuid.UUID `json:"request_id,omitempty"`
	ActorID     uuid.UUID  `json:"actor_id"`
	RecipientID *uuid.UUID `json:"recipient_id,omitempty"`
	At          time.Time  `json:"at"`
}

type Notifier interface {
	Publish(ctx context.Context, n Notification) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Publish(context.Context, Notification) error { return nil }
