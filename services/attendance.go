package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vnkhanh/comuni-server/apperr"
	"github.com/vnkhanh/comuni-server/models"
	"github.com/vnkhanh/comuni-server/notify"
)

// MyAttendanceStatus returns nil when the caller never asked to attend.
func (s *EventService) MyAttendanceStatus(ctx context.Context, eventID uuid.UUID) (*models.AttendanceStatus, error) {
	const op = "attendance.mine"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var a models.EventAttendee
	err = s.conn(ctx).Where("event_id = ? AND user_id = ?", eventID, uid).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return &a.Status, nil
}

// RequestAttendance asks to attend. A REJECTED row goes back to PENDING; there
// is never more than one row per (event, user).
func (s *EventService) RequestAttendance(ctx context.Context, eventID uuid.UUID) (*models.EventAttendee, error) {
	const op = "attendance.request"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	db := s.conn(ctx)
	ev, err := loadEvent(db, op, eventID)
	if err != nil {
		return nil, err
	}
	if s.policy.StrictMembership {
		role, err := roleOf(db, op, uid, ev.GroupID)
		if err != nil {
			return nil, err
		}
		if role == models.RoleNone {
			return nil, apperr.PermissionDenied(op, "you are not a member of this group")
		}
	}
	if ev.Status != models.StatusApproved {
		return nil, apperr.Conflict(op, "this event is not open for attendance")
	}

	now := s.now()
	a := models.EventAttendee{EventID: eventID, UserID: uid, Status: models.AttendancePending, UpdatedAt: now}

	var existing models.EventAttendee
	err = db.Where("event_id = ? AND user_id = ?", eventID, uid).Take(&existing).Error
	switch {
	case err == nil:
		switch existing.Status {
		case models.AttendancePending:
			return nil, apperr.AlreadyPending(op)
		case models.AttendanceGoing:
			return nil, apperr.AlreadyGoing(op)
		}
		res := db.Model(&models.EventAttendee{}).
			Where("event_id = ? AND user_id = ? AND status = ?", eventID, uid, models.AttendanceRejected).
			Updates(map[string]interface{}{"status": models.AttendancePending, "updated_at": now})
		if res.Error != nil {
			return nil, apperr.FromStore(op, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, apperr.AlreadyPending(op)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(&a).Error; err != nil {
			if apperr.IsDuplicateKey(err) {
				return nil, apperr.AlreadyPending(op)
			}
			return nil, apperr.FromStore(op, err)
		}
	default:
		return nil, apperr.FromStore(op, err)
	}

	log.WithFields(log.Fields{"event_id": eventID, "user_id": uid}).Info("attendance: requested")
	s.publish(ctx, notify.Notification{
		Type:    notify.AttendanceRequested,
		GroupID: ev.GroupID,
		EventID: uuidPtr(eventID),
		ActorID: uid,
	})
	return &a, nil
}

type AttendanceRequestView struct {
	UserID      uuid.UUID `json:"user_id"`
	UserName    string    `json:"user_name"`
	RequestedAt time.Time `json:"requested_at"`
}

type attendanceRow struct {
	UserID      uuid.UUID
	DisplayName *string
	UpdatedAt   time.Time
}

// ListAttendanceRequests lists PENDING attendance rows, oldest first.
func (s *EventService) ListAttendanceRequests(ctx context.Context, eventID uuid.UUID) ([]AttendanceRequestView, error) {
	const op = "attendance.list"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	db := s.conn(ctx)
	ev, err := loadEvent(db, op, eventID)
	if err != nil {
		return nil, err
	}
	if s.policy.RecheckAdmin {
		if err := requireAdmin(db, op, uid, ev.GroupID); err != nil {
			return nil, err
		}
	}

	var rows []attendanceRow
	err = db.Table("event_attendees AS a").
		Select("a.user_id, p.display_name, a.updated_at").
		Joins("LEFT JOIN profiles p ON p.id = a.user_id").
		Where("a.event_id = ? AND a.status = ?", eventID, models.AttendancePending).
		Order("a.updated_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	out := make([]AttendanceRequestView, 0, len(rows))
	for _, r := range rows {
		out = append(out, AttendanceRequestView{
			UserID:      r.UserID,
			UserName:    models.DisplayNameOr(r.DisplayName, r.UserID),
			RequestedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

func (s *EventService) ApproveAttendance(ctx context.Context, eventID, userID uuid.UUID) (*models.EventAttendee, error) {
	return s.decideAttendance(ctx, "attendance.approve", eventID, userID, models.AttendanceGoing, notify.AttendanceApproved)
}

func (s *EventService) RejectAttendance(ctx context.Context, eventID, userID uuid.UUID) (*models.EventAttendee, error) {
	return s.decideAttendance(ctx, "attendance.reject", eventID, userID, models.AttendanceRejected, notify.AttendanceRejected)
}

func (s *EventService) decideAttendance(ctx context.Context, op string, eventID, userID uuid.UUID, target models.AttendanceStatus, kind notify.Type) (*models.EventAttendee, error) {
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var (
		a       models.EventAttendee
		groupID uuid.UUID
		changed bool
	)
	err = s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := loadEvent(tx, op, eventID)
		if err != nil {
			return err
		}
		groupID = ev.GroupID
		if s.policy.RecheckAdmin {
			if err := requireAdmin(tx, op, uid, ev.GroupID); err != nil {
				return err
			}
		}

		if err := tx.Where("event_id = ? AND user_id = ?", eventID, userID).Take(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(op, "attendance request")
			}
			return err
		}
		if a.Status == target {
			return nil
		}

		now := s.now()
		err = tx.Model(&models.EventAttendee{}).
			Where("event_id = ? AND user_id = ?", eventID, userID).
			Updates(map[string]interface{}{"status": target, "updated_at": now}).Error
		if err != nil {
			return err
		}
		a.Status = target
		a.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	if changed {
		log.WithFields(log.Fields{"event_id": eventID, "user_id": userID, "status": target}).Info("attendance: decided")
		s.publish(ctx, notify.Notification{
			Type:        kind,
			GroupID:     groupID,
			EventID:     uuidPtr(eventID),
			ActorID:     uid,
			RecipientID: uuidPtr(userID),
		})
	}
	return &a, nil
}
