package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vnkhanh/comuni-server/apperr"
	"github.com/vnkhanh/comuni-server/models"
	"github.com/vnkhanh/comuni-server/notify"
	"github.com/vnkhanh/comuni-server/utils"
)

// EventService is the event lifecycle and attendance workflow.
type EventService struct {
	*base
}

// CreateEventInput carries local calendar fields; they are combined in the
// caller's timezone. GroupID falls back to the caller's selected group.
type CreateEventInput struct {
	GroupID      *uuid.UUID     `json:"group_id"`
	Title        string         `json:"title" validate:"notblank,max=200"`
	Description  string         `json:"description" validate:"max=5000"`
	StartDate    string         `json:"start_date" validate:"required,ymd"`
	StartTime    string         `json:"start_time" validate:"required,hhmm"`
	EndDate      string         `json:"end_date" validate:"required_with=EndTime,omitempty,ymd"`
	EndTime      string         `json:"end_time" validate:"required_with=EndDate,omitempty,hhmm"`
	LocationName string         `json:"location_name" validate:"max=255"`
	Status       *models.Status `json:"status" validate:"omitempty,oneof=PENDING APPROVED REJECTED"`
}

func (s *EventService) CreateEvent(ctx context.Context, in CreateEventInput) (*models.Event, error) {
	const op = "events.create"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(op, in); err != nil {
		return nil, err
	}

	loc := s.location(ctx)
	startAt, err := utils.ComposeLocal(in.StartDate, in.StartTime, loc)
	if err != nil {
		return nil, apperr.Validation(op, "start_date", err.Error())
	}
	var endAt *time.Time
	if in.EndDate != "" {
		end, err := utils.ComposeLocal(in.EndDate, in.EndTime, loc)
		if err != nil {
			return nil, apperr.Validation(op, "end_date", err.Error())
		}
		if end.Before(startAt) {
			return nil, apperr.Validation(op, "end_time", "must not be before the start")
		}
		end = end.UTC()
		endAt = &end
	}

	db := s.conn(ctx)
	groupID := in.GroupID
	if groupID == nil || *groupID == uuid.Nil {
		if groupID, err = selectedGroup(db, op, uid); err != nil {
			return nil, err
		}
		if groupID == nil {
			return nil, apperr.Validation(op, "group_id", "missing group")
		}
	}

	role, err := roleOf(db, op, uid, *groupID)
	if err != nil {
		return nil, err
	}
	if s.policy.StrictMembership && role == models.RoleNone {
		return nil, apperr.PermissionDenied(op, "you are not a member of this group")
	}

	status := models.StatusPending
	if role.IsAdmin() {
		status = models.StatusApproved
	}
	if in.Status != nil {
		if s.policy.RecheckAdmin && !role.IsAdmin() && *in.Status != models.StatusPending {
			return nil, apperr.PermissionDenied(op, "only the group owner or an admin can set the event status")
		}
		status = *in.Status
	}

	ev := models.Event{
		GroupID:     *groupID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		StartAt:     startAt.UTC(),
		EndAt:       endAt,
		Visibility:  models.VisibilityGroup,
		Status:      status,
		CreatedBy:   uid,
		CreatedAt:   s.now(),
	}
	if name := strings.TrimSpace(in.LocationName); name != "" {
		ev.LocationName = &name
	}
	if err := db.Create(&ev).Error; err != nil {
		return nil, apperr.FromStore(op, err)
	}

	log.WithFields(log.Fields{"event_id": ev.ID, "group_id": ev.GroupID, "status": ev.Status}).Info("events: event created")
	if ev.Status == models.StatusPending {
		s.publish(ctx, notify.Notification{Type: notify.EventPending, GroupID: ev.GroupID, EventID: uuidPtr(ev.ID), ActorID: uid})
	}
	return &ev, nil
}

// ListUpcomingEvents returns the group's APPROVED events starting at or after
// the first instant of the caller's local today.
func (s *EventService) ListUpcomingEvents(ctx context.Context, groupID uuid.UUID) ([]models.Event, error) {
	const op = "events.list_upcoming"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	db := s.conn(ctx)
	role, err := roleOf(db, op, uid, groupID)
	if err != nil {
		return nil, err
	}
	if s.policy.StrictMembership && role == models.RoleNone {
		return nil, apperr.PermissionDenied(op, "you are not a member of this group")
	}

	from := utils.StartOfDay(s.clock.Now(), s.location(ctx)).UTC()
	events := []models.Event{}
	err = db.Where("group_id = ? AND status = ? AND start_at >= ?", groupID, models.StatusApproved, from).
		Order("start_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return events, nil
}

type EventDetail struct {
	models.Event
	GroupName  string `json:"group_name"`
	GoingCount int64  `json:"going_count"`
}

func (s *EventService) GetEventByID(ctx context.Context, eventID uuid.UUID) (*EventDetail, error) {
	const op = "events.get"
	if _, err := s.identity.CurrentUserID(ctx); err != nil {
		return nil, err
	}

	db := s.conn(ctx)
	ev, err := loadEvent(db, op, eventID)
	if err != nil {
		return nil, err
	}

	g, err := loadGroup(db, op, ev.GroupID, "id", "name")
	if err != nil {
		return nil, err
	}

	var going int64
	err = db.Model(&models.EventAttendee{}).
		Where("event_id = ? AND status = ?", eventID, models.AttendanceGoing).
		Count(&going).Error
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return &EventDetail{Event: *ev, GroupName: g.Name, GoingCount: going}, nil
}

// IsEventAdmin resolves the event's group and checks the user's role there.
// A nil userID means the caller.
func (s *EventService) IsEventAdmin(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	const op = "events.is_admin"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return false, err
	}
	if userID == uuid.Nil {
		userID = uid
	}

	db := s.conn(ctx)
	ev, err := loadEvent(db, op, eventID)
	if err != nil {
		return false, err
	}
	role, err := roleOf(db, op, userID, ev.GroupID)
	if err != nil {
		return false, err
	}
	return role.IsAdmin(), nil
}

type EventView struct {
	ID            uuid.UUID     `json:"id"`
	GroupID       uuid.UUID     `json:"group_id"`
	GroupName     string        `json:"group_name"`
	Title         string        `json:"title"`
	StartAt       time.Time     `json:"start_at"`
	EndAt         *time.Time    `json:"end_at"`
	LocationName  *string       `json:"location_name"`
	Status        models.Status `json:"status"`
	CreatedBy     uuid.UUID     `json:"created_by"`
	CreatedByName string        `json:"created_by_name"`
	CreatedAt     time.Time     `json:"created_at"`
}

type eventRow struct {
	ID            uuid.UUID
	GroupID       uuid.UUID
	GroupName     string
	Title         string
	StartAt       time.Time
	EndAt         *time.Time
	LocationName  *string
	Status        models.Status
	CreatedBy     uuid.UUID
	CreatedByName *string
	CreatedAt     time.Time
}

// ListPendingEventsForAdmin lists PENDING events of the groups adminUserID
// moderates, newest first. A nil adminUserID means the caller.
func (s *EventService) ListPendingEventsForAdmin(ctx context.Context, adminUserID uuid.UUID) ([]EventView, error) {
	const op = "events.list_pending"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if adminUserID == uuid.Nil {
		adminUserID = uid
	}

	db := s.conn(ctx)
	ids, err := adminGroupIDs(db, adminUserID)
	if err != nil {
		return nil, err
	}
	out := []EventView{}
	if len(ids) == 0 {
		return out, nil
	}

	var rows []eventRow
	err = db.Table("events AS e").
		Select("e.id, e.group_id, g.name AS group_name, e.title, e.start_at, e.end_at, e.location_name, e.status, e.created_by, p.display_name AS created_by_name, e.created_at").
		Joins("JOIN groups g ON g.id = e.group_id").
		Joins("LEFT JOIN profiles p ON p.id = e.created_by").
		Where("e.group_id IN ? AND e.status = ?", ids, models.StatusPending).
		Order("e.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	for _, r := range rows {
		out = append(out, EventView{
			ID:            r.ID,
			GroupID:       r.GroupID,
			GroupName:     r.GroupName,
			Title:         r.Title,
			StartAt:       r.StartAt,
			EndAt:         r.EndAt,
			LocationName:  r.LocationName,
			Status:        r.Status,
			CreatedBy:     r.CreatedBy,
			CreatedByName: models.DisplayNameOr(r.CreatedByName, r.CreatedBy),
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}

func (s *EventService) ApproveEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	return s.decideEvent(ctx, "events.approve", eventID, models.StatusApproved, notify.EventApproved)
}

func (s *EventService) RejectEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	return s.decideEvent(ctx, "events.reject", eventID, models.StatusRejected, notify.EventRejected)
}

// decideEvent sets the event status from any state. With RecheckAdmin the
// caller's role on the event's group is verified inside the transaction.
func (s *EventService) decideEvent(ctx context.Context, op string, eventID uuid.UUID, target models.Status, kind notify.Type) (*models.Event, error) {
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var ev *models.Event
	changed := false
	err = s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := loadEvent(tx, op, eventID)
		if err != nil {
			return err
		}
		ev = found
		if s.policy.RecheckAdmin {
			if err := requireAdmin(tx, op, uid, ev.GroupID); err != nil {
				return err
			}
		}
		if ev.Status == target {
			return nil
		}
		if err := tx.Model(&models.Event{}).Where("id = ?", eventID).Update("status", target).Error; err != nil {
			return err
		}
		ev.Status = target
		changed = true
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	if changed {
		log.WithFields(log.Fields{"event_id": eventID, "status": target, "admin_id": uid}).Info("events: event decided")
		s.publish(ctx, notify.Notification{
			Type:        kind,
			GroupID:     ev.GroupID,
			EventID:     uuidPtr(ev.ID),
			ActorID:     uid,
			RecipientID: uuidPtr(ev.CreatedBy),
		})
	}
	return ev, nil
}

func loadEvent(db *gorm.DB, op string, eventID uuid.UUID) (*models.Event, error) {
	var ev models.Event
	if err := db.Where("id = ?", eventID).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "event")
		}
		return nil, apperr.FromStore(op, err)
	}
	return &ev, nil
}
