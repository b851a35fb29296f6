package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vnkhanh/comuni-server/apperr"
	"github.com/vnkhanh/comuni-server/models"
	"github.com/vnkhanh/comuni-server/notify"
	"github.com/vnkhanh/comuni-server/utils"
)

// GroupService is the group lifecycle: creation, approval, selection,
// join requests and deletion.
type GroupService struct {
	*base
	covers CoverStorage
}

type CreateGroupInput struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

// CreateGroup makes the caller the owner. The group row and the OWNER membership
// row are written in one transaction.
func (s *GroupService) CreateGroup(ctx context.Context, in CreateGroupInput) (*models.Group, error) {
	const op = "groups.create"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(op, in); err != nil {
		return nil, err
	}

	status := models.StatusPending
	if s.policy.AutoApproveGroups {
		status = models.StatusApproved
	}

	g := models.Group{
		Name:      strings.TrimSpace(in.Name),
		OwnerID:   uid,
		Privacy:   models.PrivacyPublic,
		Status:    status,
		CreatedAt: s.now(),
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		g.Description = &desc
	}

	err = s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&g).Error; err != nil {
			return err
		}
		_, err := ensureMembership(tx, g.ID, uid, models.RoleOwner, g.CreatedAt)
		return err
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	log.WithFields(log.Fields{"group_id": g.ID, "owner_id": uid, "status": g.Status}).Info("groups: group created")
	if g.Status == models.StatusPending {
		s.publish(ctx, notify.Notification{Type: notify.GroupPending, GroupID: g.ID, ActorID: uid})
	}
	return &g, nil
}

// ListGroups returns approved public groups whose name contains query,
// case-insensitively.
func (s *GroupService) ListGroups(ctx context.Context, query string) ([]models.Group, error) {
	const op = "groups.list"
	if _, err := s.identity.CurrentUserID(ctx); err != nil {
		return nil, err
	}

	q := s.conn(ctx).Model(&models.Group{}).
		Where("status = ? AND privacy = ?", models.StatusApproved, models.PrivacyPublic)
	if term := strings.ToLower(strings.TrimSpace(query)); term != "" {
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+escapeLike(term)+"%")
	}
	if s.policy.ListOrder == "recent" {
		q = q.Order("created_at DESC")
	} else {
		q = q.Order("LOWER(name) ASC").Order("created_at DESC")
	}

	groups := []models.Group{}
	if err := q.Find(&groups).Error; err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return groups, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// MyGroup is a group seen from one of its members.
type MyGroup struct {
	models.Group
	Role models.Role `json:"role"`
}

// ListMyGroups returns every group the caller owns or belongs to, by name.
func (s *GroupService) ListMyGroups(ctx context.Context) ([]MyGroup, error) {
	const op = "groups.list_mine"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var rows []models.GroupMember
	if err := s.conn(ctx).Where("user_id = ?", uid).Find(&rows).Error; err != nil {
		return nil, apperr.FromStore(op, err)
	}
	roles := make(map[uuid.UUID]models.Role, len(rows))
	ids := make([]uuid.UUID, 0, len(rows))
	for _, m := range rows {
		roles[m.GroupID] = m.Role
		ids = append(ids, m.GroupID)
	}

	q := s.conn(ctx).Where("owner_id = ?", uid)
	if len(ids) > 0 {
		q = s.conn(ctx).Where("owner_id = ? OR id IN ?", uid, ids)
	}
	var groups []models.Group
	if err := q.Order("LOWER(name) ASC").Find(&groups).Error; err != nil {
		return nil, apperr.FromStore(op, err)
	}

	out := make([]MyGroup, 0, len(groups))
	for _, g := range groups {
		role := roles[g.ID]
		if g.OwnerID == uid {
			role = models.RoleOwner
		}
		out = append(out, MyGroup{Group: g, Role: role})
	}
	return out, nil
}

type GroupDetail struct {
	models.Group
	Role        models.Role `json:"role"`
	MemberCount int64       `json:"member_count"`
}

func (s *GroupService) GetGroup(ctx context.Context, groupID uuid.UUID) (*GroupDetail, error) {
	const op = "groups.get"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	db := s.conn(ctx)
	g, err := loadGroup(db, op, groupID)
	if err != nil {
		return nil, err
	}
	role, err := memberRole(db, op, g, uid)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := db.Model(&models.GroupMember{}).Where("group_id = ?", groupID).Count(&count).Error; err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return &GroupDetail{Group: *g, Role: role, MemberCount: count}, nil
}

// SetSelectedGroup stores the caller's working group. With StrictMembership the
// caller must belong to it.
func (s *GroupService) SetSelectedGroup(ctx context.Context, groupID uuid.UUID) error {
	const op = "groups.set_selected"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	db := s.conn(ctx)
	role, err := roleOf(db, op, uid, groupID)
	if err != nil {
		return err
	}
	if s.policy.StrictMembership && role == models.RoleNone {
		return apperr.PermissionDenied(op, "you are not a member of this group")
	}

	now := s.now()
	p := models.Profile{ID: uid, SelectedGroupID: &groupID, CreatedAt: now, UpdatedAt: now}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"selected_group_id", "updated_at"}),
	}).Create(&p).Error
	return apperr.FromStore(op, err)
}

// GetSelectedGroup returns nil when nothing is selected.
func (s *GroupService) GetSelectedGroup(ctx context.Context) (*uuid.UUID, error) {
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	return selectedGroup(s.conn(ctx), "groups.get_selected", uid)
}

func selectedGroup(db *gorm.DB, op string, uid uuid.UUID) (*uuid.UUID, error) {
	var p models.Profile
	err := db.Select("id", "selected_group_id").Where("id = ?", uid).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return p.SelectedGroupID, nil
}

/* ========== Join requests ========== */

type JoinResult struct {
	AlreadyPending bool                     `json:"already_pending"`
	Request        *models.GroupJoinRequest `json:"request"`
}

// RequestJoinGroup creates a PENDING join request, or reports the one that is
// already pending. The pending check is a read before the insert, not a constraint.
func (s *GroupService) RequestJoinGroup(ctx context.Context, groupID uuid.UUID) (*JoinResult, error) {
	const op = "groups.request_join"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	db := s.conn(ctx)
	g, err := loadGroup(db, op, groupID, "id", "owner_id", "status")
	if err != nil {
		return nil, err
	}
	role, err := memberRole(db, op, g, uid)
	if err != nil {
		return nil, err
	}
	if role != models.RoleNone {
		return nil, apperr.Conflict(op, "you are already a member of this group")
	}
	if g.Status != models.StatusApproved {
		return nil, apperr.Conflict(op, "this group is not accepting requests yet")
	}

	var existing models.GroupJoinRequest
	err = db.Where("group_id = ? AND requester_id = ? AND status = ?", groupID, uid, models.StatusPending).
		Take(&existing).Error
	if err == nil {
		return &JoinResult{AlreadyPending: true, Request: &existing}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.FromStore(op, err)
	}

	req := models.GroupJoinRequest{
		GroupID:     groupID,
		RequesterID: uid,
		Status:      models.StatusPending,
		CreatedAt:   s.now(),
	}
	if err := db.Create(&req).Error; err != nil {
		return nil, apperr.FromStore(op, err)
	}

	log.WithFields(log.Fields{"request_id": req.ID, "group_id": groupID, "user_id": uid}).Info("groups: join requested")
	s.publish(ctx, notify.Notification{
		Type:        notify.JoinRequested,
		GroupID:     groupID,
		RequestID:   uuidPtr(req.ID),
		ActorID:     uid,
		RecipientID: uuidPtr(g.OwnerID),
	})
	return &JoinResult{Request: &req}, nil
}

type JoinRequestView struct {
	ID            uuid.UUID     `json:"id"`
	GroupID       uuid.UUID     `json:"group_id"`
	GroupName     string        `json:"group_name"`
	RequesterID   uuid.UUID     `json:"requester_id"`
	RequesterName string        `json:"requester_name"`
	Status        models.Status `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

type joinRequestRow struct {
	ID            uuid.UUID
	GroupID       uuid.UUID
	GroupName     string
	RequesterID   uuid.UUID
	RequesterName *string
	Status        models.Status
	CreatedAt     time.Time
}

// ListJoinRequestsForAdmin lists PENDING requests of the groups adminUserID
// moderates, newest first. A nil adminUserID means the caller.
func (s *GroupService) ListJoinRequestsForAdmin(ctx context.Context, adminUserID uuid.UUID) ([]JoinRequestView, error) {
	const op = "groups.list_join_requests"
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
	out := []JoinRequestView{}
	if len(ids) == 0 {
		return out, nil
	}

	var rows []joinRequestRow
	err = db.Table("group_join_requests AS r").
		Select("r.id, r.group_id, g.name AS group_name, r.requester_id, p.display_name AS requester_name, r.status, r.created_at").
		Joins("JOIN groups g ON g.id = r.group_id").
		Joins("LEFT JOIN profiles p ON p.id = r.requester_id").
		Where("r.group_id IN ? AND r.status = ?", ids, models.StatusPending).
		Order("r.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	for _, r := range rows {
		out = append(out, JoinRequestView{
			ID:            r.ID,
			GroupID:       r.GroupID,
			GroupName:     r.GroupName,
			RequesterID:   r.RequesterID,
			RequesterName: models.DisplayNameOr(r.RequesterName, r.RequesterID),
			Status:        r.Status,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}

// ApproveJoinRequest adds the requester as MEMBER and marks the request
// APPROVED in one transaction. The membership insert is a no-op when the row
// exists, so approving twice, or re-running after a failure, ends in the same
// state without error.
func (s *GroupService) ApproveJoinRequest(ctx context.Context, requestID uuid.UUID) (*models.GroupJoinRequest, error) {
	const op = "groups.approve_join_request"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var req models.GroupJoinRequest
	transitioned := false
	err = s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadJoinRequest(tx, op, requestID, &req); err != nil {
			return err
		}
		if s.policy.RecheckAdmin {
			if err := requireAdmin(tx, op, uid, req.GroupID); err != nil {
				return err
			}
		}
		if req.Status == models.StatusRejected {
			return apperr.Conflict(op, "this join request was already rejected")
		}

		now := s.now()
		if _, err := ensureMembership(tx, req.GroupID, req.RequesterID, models.RoleMember, now); err != nil {
			return err
		}
		if req.Status == models.StatusApproved {
			return nil
		}

		res := tx.Model(&models.GroupJoinRequest{}).
			Where("id = ? AND status = ?", req.ID, models.StatusPending).
			Updates(map[string]interface{}{"status": models.StatusApproved, "decided_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Someone decided it between our read and our write.
			if err := loadJoinRequest(tx, op, requestID, &req); err != nil {
				return err
			}
			if req.Status != models.StatusApproved {
				return apperr.Conflict(op, "this join request was already rejected")
			}
			return nil
		}
		req.Status = models.StatusApproved
		req.DecidedAt = &now
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	if transitioned {
		log.WithFields(log.Fields{"request_id": req.ID, "group_id": req.GroupID, "user_id": req.RequesterID, "admin_id": uid}).
			Info("groups: join request approved")
		s.publish(ctx, notify.Notification{
			Type:        notify.JoinApproved,
			GroupID:     req.GroupID,
			RequestID:   uuidPtr(req.ID),
			ActorID:     uid,
			RecipientID: uuidPtr(req.RequesterID),
		})
	}
	return &req, nil
}

// RejectJoinRequest marks a PENDING request REJECTED. Rejecting twice is a no-op.
func (s *GroupService) RejectJoinRequest(ctx context.Context, requestID uuid.UUID) (*models.GroupJoinRequest, error) {
	const op = "groups.reject_join_request"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var req models.GroupJoinRequest
	transitioned := false
	err = s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadJoinRequest(tx, op, requestID, &req); err != nil {
			return err
		}
		if s.policy.RecheckAdmin {
			if err := requireAdmin(tx, op, uid, req.GroupID); err != nil {
				return err
			}
		}
		switch req.Status {
		case models.StatusApproved:
			return apperr.Conflict(op, "this join request was already approved")
		case models.StatusRejected:
			return nil
		}

		now := s.now()
		res := tx.Model(&models.GroupJoinRequest{}).
			Where("id = ? AND status = ?", req.ID, models.StatusPending).
			Updates(map[string]interface{}{"status": models.StatusRejected, "decided_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := loadJoinRequest(tx, op, requestID, &req); err != nil {
				return err
			}
			if req.Status != models.StatusRejected {
				return apperr.Conflict(op, "this join request was already approved")
			}
			return nil
		}
		req.Status = models.StatusRejected
		req.DecidedAt = &now
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	if transitioned {
		log.WithFields(log.Fields{"request_id": req.ID, "group_id": req.GroupID, "admin_id": uid}).Info("groups: join request rejected")
		s.publish(ctx, notify.Notification{
			Type:        notify.JoinRejected,
			GroupID:     req.GroupID,
			RequestID:   uuidPtr(req.ID),
			ActorID:     uid,
			RecipientID: uuidPtr(req.RequesterID),
		})
	}
	return &req, nil
}

func loadJoinRequest(db *gorm.DB, op string, id uuid.UUID, out *models.GroupJoinRequest) error {
	if err := db.Where("id = ?", id).First(out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(op, "join request")
		}
		return err
	}
	return nil
}

/* ========== Group approval (manual policy) ========== */

type PendingGroupView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ListPendingGroups shows global approvers every PENDING group and everyone
// else the PENDING groups they own. A nil userID means the caller.
func (s *GroupService) ListPendingGroups(ctx context.Context, userID uuid.UUID) ([]PendingGroupView, error) {
	const op = "groups.list_pending"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if userID != uuid.Nil {
		uid = userID
	}

	q := s.conn(ctx).Model(&models.Group{}).Where("status = ?", models.StatusPending)
	if !s.policy.GroupApprovers[uid] {
		q = q.Where("owner_id = ?", uid)
	}
	out := []PendingGroupView{}
	if err := q.Order("created_at DESC").Scan(&out).Error; err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return out, nil
}

func (s *GroupService) ApproveGroup(ctx context.Context, groupID uuid.UUID) (*models.Group, error) {
	return s.decideGroup(ctx, "groups.approve", groupID, models.StatusApproved, notify.GroupApproved)
}

func (s *GroupService) RejectGroup(ctx context.Context, groupID uuid.UUID) (*models.Group, error) {
	return s.decideGroup(ctx, "groups.reject", groupID, models.StatusRejected, notify.GroupRejected)
}

// decideGroup moves a PENDING group to target. Repeating the same decision is
// a no-op; reversing a decision is a conflict.
func (s *GroupService) decideGroup(ctx context.Context, op string, groupID uuid.UUID, target models.Status, kind notify.Type) (*models.Group, error) {
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var g *models.Group
	transitioned := false
	err = s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := loadGroup(tx, op, groupID)
		if err != nil {
			return err
		}
		g = found
		if !s.policy.GroupApprovers[uid] && g.OwnerID != uid {
			return apperr.PermissionDenied(op, "only an approver or the owner can decide this group")
		}
		if g.Status == target {
			return nil
		}
		if g.Status != models.StatusPending {
			return apperr.Conflict(op, "this group was already "+strings.ToLower(string(g.Status)))
		}
		res := tx.Model(&models.Group{}).
			Where("id = ? AND status = ?", groupID, models.StatusPending).
			Update("status", target)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict(op, "this group was decided concurrently")
		}
		g.Status = target
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	if transitioned {
		log.WithFields(log.Fields{"group_id": groupID, "status": target, "actor_id": uid}).Info("groups: group decided")
		s.publish(ctx, notify.Notification{Type: kind, GroupID: groupID, ActorID: uid, RecipientID: uuidPtr(g.OwnerID)})
	}
	return g, nil
}

/* ========== Deletion & cover ========== */

// DeleteGroup removes the group and everything that hangs off it. Only the owner
// may do this; the role is re-read here, never taken from the caller.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	const op = "groups.delete"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	err = s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := roleOf(tx, op, uid, groupID)
		if err != nil {
			return err
		}
		if role != models.RoleOwner {
			return apperr.PermissionDenied(op, "only the owner can delete a group")
		}

		events := tx.Model(&models.Event{}).Select("id").Where("group_id = ?", groupID)
		if err := tx.Where("event_id IN (?)", events).Delete(&models.EventAttendee{}).Error; err != nil {
			return err
		}
		for _, child := range []interface{}{&models.Event{}, &models.GroupJoinRequest{}, &models.GroupMember{}} {
			if err := tx.Where("group_id = ?", groupID).Delete(child).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Profile{}).Where("selected_group_id = ?", groupID).
			Update("selected_group_id", nil).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", groupID).Delete(&models.Group{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound(op, "group")
		}
		return nil
	})
	if err != nil {
		return apperr.FromStore(op, err)
	}

	log.WithFields(log.Fields{"group_id": groupID, "owner_id": uid}).Info("groups: group deleted")
	return nil
}

// SetCover uploads a cover image for the group and stores its public URL.
func (s *GroupService) SetCover(ctx context.Context, groupID uuid.UUID, filename, contentType string, r io.Reader) (*models.Group, error) {
	const op = "groups.set_cover"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	db := s.conn(ctx)
	if err := requireAdmin(db, op, uid, groupID); err != nil {
		return nil, err
	}
	if s.covers == nil {
		return nil, apperr.FromStore(op, errors.New("cover storage is not configured"))
	}

	url, err := s.covers.Upload("groups", groupID.String(), filename, contentType, r)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	if err := db.Model(&models.Group{}).Where("id = ?", groupID).Update("cover_url", url).Error; err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return loadGroup(db, op, groupID)
}
