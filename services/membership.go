package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vnkhanh/comuni-server/apperr"
	"github.com/vnkhanh/comuni-server/models"
)

// MembershipService derives roles. Group.owner_id always wins over membership rows.
type MembershipService struct {
	*base
}

// RoleInGroup returns OWNER, ADMIN, MEMBER or NONE.
func (s *MembershipService) RoleInGroup(ctx context.Context, userID, groupID uuid.UUID) (models.Role, error) {
	return roleOf(s.conn(ctx), "roles.role_in_group", userID, groupID)
}

func (s *MembershipService) IsAdmin(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	role, err := s.RoleInGroup(ctx, userID, groupID)
	if err != nil {
		return false, err
	}
	return role.IsAdmin(), nil
}

// AdminGroupIDs is the de-duplicated set of groups the user owns or administers.
func (s *MembershipService) AdminGroupIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return adminGroupIDs(s.conn(ctx), userID)
}

func roleOf(db *gorm.DB, op string, userID, groupID uuid.UUID) (models.Role, error) {
	g, err := loadGroup(db, op, groupID, "id", "owner_id")
	if err != nil {
		return models.RoleNone, err
	}
	return memberRole(db, op, g, userID)
}

func loadGroup(db *gorm.DB, op string, groupID uuid.UUID, columns ...string) (*models.Group, error) {
	var g models.Group
	q := db
	if len(columns) > 0 {
		q = q.Select(columns)
	}
	if err := q.Where("id = ?", groupID).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "group")
		}
		return nil, apperr.FromStore(op, err)
	}
	return &g, nil
}

// memberRole applies the owner_id rule before looking at membership rows.
func memberRole(db *gorm.DB, op string, g *models.Group, userID uuid.UUID) (models.Role, error) {
	if g.OwnerID == userID {
		return models.RoleOwner, nil
	}

	var m models.GroupMember
	err := db.Where("group_id = ? AND user_id = ?", g.ID, userID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RoleNone, nil
	}
	if err != nil {
		return models.RoleNone, apperr.FromStore(op, err)
	}
	return m.Role, nil
}

// requireAdmin fails with PermissionDenied unless userID moderates groupID.
func requireAdmin(db *gorm.DB, op string, userID, groupID uuid.UUID) error {
	role, err := roleOf(db, op, userID, groupID)
	if err != nil {
		return err
	}
	if !role.IsAdmin() {
		return apperr.PermissionDenied(op, "only the group owner or an admin can do this")
	}
	return nil
}

func adminGroupIDs(db *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	const op = "roles.admin_group_ids"

	var owned []uuid.UUID
	if err := db.Model(&models.Group{}).Where("owner_id = ?", userID).Pluck("id", &owned).Error; err != nil {
		return nil, apperr.FromStore(op, err)
	}

	var admined []uuid.UUID
	if err := db.Model(&models.GroupMember{}).
		Where("user_id = ? AND role IN ?", userID, []models.Role{models.RoleOwner, models.RoleAdmin}).
		Pluck("group_id", &admined).Error; err != nil {
		return nil, apperr.FromStore(op, err)
	}

	seen := make(map[uuid.UUID]bool, len(owned)+len(admined))
	ids := make([]uuid.UUID, 0, len(owned)+len(admined))
	for _, id := range append(owned, admined...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// ensureMembership inserts (group, user, role) unless a row already exists, in
// which case the existing row is left untouched. A duplicate-key failure counts
// as success so callers can be re-run after a partial failure.
func ensureMembership(db *gorm.DB, groupID, userID uuid.UUID, role models.Role, at time.Time) (bool, error) {
	m := models.GroupMember{GroupID: groupID, UserID: userID, Role: role, CreatedAt: at}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&m)
	if res.Error != nil {
		if apperr.IsDuplicateKey(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RepairReport counts the rows touched by RepairOwnerships.
type RepairReport struct {
	Groups   int
	Inserted int
	Promoted int
	Demoted  int
}

// RepairOwnerships makes every group have exactly one OWNER membership row and
// makes that row belong to groups.owner_id.
func (s *MembershipService) RepairOwnerships(ctx context.Context) (RepairReport, error) {
	const op = "roles.repair_ownerships"
	var report RepairReport

	var groups []models.Group
	if err := s.conn(ctx).Select("id", "owner_id").Find(&groups).Error; err != nil {
		return report, apperr.FromStore(op, err)
	}

	for _, g := range groups {
		err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.GroupMember{}).
				Where("group_id = ? AND role = ? AND user_id <> ?", g.ID, models.RoleOwner, g.OwnerID).
				Update("role", models.RoleAdmin)
			if res.Error != nil {
				return res.Error
			}
			report.Demoted += int(res.RowsAffected)

			res = tx.Model(&models.GroupMember{}).
				Where("group_id = ? AND user_id = ? AND role <> ?", g.ID, g.OwnerID, models.RoleOwner).
				Update("role", models.RoleOwner)
			if res.Error != nil {
				return res.Error
			}
			report.Promoted += int(res.RowsAffected)

			inserted, err := ensureMembership(tx, g.ID, g.OwnerID, models.RoleOwner, s.now())
			if err != nil {
				return err
			}
			if inserted {
				report.Inserted++
			}
			return nil
		})
		if err != nil {
			return report, apperr.FromStore(op, err)
		}
		report.Groups++
	}

	if report.Inserted+report.Promoted+report.Demoted > 0 {
		log.WithFields(log.Fields{
			"groups":   report.Groups,
			"inserted": report.Inserted,
			"promoted": report.Promoted,
			"demoted":  report.Demoted,
		}).Warn("roles: repaired owner memberships")
	}
	return report, nil
}
