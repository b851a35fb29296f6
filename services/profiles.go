package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vnkhanh/comuni-server/apperr"
	"github.com/vnkhanh/comuni-server/models"
	"github.com/vnkhanh/comuni-server/utils"
)

type ProfileService struct {
	*base
}

// EnsureProfile upserts the caller's profile from the session. A display name
// from the token only fills an empty row, it never replaces one the user set.
func (s *ProfileService) EnsureProfile(ctx context.Context, sess Session) error {
	const op = "profiles.ensure"
	if sess.UserID == uuid.Nil {
		return apperr.Unauthenticated(op)
	}

	now := s.now()
	p := models.Profile{ID: sess.UserID, Email: sess.Email, CreatedAt: now, UpdatedAt: now}
	if name := strings.TrimSpace(sess.DisplayName); name != "" {
		p.DisplayName = &name
	}

	set := clause.AssignmentColumns([]string{"email", "updated_at"})
	set = append(set, clause.Assignment{
		Column: clause.Column{Name: "display_name"},
		Value:  gorm.Expr("COALESCE(NULLIF(profiles.display_name, ''), excluded.display_name)"),
	})
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: set,
	}).Create(&p).Error
	return apperr.FromStore(op, err)
}

// ProfileView is the caller's profile with the selected group's name resolved.
type ProfileView struct {
	models.Profile
	Name              string  `json:"name"`
	SelectedGroupName *string `json:"selected_group_name"`
}

func (s *ProfileService) Me(ctx context.Context) (*ProfileView, error) {
	const op = "profiles.me"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var p models.Profile
	if err := s.conn(ctx).Where("id = ?", uid).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "profile")
		}
		return nil, apperr.FromStore(op, err)
	}

	view := &ProfileView{Profile: p, Name: p.NameOrFallback()}
	if p.SelectedGroupID != nil {
		var g models.Group
		err := s.conn(ctx).Select("id", "name").Where("id = ?", *p.SelectedGroupID).Take(&g).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.FromStore(op, err)
		}
		if err == nil {
			view.SelectedGroupName = &g.Name
		}
	}
	return view, nil
}

type UpdateProfileInput struct {
	DisplayName string `json:"display_name" validate:"notblank,max=80"`
}

func (s *ProfileService) UpdateDisplayName(ctx context.Context, in UpdateProfileInput) (*ProfileView, error) {
	const op = "profiles.update_display_name"
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(op, in); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.DisplayName)
	res := s.conn(ctx).Model(&models.Profile{}).Where("id = ?", uid).
		Updates(map[string]interface{}{"display_name": name, "updated_at": s.now()})
	if res.Error != nil {
		return nil, apperr.FromStore(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound(op, "profile")
	}
	return s.Me(ctx)
}
