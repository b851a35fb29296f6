package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/vnkhanh/comuni-server/apperr"
	"github.com/vnkhanh/comuni-server/models"
)

func TestRoleInGroup(t *testing.T) {
	e := newTestEnv(t)
	owner := e.newUser(t, "owner")
	admin := e.newUser(t, "admin")
	member := e.newUser(t, "member")
	stranger := e.newUser(t, "stranger")
	g := e.newGroup(t, owner, "Climbers")
	e.setRole(t, g.ID, admin, models.RoleAdmin)
	e.setRole(t, g.ID, member, models.RoleMember)

	cases := []struct {
		user uuid.UUID
		want models.Role
	}{
		{owner, models.RoleOwner},
		{admin, models.RoleAdmin},
		{member, models.RoleMember},
		{stranger, models.RoleNone},
	}
	for _, tc := range cases {
		got, err := e.svc.Roles.RoleInGroup(context.Background(), tc.user, g.ID)
		if err != nil {
			t.Fatalf("RoleInGroup: %v", err)
		}
		if got != tc.want {
			t.Errorf("RoleInGroup = %s, want %s", got, tc.want)
		}
	}

	_, err := e.svc.Roles.RoleInGroup(context.Background(), owner, uuid.New())
	wantKind(t, err, apperr.KindNotFound)
}

func TestOwnerIDWinsWithoutMembershipRow(t *testing.T) {
	e := newTestEnv(t)
	owner := e.newUser(t, "owner")
	g := e.newGroup(t, owner, "Runners")

	if err := e.db.Where("group_id = ?", g.ID).Delete(&models.GroupMember{}).Error; err != nil {
		t.Fatal(err)
	}
	ok, err := e.svc.Roles.IsAdmin(context.Background(), owner, g.ID)
	if err != nil || !ok {
		t.Fatalf("IsAdmin = %v, %v; want true", ok, err)
	}
}

func TestAdminGroupIDs(t *testing.T) {
	e := newTestEnv(t)
	u := e.newUser(t, "u")
	other := e.newUser(t, "other")
	a := e.newGroup(t, u, "A")
	b := e.newGroup(t, other, "B")
	e.addMember(t, b, u)

	ids, err := e.svc.Roles.AdminGroupIDs(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != a.ID {
		t.Fatalf("AdminGroupIDs = %v, want [%s]", ids, a.ID)
	}

	// Owner through owner_id and through the OWNER row counts once.
	c := e.newGroup(t, other, "C")
	e.setRole(t, c.ID, u, models.RoleAdmin)
	ids, err = e.svc.Roles.AdminGroupIDs(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("AdminGroupIDs = %v, want A and C", ids)
	}
}

func TestRepairOwnerships(t *testing.T) {
	e := newTestEnv(t)
	owner := e.newUser(t, "owner")
	impostor := e.newUser(t, "impostor")
	g1 := e.newGroup(t, owner, "Drifted")
	g2 := e.newGroup(t, owner, "Missing")

	// g1: the owner's row was downgraded and someone else holds OWNER.
	e.setRole(t, g1.ID, owner, models.RoleMember)
	e.setRole(t, g1.ID, impostor, models.RoleOwner)
	// g2: the owner's row is gone.
	if err := e.db.Where("group_id = ?", g2.ID).Delete(&models.GroupMember{}).Error; err != nil {
		t.Fatal(err)
	}

	report, err := e.svc.Roles.RepairOwnerships(context.Background())
	if err != nil {
		t.Fatalf("RepairOwnerships: %v", err)
	}
	if report.Groups != 2 || report.Inserted != 1 || report.Promoted != 1 || report.Demoted != 1 {
		t.Fatalf("report = %+v", report)
	}

	for _, g := range []*models.Group{g1, g2} {
		rows := e.ownerRows(t, g.ID)
		if len(rows) != 1 || rows[0].UserID != owner {
			t.Fatalf("group %s owner rows = %+v", g.Name, rows)
		}
	}
	role, _ := e.svc.Roles.RoleInGroup(context.Background(), impostor, g1.ID)
	if role != models.RoleAdmin {
		t.Fatalf("impostor role = %s, want ADMIN", role)
	}

	again, err := e.svc.Roles.RepairOwnerships(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again.Inserted+again.Promoted+again.Demoted != 0 {
		t.Fatalf("second repair changed rows: %+v", again)
	}
}
