package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestListAdminNotifications(t *testing.T) {
	approver := uuid.New()
	e := newTestEnv(t, func(p *Policy) {
		p.AutoApproveGroups = false
		p.GroupApprovers = map[uuid.UUID]bool{approver: true}
	})
	owner := e.newUser(t, "owner")
	v := e.newUser(t, "v")
	w := e.newUser(t, "w")

	g := e.newGroup(t, owner, "Club")
	if _, err := e.svc.Groups.ApproveGroup(as(approver), g.ID); err != nil {
		t.Fatal(err)
	}
	e.addMember(t, g, v)

	e.clock.t = testNow.Add(time.Minute)
	e.svc.Groups.RequestJoinGroup(as(w), g.ID)
	e.clock.t = testNow.Add(2 * time.Minute)
	if _, err := e.svc.Events.CreateEvent(as(v), eventInput(g.ID, "2025-07-12", "18:00")); err != nil {
		t.Fatal(err)
	}
	e.clock.t = testNow.Add(3 * time.Minute)
	e.newGroup(t, owner, "Second club")

	items, err := e.svc.Feed.ListAdminNotifications(as(owner), uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []FeedKind{FeedGroup, FeedEvent, FeedJoin}
	if len(items) != len(want) {
		t.Fatalf("items = %+v", items)
	}
	for i, k := range want {
		if items[i].Kind != k {
			t.Fatalf("item %d kind = %s, want %s (%+v)", i, items[i].Kind, k, items)
		}
	}
	if items[2].ActorName != "w" || items[2].GroupName != "Club" {
		t.Fatalf("join item = %+v", items[2])
	}

	empty, err := e.svc.Feed.ListAdminNotifications(as(w), uuid.Nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("non-admin feed = %+v, %v", empty, err)
	}
}

func TestListAdminNotificationsScopesToAdminUser(t *testing.T) {
	e := newTestEnv(t, func(p *Policy) { p.AutoApproveGroups = false })
	a := e.newUser(t, "a")
	b := e.newUser(t, "b")
	ga := e.newGroup(t, a, "A club")
	e.clock.t = testNow.Add(time.Minute)
	e.newGroup(t, b, "B club")

	items, err := e.svc.Feed.ListAdminNotifications(as(b), a)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Kind != FeedGroup || items[0].ID != ga.ID {
		t.Fatalf("feed for a seen by b = %+v, want only %s", items, ga.ID)
	}

	own, err := e.svc.Feed.ListAdminNotifications(as(b), uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 1 || own[0].GroupName != "B club" {
		t.Fatalf("feed for b = %+v", own)
	}
}
