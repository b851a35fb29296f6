package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vnkhanh/comuni-server/apperr"
	"github.com/vnkhanh/comuni-server/models"
	"github.com/vnkhanh/comuni-server/notify"
)

func eventInput(groupID uuid.UUID, date, clock string) CreateEventInput {
	return CreateEventInput{GroupID: &groupID, Title: "Meetup", StartDate: date, StartTime: clock}
}

func TestCreateEventStatusFollowsRole(t *testing.T) {
	e := newTestEnv(t)
	owner := e.newUser(t, "owner")
	admin := e.newUser(t, "admin")
	member := e.newUser(t, "member")
	stranger := e.newUser(t, "stranger")
	g := e.newGroup(t, owner, "G")
	e.setRole(t, g.ID, admin, models.RoleAdmin)
	e.addMember(t, g, member)

	cases := []struct {
		name string
		user uuid.UUID
		want models.Status
	}{
		{"owner", owner, models.StatusApproved},
		{"admin", admin, models.StatusApproved},
		{"member", member, models.StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := e.svc.Events.CreateEvent(as(tc.user), eventInput(g.ID, "2025-07-12", "18:00"))
			if err != nil {
				t.Fatalf("CreateEvent: %v", err)
			}
			if ev.Status != tc.want || ev.CreatedBy != tc.user {
				t.Fatalf("event = %+v, want status %s", ev, tc.want)
			}
		})
	}

	_, err := e.svc.Events.CreateEvent(as(stranger), eventInput(g.ID, "2025-07-12", "18:00"))
	wantKind(t, err, apperr.KindPermissionDenied)
}

func TestCreateEventExplicitStatus(t *testing.T) {
	e := newTestEnv(t)
	owner := e.newUser(t, "owner")
	member := e.newUser(t, "member")
	g := e.newGroup(t, owner, "G")
	e.addMember(t, g, member)

	in := eventInput(g.ID, "2025-07-12", "18:00")
	pending := models.StatusPending
	in.Status = &pending
	ev, err := e.svc.Events.CreateEvent(as(owner), in)
	if err != nil || ev.Status != models.StatusPending {
		t.Fatalf("owner with explicit PENDING = %+v, %v", ev, err)
	}

	approved := models.StatusApproved
	in.Status = &approved
	_, err = e.svc.Events.CreateEvent(as(member), in)
	wantKind(t, err, apperr.KindPermissionDenied)

	bogus := models.Status("MAYBE")
	in.Status = &bogus
	_, err = e.svc.Events.CreateEvent(as(owner), in)
	wantKind(t, err, apperr.KindValidation)
}

func TestCreateEventValidation(t *testing.T) {
	e := newTestEnv(t)
	owner := e.newUser(t, "owner")
	g := e.newGroup(t, owner, "G")

	cases := []struct {
		name  string
		in    CreateEventInput
		field string
	}{
		{"blank title", CreateEventInput{GroupID: &g.ID, Title: "  ", StartDate: "2025-07-10", StartTime: "07:00"}, "title"},
		{"month 13", eventInput(g.ID, "2025-13-01", "07:00"), "start_date"},
		{"slashes", eventInput(g.ID, "2025/07/10", "07:00"), "start_date"},
		{"missing date", eventInput(g.ID, "", "07:00"), "start_date"},
		{"bad time", eventInput(g.ID, "2025-07-10", "7:00"), "start_time"},
		{"hour 24", eventInput(g.ID, "2025-07-10", "24:00"), "start_time"},
		{"end date only", CreateEventInput{GroupID: &g.ID, Title: "x", StartDate: "2025-07-10", StartTime: "07:00", EndDate: "2025-07-10"}, "end_time"},
		{"end time only", CreateEventInput{GroupID: &g.ID, Title: "x", StartDate: "2025-07-10", StartTime: "07:00", EndTime: "08:00"}, "end_date"},
		{"bad end", CreateEventInput{GroupID: &g.ID, Title: "x", StartDate: "2025-07-10", StartTime: "07:00", EndDate: "2025-07-1", EndTime: "08:00"}, "end_date"},
		{"end before start", CreateEventInput{GroupID: &g.ID, Title: "x", StartDate: "2025-07-10", StartTime: "07:00", EndDate: "2025-07-10", EndTime: "06:59"}, "end_time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.svc.Events.CreateEvent(as(owner), tc.in)
			wantKind(t, err, apperr.KindValidation)
			if ae, ok := err.(*apperr.Error); !ok || ae.Field != tc.field {
				t.Fatalf("field = %v, want %q", err, tc.field)
			}
		})
	}
}

func TestCreateEventComposesLocalTime(t *testing.T) {
	e := newTestEnv(t)
	owner := e.newUser(t, "owner")
	g := e.newGroup(t, owner, "G")

	in := eventInput(g.ID, "2025-07-10", "07:00")
	in.EndDate, in.EndTime = "2025-07-10", "09:15"
	ev, err := e.svc.Events.CreateEvent(as(owner), in)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	want := time.Date(2025, 7, 10, 7, 0, 0, 0, testZone)
	if !ev.StartAt.Equal(want) {
		t.Fatalf("StartAt = %v, want %v", ev.StartAt, want)
	}
	if ev.EndAt == nil || !ev.EndAt.Equal(want.Add(135*time.Minute)) {
		t.Fatalf("EndAt = %v", ev.EndAt)
	}

	// The request timezone overrides the server default.
	ctx := WithLocation(as(owner), time.UTC)
	ev, err = e.svc.Events.CreateEvent(ctx, eventInput(g.ID, "2025-07-10", "07:00"))
	if err != nil {
		t.Fatal(err)
	}
	if !ev.StartAt.Equal(time.Date(2025, 7, 10, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("StartAt in UTC = %v", ev.StartAt)
	}
}

func TestCreateEventUsesSelectedGroup(t *testing.T) {
	e := newTestEnv(t)
	owner := e.newUser(t, "owner")
	g := e.newGroup(t, owner, "G")

	in := CreateEventInput{Title: "x", StartDate: "2025-07-10", StartTime: "07:00"}
	_, err := e.svc.Events.CreateEvent(as(owner), in)
	wantKind(t, err, apperr.KindValidation)

	if err := e.svc.Groups.SetSelectedGroup(as(owner), g.ID); err != nil {
		t.Fatal(err)
	}
	ev, err := e.svc.Events.CreateEvent(as(owner), in)
	if err != nil || ev.GroupID != g.ID {
		t.Fatalf("CreateEvent = %+v, %v", ev, err)
	}
}

func TestListUpcomingEvents(t *testing.T) {
	e := newTestEnv(t)
	owner := e.newUser(t, "owner")
	member := e.newUser(t, "member")
	g := e.newGroup(t, owner, "G")
	e.addMember(t, g, member)

	mk := func(user uuid.UUID, date, clock string) *models.Event {
		ev, err := e.svc.Events.CreateEvent(as(user), eventInput(g.ID, date, clock))
		if err != nil {
			t.Fatalf("CreateEvent(%s %s): %v", date, clock, err)
		}
		return ev
	}
	// Now is 16:30 local on 2025-07-10.
	boundary := mk(owner, "2025-07-10", "00:00")
	mk(owner, "2025-07-09", "23:59")
	later := mk(owner, "2025-07-11", "08:00")
	earlierToday := mk(owner, "2025-07-10", "06:00")
	mk(member, "2025-07-12", "08:00")

	events, err := e.svc.Events.ListUpcomingEvents(as(member), g.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []uuid.UUID{boundary.ID, earlierToday.ID, later.ID}
	if len(events) != len(want) {
		t.Fatalf("ListUpcomingEvents = %+v", events)
	}
	for i, id := range want {
		if events[i].ID != id {
			t.Fatalf("event %d = %s, want %s", i, events[i].Title, id)
		}
	}

	_, err = e.svc.Events.ListUpcomingEvents(as(e.newUser(t, "x")), g.ID)
	wantKind(t, err, apperr.KindPermissionDenied)
}

func TestEventDecisions(t *testing.T) {
	e := newTestEnv(t)
	owner := e.newUser(t, "owner")
	member := e.newUser(t, "member")
	g := e.newGroup(t, owner, "G")
	e.addMember(t, g, member)

	ev, err := e.svc.Events.CreateEvent(as(member), eventInput(g.ID, "2025-07-12", "18:00"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.svc.Events.ApproveEvent(as(member), ev.ID)
	wantKind(t, err, apperr.KindPermissionDenied)
	_, err = e.svc.Events.ApproveEvent(as(owner), uuid.New())
	wantKind(t, err, apperr.KindNotFound)

	isAdmin, err := e.svc.Events.IsEventAdmin(as(member), ev.ID, uuid.Nil)
	if err != nil || isAdmin {
		t.Fatalf("IsEventAdmin(member) = %v, %v", isAdmin, err)
	}
	isAdmin, err = e.svc.Events.IsEventAdmin(as(member), ev.ID, owner)
	if err != nil || !isAdmin {
		t.Fatalf("IsEventAdmin(owner) = %v, %v", isAdmin, err)
	}

	pending, err := e.svc.Events.ListPendingEventsForAdmin(as(owner), uuid.Nil)
	if err != nil || len(pending) != 1 || pending[0].GroupName != "G" || pending[0].CreatedByName != "member" {
		t.Fatalf("ListPendingEventsForAdmin = %+v, %v", pending, err)
	}

	rejected, err := e.svc.Events.RejectEvent(as(owner), ev.ID)
	if err != nil || rejected.Status != models.StatusRejected {
		t.Fatalf("RejectEvent = %+v, %v", rejected, err)
	}
	approved, err := e.svc.Events.ApproveEvent(as(owner), ev.ID)
	if err != nil || approved.Status != models.StatusApproved {
		t.Fatalf("ApproveEvent = %+v, %v", approved, err)
	}
	if _, err := e.svc.Events.ApproveEvent(as(owner), ev.ID); err != nil {
		t.Fatal(err)
	}

	var decided []notify.Type
	for _, typ := range e.notes.types() {
		if typ == notify.EventApproved || typ == notify.EventRejected {
			decided = append(decided, typ)
		}
	}
	if len(decided) != 2 {
		t.Fatalf("decision notifications = %v", decided)
	}
	pending, _ = e.svc.Events.ListPendingEventsForAdmin(as(owner), uuid.Nil)
	if len(pending) != 0 {
		t.Fatalf("still pending: %+v", pending)
	}
}

func TestGetEventByID(t *testing.T) {
	e := newTestEnv(t)
	owner := e.newUser(t, "owner")
	a := e.newUser(t, "a")
	b := e.newUser(t, "b")
	g := e.newGroup(t, owner, "Hikers")
	e.addMember(t, g, a)
	e.addMember(t, g, b)

	ev, _ := e.svc.Events.CreateEvent(as(owner), eventInput(g.ID, "2025-07-12", "18:00"))
	e.svc.Events.RequestAttendance(as(a), ev.ID)
	e.svc.Events.RequestAttendance(as(b), ev.ID)
	if _, err := e.svc.Events.ApproveAttendance(as(owner), ev.ID, a); err != nil {
		t.Fatal(err)
	}

	detail, err := e.svc.Events.GetEventByID(as(b), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if detail.GroupName != "Hikers" || detail.GoingCount != 1 {
		t.Fatalf("detail = %+v", detail)
	}

	_, err = e.svc.Events.GetEventByID(as(b), uuid.New())
	wantKind(t, err, apperr.KindNotFound)
}

func TestEndToEndGroupToEvent(t *testing.T) {
	e := newTestEnv(t)
	u := e.newUser(t, "U")
	v := e.newUser(t, "V")

	g, err := e.svc.Groups.CreateGroup(as(u), CreateGroupInput{Name: "G"})
	if err != nil {
		t.Fatal(err)
	}
	if role, _ := e.svc.Roles.RoleInGroup(as(u), u, g.ID); role != models.RoleOwner {
		t.Fatalf("creator role = %s", role)
	}

	join, err := e.svc.Groups.RequestJoinGroup(as(v), g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Groups.ApproveJoinRequest(as(u), join.Request.ID); err != nil {
		t.Fatal(err)
	}
	if role, _ := e.svc.Roles.RoleInGroup(as(v), v, g.ID); role != models.RoleMember {
		t.Fatalf("V role = %s", role)
	}

	ev, err := e.svc.Events.CreateEvent(as(v), eventInput(g.ID, "2025-07-10", "20:00"))
	if err != nil || ev.Status != models.StatusPending {
		t.Fatalf("CreateEvent = %+v, %v", ev, err)
	}
	upcoming, _ := e.svc.Events.ListUpcomingEvents(as(v), g.ID)
	if len(upcoming) != 0 {
		t.Fatalf("pending event listed: %+v", upcoming)
	}

	if _, err := e.svc.Events.ApproveEvent(as(u), ev.ID); err != nil {
		t.Fatal(err)
	}
	upcoming, err = e.svc.Events.ListUpcomingEvents(as(v), g.ID)
	if err != nil || len(upcoming) != 1 || upcoming[0].ID != ev.ID {
		t.Fatalf("ListUpcomingEvents = %+v, %v", upcoming, err)
	}

	// Still listed later the same day, gone the next day.
	e.clock.t = time.Date(2025, 7, 10, 16, 59, 0, 0, time.UTC)
	upcoming, _ = e.svc.Events.ListUpcomingEvents(as(v), g.ID)
	if len(upcoming) != 1 {
		t.Fatalf("event dropped before local midnight")
	}
	e.clock.t = time.Date(2025, 7, 10, 17, 0, 0, 0, time.UTC)
	upcoming, _ = e.svc.Events.ListUpcomingEvents(as(v), g.ID)
	if len(upcoming) != 0 {
		t.Fatalf("yesterday's event still listed: %+v", upcoming)
	}
}
