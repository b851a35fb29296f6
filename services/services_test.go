package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/comuni-server/apperr"
	"github.com/vnkhanh/comuni-server/models"
	"github.com/vnkhanh/comuni-server/notify"
)

// 2025-07-10 09:30 UTC is 16:30 on the same day in the test zone.
var (
	testNow  = time.Date(2025, 7, 10, 9, 30, 0, 0, time.UTC)
	testZone = time.FixedZone("ICT", 7*60*60)
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type recorder struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recorder) Publish(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recorder) types() []notify.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Type, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.Type)
	}
	return out
}

type testEnv struct {
	db    *gorm.DB
	svc   *Services
	clock *fakeClock
	notes *recorder
}

func newTestEnv(t *testing.T, tweak ...func(*Policy)) *testEnv {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	policy := DefaultPolicy()
	for _, f := range tweak {
		f(&policy)
	}
	clock := &fakeClock{t: testNow}
	notes := &recorder{}
	svc := New(Deps{
		DB:       db,
		Clock:    clock,
		Location: testZone,
		Notifier: notes,
		Policy:   policy,
	})
	return &testEnv{db: db, svc: svc, clock: clock, notes: notes}
}

func as(userID uuid.UUID) context.Context {
	return WithSession(context.Background(), Session{UserID: userID})
}

func (e *testEnv) newUser(t *testing.T, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := e.svc.Profiles.EnsureProfile(context.Background(), Session{UserID: id, Email: name + "@example.com", DisplayName: name}); err != nil {
		t.Fatalf("EnsureProfile(%s): %v", name, err)
	}
	return id
}

func (e *testEnv) newGroup(t *testing.T, owner uuid.UUID, name string) *models.Group {
	t.Helper()
	g, err := e.svc.Groups.CreateGroup(as(owner), CreateGroupInput{Name: name})
	if err != nil {
		t.Fatalf("CreateGroup(%s): %v", name, err)
	}
	return g
}

// addMember walks the join workflow so the row is written the normal way.
func (e *testEnv) addMember(t *testing.T, g *models.Group, user uuid.UUID) {
	t.Helper()
	res, err := e.svc.Groups.RequestJoinGroup(as(user), g.ID)
	if err != nil {
		t.Fatalf("RequestJoinGroup: %v", err)
	}
	if _, err := e.svc.Groups.ApproveJoinRequest(as(g.OwnerID), res.Request.ID); err != nil {
		t.Fatalf("ApproveJoinRequest: %v", err)
	}
}

func (e *testEnv) setRole(t *testing.T, groupID, user uuid.UUID, role models.Role) {
	t.Helper()
	m := models.GroupMember{GroupID: groupID, UserID: user, Role: role, CreatedAt: testNow}
	if err := e.db.Save(&m).Error; err != nil {
		t.Fatalf("save membership: %v", err)
	}
}

func (e *testEnv) ownerRows(t *testing.T, groupID uuid.UUID) []models.GroupMember {
	t.Helper()
	var rows []models.GroupMember
	if err := e.db.Where("group_id = ? AND role = ?", groupID, models.RoleOwner).Find(&rows).Error; err != nil {
		t.Fatalf("owner rows: %v", err)
	}
	return rows
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if !apperr.Is(err, kind) {
		t.Fatalf("err = %v (kind %q), want kind %q", err, apperr.KindOf(err), kind)
	}
}

func TestOperationsRequireSession(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	id := uuid.New()

	calls := map[string]func() error{
		"create group": func() error { _, err := e.svc.Groups.CreateGroup(ctx, CreateGroupInput{Name: "x"}); return err },
		"list groups":  func() error { _, err := e.svc.Groups.ListGroups(ctx, ""); return err },
		"join":         func() error { _, err := e.svc.Groups.RequestJoinGroup(ctx, id); return err },
		"create event": func() error { _, err := e.svc.Events.CreateEvent(ctx, CreateEventInput{}); return err },
		"attend":       func() error { _, err := e.svc.Events.RequestAttendance(ctx, id); return err },
		"feed":         func() error { _, err := e.svc.Feed.ListAdminNotifications(ctx, uuid.Nil); return err },
		"me":           func() error { _, err := e.svc.Profiles.Me(ctx); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			wantKind(t, call(), apperr.KindUnauthenticated)
		})
	}
}
