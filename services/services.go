// Package services implements the group membership and event approval workflow.
//
// Every operation resolves the caller through an IdentityResolver, checks the
// caller's role through MembershipService and then reads or writes the row
// store. Nothing is cached between calls: each call re-reads what it needs.
package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vnkhanh/comuni-server/notify"
	"github.com/vnkhanh/comuni-server/utils"
)

// Policy holds the deployment-dependent workflow switches.
type Policy struct {
	// AutoApproveGroups creates groups as APPROVED instead of PENDING.
	AutoApproveGroups bool
	// GroupApprovers may approve or reject any pending group.
	GroupApprovers map[uuid.UUID]bool
	// ListOrder is "name" (ascending) or "recent" (newest first).
	ListOrder string
	// RecheckAdmin re-verifies the caller's role inside every moderation call.
	RecheckAdmin bool
	// StrictMembership requires membership for createEvent and setSelectedGroup.
	StrictMembership bool
}

func DefaultPolicy() Policy {
	return Policy{
		AutoApproveGroups: true,
		ListOrder:         "name",
		RecheckAdmin:      true,
		StrictMembership:  true,
	}
}

// CoverStorage stores group cover images and returns their public URL.
type CoverStorage interface {
	Upload(folder, objectID, filename, contentType string, r io.Reader) (string, error)
}

type Deps struct {
	DB       *gorm.DB
	Identity IdentityResolver
	Clock    utils.Clock
	Location *time.Location
	Notifier notify.Notifier
	Policy   Policy
	Covers   CoverStorage
}

type Services struct {
	Identity IdentityResolver
	Profiles *ProfileService
	Roles    *MembershipService
	Groups   *GroupService
	Events   *EventService
	Feed     *FeedService
}

func New(d Deps) *Services {
	if d.Identity == nil {
		d.Identity = ContextIdentity{}
	}
	if d.Clock == nil {
		d.Clock = utils.RealClock()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Policy.ListOrder == "" {
		d.Policy.ListOrder = "name"
	}

	b := &base{
		db:       d.DB,
		identity: d.Identity,
		clock:    d.Clock,
		loc:      d.Location,
		notifier: d.Notifier,
		policy:   d.Policy,
	}
	roles := &MembershipService{base: b}
	groups := &GroupService{base: b, covers: d.Covers}
	events := &EventService{base: b}
	return &Services{
		Identity: d.Identity,
		Profiles: &ProfileService{base: b},
		Roles:    roles,
		Groups:   groups,
		Events:   events,
		Feed:     &FeedService{base: b, groups: groups, events: events},
	}
}

type base struct {
	db       *gorm.DB
	identity IdentityResolver
	clock    utils.Clock
	loc      *time.Location
	notifier notify.Notifier
	policy   Policy
}

func (b *base) conn(ctx context.Context) *gorm.DB {
	return b.db.WithContext(ctx)
}

// now is always UTC so stored instants compare correctly on every driver.
func (b *base) now() time.Time {
	return b.clock.Now().UTC()
}

func (b *base) location(ctx context.Context) *time.Location {
	if loc, ok := LocationFrom(ctx); ok {
		return loc
	}
	return b.loc
}

// publish is best effort: delivery failures are logged, never returned.
func (b *base) publish(ctx context.Context, n notify.Notification) {
	n.At = b.now()
	if err := b.notifier.Publish(ctx, n); err != nil {
		log.WithError(err).WithField("type", n.Type).Warn("services: notification not delivered")
	}
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }
