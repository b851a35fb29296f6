package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

type FeedKind string

const (
	FeedJoin  FeedKind = "JOIN"
	FeedEvent FeedKind = "EVENT"
	FeedGroup FeedKind = "GROUP"
)

// FeedItem is one pending decision. Kind tells the client which approve and
// reject pair applies to ID.
type FeedItem struct {
	Kind      FeedKind  `json:"kind"`
	ID        uuid.UUID `json:"id"`
	GroupID   uuid.UUID `json:"group_id"`
	GroupName string    `json:"group_name"`
	Title     string    `json:"title"`
	ActorID   uuid.UUID `json:"actor_id"`
	ActorName string    `json:"actor_name,omitempty"`
	At        time.Time `json:"at"`
}

type FeedService struct {
	*base
	groups *GroupService
	events *EventService
}

// ListAdminNotifications merges pending join requests, pending events and
// pending groups into one list, newest first. Every part is scoped to
// adminUserID; a nil adminUserID means the caller.
func (s *FeedService) ListAdminNotifications(ctx context.Context, adminUserID uuid.UUID) ([]FeedItem, error) {
	uid, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if adminUserID == uuid.Nil {
		adminUserID = uid
	}

	joins, err := s.groups.ListJoinRequestsForAdmin(ctx, adminUserID)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListPendingEventsForAdmin(ctx, adminUserID)
	if err != nil {
		return nil, err
	}
	groups, err := s.groups.ListPendingGroups(ctx, adminUserID)
	if err != nil {
		return nil, err
	}

	items := make([]FeedItem, 0, len(joins)+len(events)+len(groups))
	for _, j := range joins {
		items = append(items, FeedItem{
			Kind:      FeedJoin,
			ID:        j.ID,
			GroupID:   j.GroupID,
			GroupName: j.GroupName,
			Title:     j.RequesterName + " wants to join " + j.GroupName,
			ActorID:   j.RequesterID,
			ActorName: j.RequesterName,
			At:        j.CreatedAt,
		})
	}
	for _, e := range events {
		items = append(items, FeedItem{
			Kind:      FeedEvent,
			ID:        e.ID,
			GroupID:   e.GroupID,
			GroupName: e.GroupName,
			Title:     e.Title,
			ActorID:   e.CreatedBy,
			ActorName: e.CreatedByName,
			At:        e.CreatedAt,
		})
	}
	for _, g := range groups {
		items = append(items, FeedItem{
			Kind:      FeedGroup,
			ID:        g.ID,
			GroupID:   g.ID,
			GroupName: g.Name,
			Title:     g.Name,
			ActorID:   g.OwnerID,
			At:        g.CreatedAt,
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].At.After(items[j].At) })
	return items, nil
}
