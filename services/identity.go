package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vnkhanh/comuni-server/apperr"
)

// Session is what the identity provider tells us about the caller.
type Session struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
}

type sessionKey struct{}
type locationKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// WithLocation sets the caller's local timezone for date composition and "today".
func WithLocation(ctx context.Context, loc *time.Location) context.Context {
	return context.WithValue(ctx, locationKey{}, loc)
}

func LocationFrom(ctx context.Context) (*time.Location, bool) {
	loc, ok := ctx.Value(locationKey{}).(*time.Location)
	return loc, ok && loc != nil
}

// IdentityResolver resolves the acting user for an operation.
type IdentityResolver interface {
	CurrentUserID(ctx context.Context) (uuid.UUID, error)
}

// ContextIdentity reads the session placed on the context by the auth middleware.
type ContextIdentity struct{}

func (ContextIdentity) CurrentUserID(ctx context.Context) (uuid.UUID, error) {
	s, ok := SessionFrom(ctx)
	if !ok || s.UserID == uuid.Nil {
		return uuid.Nil, apperr.Unauthenticated("identity.current_user")
	}
	return s.UserID, nil
}
