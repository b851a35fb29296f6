package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vnkhanh/comuni-server/apperr"
	"github.com/vnkhanh/comuni-server/services"
	"github.com/vnkhanh/comuni-server/utils"
)

const CtxUserID = "user_id"

// ProfileEnsurer upserts the caller's profile row on every authenticated request.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, s services.Session) error
}

// AuthJWT checks Authorization: Bearer <token>, validates the JWT and puts the
// session on the request context for the services.
func AuthJWT(secret string, profiles ProfileEnsurer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing or invalid Authorization header"})
			return
		}
		rawToken := strings.TrimSpace(authHeader[7:])

		claims, err := utils.VerifyToken(secret, rawToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
			return
		}
		uid, err := claims.UserID()
		if err != nil || uid == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid subject"})
			return
		}

		sess := services.Session{UserID: uid, Email: claims.Email, DisplayName: claims.DisplayName}
		ctx := services.WithSession(c.Request.Context(), sess)
		c.Request = c.Request.WithContext(ctx)

		if profiles != nil {
			if err := profiles.EnsureProfile(ctx, sess); err != nil {
				log.WithError(err).WithField("user_id", uid).Error("auth: cannot upsert profile")
				c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"message": apperr.Message(err)})
				return
			}
		}

		c.Set(CtxUserID, uid)
		c.Next()
	}
}

// UserID returns the id AuthJWT stored, or uuid.Nil.
func UserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(CtxUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
