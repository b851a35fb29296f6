package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vnkhanh/comuni-server/apperr"
)

const CtxGroupID = "group_id"

type RoleChecker interface {
	IsAdmin(ctx context.Context, userID, groupID uuid.UUID) (bool, error)
}

// RequireGroupAdmin lets the request through only when the caller owns or
// administers the group in the :id param. The parsed id is stored under CtxGroupID.
func RequireGroupAdmin(roles RoleChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UserID(c)
		if uid == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Please sign in again."})
			return
		}

		groupID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid group id"})
			return
		}

		ok, err := roles.IsAdmin(c.Request.Context(), uid, groupID)
		if err != nil {
			if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
				log.WithError(err).WithField("group_id", groupID).Error("middleware: role check failed")
			}
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"message": apperr.Message(err)})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "You don't have permission to do that."})
			return
		}

		c.Set(CtxGroupID, groupID)
		c.Next()
	}
}
