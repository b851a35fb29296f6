package controllers

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vnkhanh/comuni-server/apperr"
	"github.com/vnkhanh/comuni-server/services"
)

// Handler exposes the services over HTTP.
type Handler struct {
	svc *services.Services
	db  *gorm.DB
}

func NewHandler(svc *services.Services, db *gorm.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

// respondError maps an apperr kind to a status and a short message. Store and
// timeout failures are also logged and sent to Sentry.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	kind := apperr.KindOf(err)

	body := gin.H{"message": apperr.Message(err), "code": kind}
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Field != "" {
		body["field"] = ae.Field
	}

	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"kind":   kind,
		}).Error("request failed")

		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("error_kind", string(kind))
			scope.SetExtra("path", c.FullPath())
			sentry.CaptureException(err)
		})
	}

	c.AbortWithStatusJSON(status, body)
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON rejects malformed bodies. Field rules are checked by the services.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return false
	}
	return true
}
